package pagination

import "github.com/Sternrassler/zip-ingest/pkg/yelp"

// MaxPageSize is the largest page a search source accepts.
const MaxPageSize = yelp.MaxPageSize

// StopReason explains why a cursor is done.
type StopReason string

const (
	// StopNone means the cursor can still yield pages.
	StopNone StopReason = ""

	// StopTargetReached means enough items were accepted.
	StopTargetReached StopReason = "target_reached"

	// StopEmptyPage means the source returned no items.
	StopEmptyPage StopReason = "empty_page"

	// StopExhausted means the reported total is at or below the offset.
	StopExhausted StopReason = "exhausted"
)

// Config holds cursor configuration.
type Config struct {
	// Target is the number of accepted items wanted.
	Target int

	// PageSize is the requested items per page, clamped to MaxPageSize.
	PageSize int

	// TrustTotal stops paging once the reported total is reached.
	// When false, paging continues until an empty page is returned.
	TrustTotal bool
}

// Cursor tracks sequential offset pagination for one result set.
type Cursor struct {
	config   Config
	offset   int
	accepted int
	pages    int
	reason   StopReason
}

// NewCursor creates a cursor positioned at offset 0.
func NewCursor(config Config) *Cursor {
	if config.PageSize <= 0 || config.PageSize > MaxPageSize {
		config.PageSize = MaxPageSize
	}
	c := &Cursor{config: config}
	if config.Target <= 0 {
		c.reason = StopTargetReached
	}
	return c
}

// Offset returns the offset of the next page.
func (c *Cursor) Offset() int {
	return c.offset
}

// Accepted returns the number of accepted items so far.
func (c *Cursor) Accepted() int {
	return c.accepted
}

// Pages returns the number of pages consumed.
func (c *Cursor) Pages() int {
	return c.pages
}

// NextLimit returns the size of the next page: min(PageSize, Target-Accepted).
func (c *Cursor) NextLimit() int {
	remaining := c.config.Target - c.accepted
	if remaining < c.config.PageSize {
		return remaining
	}
	return c.config.PageSize
}

// Done reports whether no further page should be requested.
func (c *Cursor) Done() bool {
	return c.reason != StopNone
}

// Reason returns why the cursor stopped, or StopNone.
func (c *Cursor) Reason() StopReason {
	return c.reason
}

// Advance records a fetched page: returned is the number of items the source
// sent, accepted the number kept by the caller, total the reported total.
func (c *Cursor) Advance(returned, accepted, total int) {
	c.pages++
	if returned <= 0 {
		c.reason = StopEmptyPage
		return
	}

	c.accepted += accepted
	c.offset += returned

	switch {
	case c.accepted >= c.config.Target:
		c.reason = StopTargetReached
	case c.config.TrustTotal && total <= c.offset:
		c.reason = StopExhausted
	}
}
