// Package pagination provides offset-based page planning for search endpoints
// that return a page of items plus a total result count.
//
// Example usage:
//
//	cur := pagination.NewCursor(pagination.Config{Target: 50, PageSize: 50, TrustTotal: true})
//	for !cur.Done() {
//		resp, err := search(ctx, cur.Offset(), cur.NextLimit())
//		if err != nil {
//			break
//		}
//		accepted := keep(resp.Items)
//		cur.Advance(len(resp.Items), accepted, resp.Total)
//	}
//
// The cursor:
//   - Sizes each page to min(PageSize, Target-Accepted)
//   - Advances the offset by the number of items the source returned
//   - Stops on an empty page, on reaching the target, or when the reported
//     total is at or below the offset (unless TrustTotal is false)
//
// Fetching is strictly sequential: one page at a time, in increasing offset order.
package pagination
