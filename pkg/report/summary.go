package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Sternrassler/zip-ingest/pkg/ingest"
	"github.com/charmbracelet/lipgloss"
)

const (
	colorPrimary = "#7D56F4"
	colorSuccess = "#04B575"
	colorError   = "#FF5F56"
	colorInfo    = "#626262"
	colorBorder  = "#874BFD"
)

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	info    lipgloss.Style
	box     lipgloss.Style
}

// newStyles binds the palette to w so that color is dropped for non-terminals.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color(colorPrimary)),
		label:   r.NewStyle().Bold(true),
		success: r.NewStyle().Foreground(lipgloss.Color(colorSuccess)),
		failure: r.NewStyle().Foreground(lipgloss.Color(colorError)),
		info:    r.NewStyle().Foreground(lipgloss.Color(colorInfo)),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1),
	}
}

// PrintSummary writes a boxed console summary of the run to w.
func PrintSummary(w io.Writer, r *ingest.RunReport) error {
	st := newStyles(w)

	lines := []string{
		st.title.Render("Ingestion Results"),
		"",
		st.label.Render("Successful ZIPs: ") + st.success.Render(fmt.Sprint(len(r.SuccessfulZips))),
		st.label.Render("Failed ZIPs: ") + failedValue(st, r.FailedZips),
		st.label.Render("Total restaurants: ") + fmt.Sprint(r.TotalRestaurants),
		st.label.Render("Errors: ") + errorsValue(st, r.Errors),
		st.label.Render("API calls made: ") + fmt.Sprint(r.APICallsMade),
		st.label.Render("Duration: ") + r.Duration().Round(time.Millisecond).String(),
	}

	if len(r.SuccessfulZips) > 0 {
		lines = append(lines, "", st.title.Render("Per ZIP"))
		for _, o := range r.SuccessfulZips {
			lines = append(lines, fmt.Sprintf("%-10s %4d restaurants  %4d stored  %3d calls",
				o.ZipCode, o.RestaurantCount, o.StoredCount, o.APICalls))
		}
	}

	_, err := fmt.Fprintln(w, st.box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	return err
}

func failedValue(st styles, zips []string) string {
	if len(zips) == 0 {
		return st.success.Render("0")
	}
	shown := zips
	more := ""
	if len(shown) > 10 {
		shown = shown[:10]
		more = fmt.Sprintf(", +%d more", len(zips)-10)
	}
	return st.failure.Render(fmt.Sprint(len(zips))) +
		st.info.Render(" ("+strings.Join(shown, ", ")+more+")")
}

// errorsValue renders the error count with a per-kind breakdown in kind order.
func errorsValue(st styles, errs []ingest.ErrorEntry) string {
	if len(errs) == 0 {
		return st.success.Render("0")
	}
	byKind := map[ingest.ErrorKind]int{}
	for _, e := range errs {
		byKind[e.Type]++
	}
	kinds := make([]string, 0, len(byKind))
	for k, n := range byKind {
		kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
	}
	sort.Strings(kinds)
	return st.failure.Render(fmt.Sprint(len(errs))) +
		st.info.Render(" ("+strings.Join(kinds, ", ")+")")
}
