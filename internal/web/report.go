package web

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/fuelclean/internal/cleaning"
	"github.com/JonMunkholm/fuelclean/internal/csvio"
)

// runReport renders the HTML page for one finished run.
func runReport(rec *runRecord) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		res := rec.Result
		sum := res.Summary
		esc := templ.EscapeString[string]

		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		fmt.Fprintf(&b, `<title>Cleaning run %s</title></head><body>`, esc(res.RunID))
		fmt.Fprintf(&b, `<h1>Cleaning run <code>%s</code></h1>`, esc(res.RunID))
		if rec.Filename != "" {
			fmt.Fprintf(&b, `<p>Source file: %s</p>`, esc(rec.Filename))
		}
		if sum.Interrupted {
			b.WriteString(`<p class="error">The run was cancelled during zip lookups; remaining addresses were left unenriched.</p>`)
		}
		if rec.PersistError != "" {
			fmt.Fprintf(&b, `<p class="error">Outputs were not stored: %s</p>`, esc(rec.PersistError))
		}

		b.WriteString(`<table class="summary"><tbody>`)
		for _, l := range sum.Lines() {
			fmt.Fprintf(&b, `<tr><th>%s</th><td>%s</td></tr>`, esc(l[0]), esc(l[1]))
		}
		b.WriteString(`</tbody></table>`)

		b.WriteString(`<h2>Anomalies by reason</h2><ul>`)
		for _, reason := range cleaning.Reasons {
			fmt.Fprintf(&b, `<li>%s: %d</li>`, esc(reason.String()), res.Anomalies.Count(reason))
		}
		b.WriteString(`</ul>`)

		if len(sum.SkippedStages) > 0 {
			b.WriteString(`<h2>Skipped stages</h2><ul>`)
			for _, st := range sum.SkippedStages {
				fmt.Fprintf(&b, `<li>%s</li>`, esc(string(st)))
			}
			b.WriteString(`</ul>`)
		}

		if len(sum.FailedLookups) == 0 {
			b.WriteString(`<p>No failed zip lookups</p>`)
		} else {
			fmt.Fprintf(&b, `<h2>Failed zip lookups (%d)</h2><table class="failed"><thead><tr><th>City</th><th>State</th></tr></thead><tbody>`, len(sum.FailedLookups))
			for _, f := range sum.FailedLookups {
				fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td></tr>`, esc(f.City), esc(f.State))
			}
			b.WriteString(`</tbody></table>`)
		}

		base := "/api/runs/" + esc(res.RunID)
		b.WriteString(`<h2>Downloads</h2><ul>`)
		fmt.Fprintf(&b, `<li><a href="%s/cleaned.csv">%s</a></li>`, base, csvio.CleanedFile)
		fmt.Fprintf(&b, `<li><a href="%s/anomalies.csv">%s</a></li>`, base, csvio.AnomaliesFile)
		fmt.Fprintf(&b, `<li><a href="%s/anomalies.xlsx">%s</a></li>`, base, csvio.WorkbookFile)
		b.WriteString(`</ul></body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}
