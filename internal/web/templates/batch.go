package templates

import (
	"github.com/JonMunkholm/sheetqr/internal/core"
	"github.com/a-h/templ"
)

// BatchSummary shows the outcome of a batch, a download link and the first
// few codes.
func BatchSummary(sessionID string, r *core.BatchReport, codes []core.ArchiveEntry) templ.Component {
	return component(func(w *writer) {
		base := "/api/workbooks/" + pathEscape(sessionID)

		w.raw(`<section class="batch"><h2>Result</h2><p class="summary">`)
		w.text(r.Summary())
		w.raw(`</p><ul class="counts">`)
		w.rawf(`<li>Rows: %d</li><li>Without URL: %d</li><li>Generated: %d</li><li>In archive: %d</li>`,
			r.TotalRows, r.DroppedRows, r.Generated, r.Packed)
		if r.Renamed+r.PackRenamed > 0 {
			w.rawf(`<li>Renamed duplicates: %d</li>`, r.Renamed+r.PackRenamed)
		}
		if r.NonURLPayloads > 0 {
			w.rawf(`<li>Encoded as plain text: %d</li>`, r.NonURLPayloads)
		}
		w.raw(`</ul>`)

		if len(r.Duplicates) > 0 {
			w.raw(`<details><summary>Duplicate names</summary><ul>`)
			for _, d := range r.Duplicates {
				w.raw(`<li>`)
				w.text(d.Name)
				w.rawf(` (%d rows)</li>`, d.Count)
			}
			w.raw(`</ul></details>`)
		}

		if len(r.Failures) > 0 {
			w.raw(`<details><summary>Rows without a code</summary><table><thead><tr><th>Row</th><th>Filename</th><th>Reason</th></tr></thead><tbody>`)
			for _, f := range r.Failures {
				w.rawf(`<tr><td>%d</td><td>`, f.Row)
				w.text(f.Filename)
				w.raw(`</td><td>`)
				w.text(f.Kind)
				w.raw(`</td></tr>`)
			}
			w.raw(`</tbody></table></details>`)
		}

		if r.ArchiveLocation != "" {
			w.raw(`<p class="export">Archive exported to `)
			w.text(r.ArchiveLocation)
			w.raw(`</p>`)
		}
		if r.ArchiveExportError != "" {
			w.raw(`<p class="export-error">Archive export failed: `)
			w.text(r.ArchiveExportError)
			w.raw(`</p>`)
		}

		if r.Packed > 0 {
			w.raw(`<p><a href="` + attr(base+"/archive") + `" download>Download ` + core.ArchiveFileName + `</a></p>`)
		}

		if len(codes) > PreviewLimit {
			codes = codes[:PreviewLimit]
		}
		if len(codes) > 0 {
			w.raw(`<div class="codes">`)
			for _, c := range codes {
				src := base + "/codes/" + pathEscape(c.Name)
				w.raw(`<figure><img src="` + attr(src) + `" alt="` + attr(c.Name) + `"><figcaption>`)
				w.text(c.Name)
				w.raw(`</figcaption></figure>`)
			}
			w.raw(`</div>`)
		}
		w.raw(`</section>`)
	})
}
