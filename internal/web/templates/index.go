package templates

import (
	"strconv"

	"github.com/JonMunkholm/sheetqr/internal/core"
	"github.com/a-h/templ"
)

const styles = `
body{font-family:system-ui,sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem;color:#1f2933}
fieldset{border:1px solid #cbd2d9;border-radius:6px;margin:1rem 0;padding:1rem}
label{display:block;margin:.5rem 0 .25rem;font-weight:600}
.alert-error{background:#fde8e8;border:1px solid #f8b4b4;padding:.75rem;border-radius:6px}
.codes{display:grid;grid-template-columns:repeat(3,1fr);gap:1rem}
.codes figure{margin:0;text-align:center}
.codes img{width:100%;image-rendering:pixelated}
table{border-collapse:collapse}td,th{border:1px solid #e4e7eb;padding:.25rem .5rem}
`

// Index is the upload page. defaults pre-fill the render settings of the
// generate form shown after a file is loaded.
func Index(defaults core.RenderSpec) templ.Component {
	return component(func(w *writer) {
		w.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		w.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		w.raw(`<title>Sheet to QR</title><style>`)
		w.raw(styles)
		w.raw(`</style><script src="https://unpkg.com/htmx.org@1.9.12"></script></head><body>`)
		w.raw(`<h1>Sheet to QR</h1>`)
		w.raw(`<p>Upload a .xlsx or .csv file. Every row with a URL becomes one QR code image.</p>`)
		w.raw(`<form hx-post="/api/workbooks" hx-encoding="multipart/form-data" hx-target="#workbook">`)
		w.raw(`<input type="file" name="file" accept=".xlsx,.xlsm,.xls,.csv" required> `)
		w.raw(`<button type="submit">Load</button></form>`)
		w.rawf(`<div id="workbook" data-module-size="%d" data-border="%d" data-output-resolution="%d"></div>`,
			defaults.ModuleSize, defaults.Border, defaults.OutputResolution)
		w.raw(`<div id="batch"></div></body></html>`)
	})
}

// WorkbookSummary lists the sheets of a loaded file and the generate form.
func WorkbookSummary(s core.SessionSummary, defaults core.RenderSpec) templ.Component {
	return component(func(w *writer) {
		w.raw(`<section class="workbook"><h2>`)
		w.text(s.FileName)
		w.raw(`</h2><table><thead><tr><th>Sheet</th><th>Rows</th><th>URL columns</th></tr></thead><tbody>`)
		for _, sh := range s.Sheets {
			w.raw(`<tr><td>`)
			w.text(sh.Name)
			w.rawf(`</td><td>%d</td><td>`, sh.Rows)
			w.text(joinColumns(sh.URLColumns))
			w.raw(`</td></tr>`)
		}
		w.raw(`</tbody></table>`)

		if len(s.Sheets) == 0 {
			w.raw(`</section>`)
			return
		}
		first := s.Sheets[0]

		w.rawf(`<form hx-post="/api/workbooks/%s/generate" hx-target="#batch">`, pathEscape(s.ID))
		w.raw(`<fieldset><legend>Source</legend><label for="sheet">Sheet</label><select id="sheet" name="sheet">`)
		for _, sh := range s.Sheets {
			w.raw(`<option value="` + attr(sh.Name) + `">`)
			w.text(sh.Name)
			w.raw(`</option>`)
		}
		w.raw(`</select>`)

		w.raw(`<label for="url_column">URL column</label><select id="url_column" name="url_column">`)
		for _, col := range first.Columns {
			selected := ""
			if col == first.SuggestedURL {
				selected = " selected"
			}
			w.raw(`<option value="` + attr(col) + `"` + selected + `>`)
			w.text(col)
			w.raw(`</option>`)
		}
		w.raw(`</select>`)
		if first.NeedsURLInput {
			w.raw(`<p class="hint">No URL column was detected. Choose one manually.</p>`)
		}

		w.raw(`<label for="filename_columns">Filename columns</label>`)
		w.raw(`<select id="filename_columns" name="filename_columns" multiple required>`)
		for _, col := range first.Columns {
			w.raw(`<option value="` + attr(col) + `">`)
			w.text(col)
			w.raw(`</option>`)
		}
		w.raw(`</select>`)
		w.raw(`<label for="filename_separator">Separator</label>`)
		w.raw(`<input id="filename_separator" name="filename_separator" value="_" maxlength="3"></fieldset>`)

		w.raw(`<fieldset><legend>Image</legend>`)
		w.rawf(`<label for="module_size">Module size (px)</label><input id="module_size" name="module_size" type="number" min="%d" max="%d" value="%d">`,
			core.MinModuleSize, core.MaxModuleSize, defaults.ModuleSize)
		w.rawf(`<label for="border">Border (modules)</label><input id="border" name="border" type="number" min="%d" max="%d" value="%d">`,
			core.MinBorder, core.MaxBorder, defaults.Border)
		res := ""
		if defaults.OutputResolution > 0 {
			res = strconv.Itoa(defaults.OutputResolution)
		}
		w.raw(`<label for="output_resolution">Output size (px, empty for natural)</label>`)
		w.raw(`<input id="output_resolution" name="output_resolution" value="` + attr(res) + `"></fieldset>`)
		w.raw(`<button type="submit">Generate</button></form></section>`)
	})
}
