// Package templates holds the HTML pages and HTMX fragments served by the web
// package. Components are plain templ.Component values so handlers can render
// them the same way as generated templ code.
package templates

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
)

// PreviewLimit is how many code images the batch summary shows inline.
const PreviewLimit = 9

type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) rawf(format string, args ...any) {
	w.raw(fmt.Sprintf(format, args...))
}

func component(fn func(w *writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		fn(w)
		return w.err
	})
}

func attr(s string) string {
	return templ.EscapeString(s)
}

func pathEscape(s string) string {
	return url.PathEscape(s)
}

// ErrorAlert is the fragment returned to HTMX requests that failed.
func ErrorAlert(message, action, code string) templ.Component {
	return component(func(w *writer) {
		w.raw(`<div class="alert alert-error" role="alert"><p class="alert-message">`)
		w.text(message)
		w.raw(`</p>`)
		if action != "" {
			w.raw(`<p class="alert-action">`)
			w.text(action)
			w.raw(`</p>`)
		}
		if code != "" {
			w.raw(`<p class="alert-code">Code: `)
			w.text(code)
			w.raw(`</p>`)
		}
		w.raw(`</div>`)
	})
}

// joinColumns renders column names for display.
func joinColumns(cols []string) string {
	if len(cols) == 0 {
		return "none detected"
	}
	return strings.Join(cols, ", ")
}
