package argot

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// ViewFuncs holds the HTML components the board renders. Callers may replace
// any of them with their own templ components; DefaultViews fills the rest.
type ViewFuncs struct {
	Post        func(post Post, comments []*CommentNode) templ.Component
	NotFound    func() templ.Component
	ServerError func() templ.Component
}

// DefaultViews returns plain HTML components titled with the board name.
func DefaultViews(boardName string) ViewFuncs {
	return ViewFuncs{
		Post: func(post Post, comments []*CommentNode) templ.Component {
			return page(post.Title+" · "+boardName, func(w *htmlWriter) {
				writePost(w, post)
				w.raw(`<section class="comments">`)
				writeComments(w, comments)
				w.raw(`</section>`)
			})
		},
		NotFound: func() templ.Component {
			return page("Not found · "+boardName, func(w *htmlWriter) {
				w.raw(`<h1>Not found</h1><p>That page does not exist.</p>`)
			})
		},
		ServerError: func() templ.Component {
			return page("Error · "+boardName, func(w *htmlWriter) {
				w.raw(`<h1>Something went wrong</h1><p>Try again in a moment.</p>`)
			})
		},
	}
}

func (v *ViewFuncs) fill(def ViewFuncs) {
	if v.Post == nil {
		v.Post = def.Post
	}
	if v.NotFound == nil {
		v.NotFound = def.NotFound
	}
	if v.ServerError == nil {
		v.ServerError = def.ServerError
	}
}

// htmlWriter keeps the first write error so component bodies can write
// without checking each call.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(html.EscapeString(s))
}

func page(title string, body func(*htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		hw.text(title)
		hw.raw(`</title></head><body><main>`)
		body(hw)
		hw.raw(`</main></body></html>`)
		return hw.err
	})
}

func writePost(w *htmlWriter, p Post) {
	w.raw(`<article class="post"><h1>`)
	if p.Link != "" {
		w.raw(`<a href="`)
		w.text(string(templ.URL(p.Link)))
		w.raw(`" rel="nofollow noopener">`)
		w.text(p.Title)
		w.raw(`</a>`)
	} else {
		w.text(p.Title)
	}
	w.raw(`</h1><p class="meta">`)
	w.text(fmt.Sprintf("by %s on %s", p.Author, p.Posted.UTC().Format("2006-01-02 15:04")))
	w.raw(`</p>`)
	if len(p.Tags) > 0 {
		w.raw(`<ul class="tags">`)
		for _, t := range p.Tags {
			w.raw(`<li>`)
			w.text(t)
			w.raw(`</li>`)
		}
		w.raw(`</ul>`)
	}
	writeParagraphs(w, p.Content)
	w.raw(`</article>`)
}

func writeComments(w *htmlWriter, nodes []*CommentNode) {
	if len(nodes) == 0 {
		return
	}
	w.raw(`<ul class="thread">`)
	for _, n := range nodes {
		w.raw(`<li id="c-`)
		w.text(n.ID)
		w.raw(`"><p class="meta">`)
		w.text(n.Author)
		w.raw(`</p>`)
		writeParagraphs(w, n.Content)
		writeComments(w, n.Replies)
		w.raw(`</li>`)
	}
	w.raw(`</ul>`)
}

// writeParagraphs renders blank-line separated text as escaped paragraphs.
func writeParagraphs(w *htmlWriter, text string) {
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		w.raw(`<p>`)
		w.raw(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		w.raw(`</p>`)
	}
}
