package api

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// renderHTML turns a Markdown summary into a standalone page.
func renderHTML(title, summary string) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(summary), &body); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	out.WriteString(html.EscapeString(title))
	out.WriteString("</title></head><body>\n<h1>")
	out.WriteString(html.EscapeString(title))
	out.WriteString("</h1>\n")
	out.Write(body.Bytes())
	out.WriteString("</body></html>\n")
	return out.Bytes(), nil
}
