// Package template renders the XHTML and XML documents of an EPUB.
package template

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const xhtmlHead = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" xml:lang="ja" lang="ja">
<head>
<meta charset="UTF-8"/>
<title>%s</title>
<link rel="stylesheet" type="text/css" href="%s"/>
</head>
`

// StylesheetHref is the stylesheet location relative to Text/ documents.
const StylesheetHref = "../Styles/style.css"

// ChapterPage describes one episode document.
type ChapterPage struct {
	Index int
	Total int
	Title string
	// Section is shown above the title when the episode opens a new section.
	Section string
	// Body is trusted XHTML.
	Body string
}

// ContentXHTML renders an episode page.
func ContentXHTML(page ChapterPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, xhtmlHead, templ.EscapeString(page.Title), StylesheetHref)
		b.WriteString("<body>\n<div class=\"main\">\n")
		fmt.Fprintf(&b, "<p class=\"episode-number\">#%d / %d</p>\n", page.Index, page.Total)
		if page.Section != "" {
			fmt.Fprintf(&b, "<h3 class=\"section\">%s</h3>\n", templ.EscapeString(page.Section))
		}
		fmt.Fprintf(&b, "<h2>%s</h2>\n", templ.EscapeString(page.Title))
		b.WriteString(page.Body)
		b.WriteString("\n</div>\n</body>\n</html>\n")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// NavEntry is a table of contents line.
type NavEntry struct {
	Href    string
	Title   string
	Section string
}

// TitlePage renders the title, the author and a linked table of contents.
func TitlePage(title, author string, entries []NavEntry) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, xhtmlHead, templ.EscapeString(title), StylesheetHref)
		b.WriteString("<body>\n<div class=\"main\">\n")
		fmt.Fprintf(&b, "<h1>%s</h1>\n", templ.EscapeString(title))
		if author != "" {
			fmt.Fprintf(&b, "<p class=\"author\">%s</p>\n", templ.EscapeString(author))
		}
		writeTocList(&b, "toc", entries)
		b.WriteString("</div>\n</body>\n</html>\n")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// NavXHTML renders the EPUB 3 navigation document.
func NavXHTML(title string, entries []NavEntry) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, xhtmlHead, templ.EscapeString(title), StylesheetHref)
		b.WriteString("<body>\n<nav epub:type=\"toc\" id=\"toc\">\n")
		b.WriteString("<h1>目次</h1>\n")
		writeTocList(&b, "toc", entries)
		b.WriteString("</nav>\n</body>\n</html>\n")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// writeTocList writes entries as an ordered list. Consecutive entries of the
// same section are nested under the section heading.
func writeTocList(b *strings.Builder, class string, entries []NavEntry) {
	fmt.Fprintf(b, "<ol class=\"%s\">\n", class)
	for i := 0; i < len(entries); {
		section := entries[i].Section
		if section == "" {
			writeTocLink(b, entries[i])
			i++
			continue
		}
		j := i
		for j < len(entries) && entries[j].Section == section {
			j++
		}
		fmt.Fprintf(b, "<li><span>%s</span>\n<ol>\n", templ.EscapeString(section))
		for _, e := range entries[i:j] {
			writeTocLink(b, e)
		}
		b.WriteString("</ol>\n</li>\n")
		i = j
	}
	b.WriteString("</ol>\n")
}

func writeTocLink(b *strings.Builder, e NavEntry) {
	fmt.Fprintf(b, "<li><a href=\"%s\">%s</a></li>\n", templ.EscapeString(e.Href), templ.EscapeString(e.Title))
}
