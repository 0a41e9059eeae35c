// Package epub assembles proofread chapters and processed images into a
// vertical-writing EPUB 3 container with an EPUB 2 NCX fallback.
package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"
	"github.com/google/uuid"

	"narou2epub/imageproc"
	"narou2epub/model"
	"narou2epub/template"
)

const (
	opfPath    = "OEBPS/content.opf"
	ncxPath    = "OEBPS/toc.ncx"
	stylePath  = "OEBPS/Styles/style.css"
	textDir    = "OEBPS/Text/"
	imagesDir  = "OEBPS/Images/"
	bookIDAttr = "book-id"
)

// Book is everything needed to build one EPUB.
type Book struct {
	WorkID    model.WorkID
	Title     string
	Author    string
	SourceURL string
	// Chapters are proofread and in ascending index order.
	Chapters []model.Chapter
	// Total is the number of published chapters, shown in episode headers.
	Total int
	// Images maps an <img src> value to its processed image. Images without
	// an entry are removed from the chapter.
	Images map[string]*imageproc.Image
	// Modified becomes dcterms:modified.
	Modified time.Time
}

// Identifier is the stable book identifier derived from the source URL.
func (b *Book) Identifier() string {
	name := b.SourceURL
	if name == "" {
		name = b.WorkID.String()
	}
	return "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func (b *Book) validate() error {
	if len(b.Chapters) == 0 {
		return model.ErrEmptyBook
	}
	for i := 1; i < len(b.Chapters); i++ {
		if b.Chapters[i].Index <= b.Chapters[i-1].Index {
			return fmt.Errorf("chapter %d follows chapter %d", b.Chapters[i].Index, b.Chapters[i-1].Index)
		}
	}
	return nil
}

func chapterFile(index int) string {
	return fmt.Sprintf("ep_%05d.xhtml", index)
}

type embeddedImage struct {
	id    string
	name  string
	image *imageproc.Image
}

// Stats describes what went into a built book.
type Stats struct {
	Chapters      int
	Images        int
	DroppedImages int
	// DroppedSources lists the distinct src values of removed images in
	// order of first occurrence.
	DroppedSources []string
}

// Build writes the EPUB container to w. The output is a function of the book
// alone; building the same book twice yields identical bytes. Errors are
// *model.AssemblyError.
func Build(ctx context.Context, book *Book, w io.Writer) (Stats, error) {
	var stats Stats
	if err := book.validate(); err != nil {
		return stats, &model.AssemblyError{Cause: err}
	}

	images := map[string]*embeddedImage{}
	var imageOrder []*embeddedImage
	pages := make([]string, 0, len(book.Chapters))
	entries := make([]template.NavEntry, 0, len(book.Chapters))

	total := max(book.Total, book.Chapters[len(book.Chapters)-1].Index)
	prevSection := ""
	droppedSeen := map[string]bool{}
	for _, ch := range book.Chapters {
		if err := ctx.Err(); err != nil {
			return stats, &model.AssemblyError{Cause: err}
		}
		body, dropped, err := rewriteImages(ch.Body, func(src string) (string, bool) {
			img, ok := book.Images[src]
			if !ok || img == nil {
				return "", false
			}
			e, ok := images[src]
			if !ok {
				n := len(imageOrder) + 1
				e = &embeddedImage{
					id:    fmt.Sprintf("img_%04d", n),
					name:  fmt.Sprintf("img_%04d%s", n, img.Extension),
					image: img,
				}
				images[src] = e
				imageOrder = append(imageOrder, e)
			}
			return "../Images/" + e.name, true
		})
		if err != nil {
			return stats, &model.AssemblyError{Cause: fmt.Errorf("chapter %d: %w", ch.Index, err)}
		}
		stats.DroppedImages += len(dropped)
		for _, src := range dropped {
			if !droppedSeen[src] {
				droppedSeen[src] = true
				stats.DroppedSources = append(stats.DroppedSources, src)
			}
		}

		page := template.ChapterPage{
			Index: ch.Index,
			Total: total,
			Title: ch.DisplayTitle(),
			Body:  body,
		}
		if ch.Section != "" && ch.Section != prevSection {
			page.Section = ch.Section
		}
		prevSection = ch.Section

		html, err := renderString(ctx, template.ContentXHTML(page))
		if err != nil {
			return stats, &model.AssemblyError{Cause: fmt.Errorf("chapter %d: %w", ch.Index, err)}
		}
		pages = append(pages, html)
		entries = append(entries, template.NavEntry{
			Href:    chapterFile(ch.Index),
			Title:   ch.DisplayTitle(),
			Section: ch.Section,
		})
	}
	stats.Chapters = len(book.Chapters)
	stats.Images = len(imageOrder)

	p, err := newPacker(w)
	if err != nil {
		return stats, &model.AssemblyError{Cause: err}
	}
	files, err := book.documents(ctx, entries, imageOrder)
	if err != nil {
		return stats, &model.AssemblyError{Cause: err}
	}
	for _, f := range files {
		if err := p.addString(f.name, f.content); err != nil {
			return stats, &model.AssemblyError{Cause: err}
		}
	}
	for i, html := range pages {
		if err := p.addString(textDir+chapterFile(book.Chapters[i].Index), html); err != nil {
			return stats, &model.AssemblyError{Cause: err}
		}
	}
	for _, img := range imageOrder {
		if err := p.add(imagesDir+img.name, img.image.Data, zipMethod(img.image.MediaType)); err != nil {
			return stats, &model.AssemblyError{Cause: err}
		}
	}
	if err := p.close(); err != nil {
		return stats, &model.AssemblyError{Cause: fmt.Errorf("failed to finish zip: %w", err)}
	}
	return stats, nil
}

type document struct {
	name    string
	content string
}

// documents renders the container, package, navigation, title page and
// stylesheet files.
func (b *Book) documents(ctx context.Context, entries []template.NavEntry, images []*embeddedImage) ([]document, error) {
	id := b.Identifier()

	container, err := renderString(ctx, template.ContainerXML(opfPath))
	if err != nil {
		return nil, fmt.Errorf("failed to render container: %w", err)
	}
	opf, err := renderString(ctx, template.ContentOPF(bookIDAttr, b.metadata(id), b.manifest(images), b.spine(), b.guide()))
	if err != nil {
		return nil, fmt.Errorf("failed to render content opf: %w", err)
	}

	navMap := &model.NavMap{}
	navMap.Append("titlepage", b.Title, "Text/titlepage.xhtml")
	for i, ch := range b.Chapters {
		navMap.Append(fmt.Sprintf("np_%05d", ch.Index), entries[i].Title, "Text/"+chapterFile(ch.Index))
	}
	ncx, err := renderString(ctx, template.TocNCX(b.Title, model.NewTocNCXHead(id, 1), navMap))
	if err != nil {
		return nil, fmt.Errorf("failed to render toc ncx: %w", err)
	}
	nav, err := renderString(ctx, template.NavXHTML(b.Title, entries))
	if err != nil {
		return nil, fmt.Errorf("failed to render nav: %w", err)
	}
	title, err := renderString(ctx, template.TitlePage(b.Title, b.Author, entries))
	if err != nil {
		return nil, fmt.Errorf("failed to render title page: %w", err)
	}

	return []document{
		{"META-INF/container.xml", container},
		{opfPath, opf},
		{ncxPath, ncx},
		{stylePath, template.StyleCSS},
		{textDir + "nav.xhtml", nav},
		{textDir + "titlepage.xhtml", title},
	}, nil
}

func (b *Book) metadata(id string) *model.DublinCoreMetadata {
	modified := b.Modified
	if modified.IsZero() {
		modified = time.Now()
	}
	dc := &model.DublinCoreMetadata{
		Titles:      []model.DCTitle{{Value: b.Title, ID: "title"}},
		Identifiers: []model.DCIdentifier{{Value: id, ID: bookIDAttr}},
		Languages:   []model.DCLanguage{{Value: "ja"}},
		Publishers:  []model.DCPublisher{{Value: "小説家になろう"}},
		Metas: []model.DublinCoreMeta{
			{Property: "dcterms:modified", Value: modified.UTC().Format("2006-01-02T15:04:05Z")},
			{Property: "rendition:layout", Value: "reflowable"},
			{Name: "primary-writing-mode", Content: "vertical-rl"},
		},
	}
	if b.Author != "" {
		dc.Creators = []model.DCCreator{{Value: b.Author, ID: "creator"}}
	}
	if b.SourceURL != "" {
		dc.Sources = []model.DCSource{{Value: b.SourceURL}}
	}
	return dc
}

func (b *Book) manifest(images []*embeddedImage) *model.Manifest {
	m := &model.Manifest{Items: []model.ManifestItem{
		{ID: "ncx", Link: "toc.ncx", Media: "application/x-dtbncx+xml"},
		{ID: "nav", Link: "Text/nav.xhtml", Media: "application/xhtml+xml", Properties: "nav"},
		{ID: "style", Link: "Styles/style.css", Media: "text/css"},
		{ID: "titlepage", Link: "Text/titlepage.xhtml", Media: "application/xhtml+xml"},
	}}
	for _, ch := range b.Chapters {
		m.Items = append(m.Items, model.ManifestItem{
			ID:    strings.TrimSuffix(chapterFile(ch.Index), ".xhtml"),
			Link:  "Text/" + chapterFile(ch.Index),
			Media: "application/xhtml+xml",
		})
	}
	for _, img := range images {
		m.Items = append(m.Items, model.ManifestItem{
			ID:    img.id,
			Link:  "Images/" + img.name,
			Media: img.image.MediaType,
		})
	}
	return m
}

func (b *Book) spine() *model.Spine {
	s := &model.Spine{
		Toc:                      "ncx",
		PageProgressionDirection: "rtl",
		Items:                    []model.SpineItem{{IDref: "titlepage"}},
	}
	for _, ch := range b.Chapters {
		s.Items = append(s.Items, model.SpineItem{IDref: strings.TrimSuffix(chapterFile(ch.Index), ".xhtml")})
	}
	return s
}

func (b *Book) guide() *model.Guide {
	return &model.Guide{Items: []model.GuideItem{
		{Title: "目次", Type: "toc", Link: "Text/titlepage.xhtml"},
		{Title: "本文", Type: "text", Link: "Text/" + chapterFile(b.Chapters[0].Index)},
	}}
}

// rewriteImages points every <img> at its embedded file and removes the ones
// lookup does not know. It returns the trimmed src of every removed image.
func rewriteImages(body string, lookup func(src string) (string, bool)) (string, []string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse body: %w", err)
	}
	var dropped []string
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		href, ok := lookup(src)
		if !ok {
			img.Remove()
			dropped = append(dropped, src)
			return
		}
		img.SetAttr("src", href)
		if _, ok := img.Attr("alt"); !ok {
			img.SetAttr("alt", "")
		}
	})
	html, err := doc.Find("body").Html()
	if err != nil {
		return "", nil, fmt.Errorf("failed to render body: %w", err)
	}
	return html, dropped, nil
}

func renderString(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// zipMethod stores already compressed image formats.
func zipMethod(mediaType string) uint16 {
	switch mediaType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return zip.Store
	}
	return zip.Deflate
}
