package narou

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"narou2epub/model"
)

type tocEntry struct {
	model.ChapterRef
	// Number is the episode number found in the link, 0 when absent.
	Number int
}

type tocPage struct {
	Found    bool
	Sections []string
	Entries  []tocEntry
	HasNext  bool
}

var episodeHrefRegexp = regexp.MustCompile(`/(\d+)/?$`)

// parseTOC extracts chapter links from a table of contents page. Both the
// current (.p-eplist) and the legacy (.index_box) layouts are understood.
// Found is false when the page has neither, which means a short story.
func parseTOC(doc *goquery.Document, section string) tocPage {
	page := tocPage{}

	var container *goquery.Selection
	var headingClass, entryClass, linkSel string
	if eplist := doc.Find(".p-eplist").First(); eplist.Length() > 0 {
		container = eplist
		headingClass, entryClass, linkSel = "p-eplist__chapter-title", "p-eplist__sublist", "a.p-eplist__subtitle"
	} else if box := doc.Find(".index_box").First(); box.Length() > 0 {
		container = box
		headingClass, entryClass, linkSel = "chapter_title", "novel_sublist2", "a"
	} else {
		return page
	}
	page.Found = true

	current := section
	container.Children().Each(func(_ int, s *goquery.Selection) {
		switch {
		case s.HasClass(headingClass):
			current = strings.TrimSpace(s.Text())
			page.Sections = append(page.Sections, current)
		case s.HasClass(entryClass):
			link := s.Find(linkSel).First()
			entry := tocEntry{
				ChapterRef: model.ChapterRef{
					Title:   strings.TrimSpace(link.Text()),
					Section: current,
				},
			}
			if href, ok := link.Attr("href"); ok {
				entry.URL = href
				if m := episodeHrefRegexp.FindStringSubmatch(href); m != nil {
					entry.Number, _ = strconv.Atoi(m[1])
				}
			}
			page.Entries = append(page.Entries, entry)
		}
	})

	page.HasNext = doc.Find("a.c-pager__item--next").Length() > 0
	return page
}

// parseEpisode extracts the body HTML of an episode page with web-only
// attributes removed. Preface, body and afterword are separated by <hr/>.
func parseEpisode(doc *goquery.Document) (title string, body string, images []model.ImageRef, err error) {
	var parts []string

	if novel := doc.Find(".p-novel__body").First(); novel.Length() > 0 {
		title = strings.TrimSpace(doc.Find(".p-novel__title").First().Text())
		prevKind := ""
		var innerErr error
		novel.Find(".p-novel__text").Each(func(_ int, s *goquery.Selection) {
			if innerErr != nil {
				return
			}
			kind := "body"
			switch {
			case s.HasClass("p-novel__text--preface"):
				kind = "preface"
			case s.HasClass("p-novel__text--afterword"):
				kind = "afterword"
			}
			if prevKind != "" && prevKind != kind {
				parts = append(parts, "<hr/>")
			}
			html, err := cleanSection(s)
			if err != nil {
				innerErr = err
				return
			}
			parts = append(parts, html)
			prevKind = kind
		})
		if innerErr != nil {
			return "", "", nil, innerErr
		}
	} else if honbun := doc.Find("#novel_honbun").First(); honbun.Length() > 0 {
		title = strings.TrimSpace(doc.Find(".novel_subtitle").First().Text())
		html, err := cleanSection(honbun)
		if err != nil {
			return "", "", nil, err
		}
		parts = append(parts, html)
	} else {
		return "", "", nil, fmt.Errorf("episode body not found")
	}

	body = strings.Join(parts, "\n")
	images, err = collectImages(body)
	if err != nil {
		return "", "", nil, err
	}
	return title, body, images, nil
}

// cleanSection strips style/class from every element and the line ids from
// paragraphs, unwraps image links, and returns the inner HTML.
func cleanSection(s *goquery.Selection) (string, error) {
	s.Find("*").Each(func(_ int, el *goquery.Selection) {
		el.RemoveAttr("style")
		el.RemoveAttr("class")
		if goquery.NodeName(el) == "p" {
			el.RemoveAttr("id")
		}
	})
	s.Find("a > img").Each(func(_ int, img *goquery.Selection) {
		img.RemoveAttr("border")
		img.Unwrap()
	})
	html, err := s.Html()
	if err != nil {
		return "", fmt.Errorf("render episode section: %w", err)
	}
	return strings.TrimSpace(html), nil
}

// collectImages lists the distinct downloadable <img> sources of a body in
// document order.
func collectImages(body string) ([]model.ImageRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse episode body: %w", err)
	}
	var images []model.ImageRef
	seen := map[string]bool{}
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		url := absoluteImageURL(src)
		if url == "" || seen[src] {
			return
		}
		seen[src] = true
		images = append(images, model.ImageRef{Src: src, URL: url})
	})
	return images, nil
}

func absoluteImageURL(src string) string {
	switch {
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return src
	default:
		return ""
	}
}
