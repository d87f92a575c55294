// Package parser extracts SEO signals from raw HTML.
package parser

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// PageInfo aggregates everything the scorer and the link extractor need
// from a single page. Extraction is pure markup inspection; no network.
type PageInfo struct {
	HasTitle       bool
	Title          string
	TitleLength    int
	HasDescription bool
	Description    string
	H1Count        int
	ImageCount     int
	ImagesWithAlt  int
	WordCount      int
	Links          []string
}

// ParsePage parses HTML and extracts SEO signals and raw anchor hrefs.
// Missing elements yield false flags and zero counts; text is HTML-decoded
// and whitespace-collapsed. Title length is counted in runes.
func ParsePage(body []byte) (PageInfo, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return PageInfo{}, err
	}

	info := PageInfo{
		H1Count:   doc.Find("h1").Length(),
		WordCount: visibleWordCount(doc),
		Links:     parseLinks(doc),
	}

	parseTitle(doc, &info)
	parseDescription(doc, &info)
	parseImages(doc, &info)

	return info, nil
}

func parseTitle(doc *goquery.Document, info *PageInfo) {
	titleSelection := doc.Find("title").First()
	if titleSelection.Length() == 0 {
		return
	}

	info.HasTitle = true
	info.Title = cleanHumanText(titleSelection.Text())
	info.TitleLength = utf8.RuneCountInString(info.Title)
}

func parseDescription(doc *goquery.Document, info *PageInfo) {
	doc.Find("meta[name]").EachWithBreak(func(_ int, selection *goquery.Selection) bool {
		name, ok := selection.Attr("name")
		if !ok {
			return true
		}

		if !strings.EqualFold(strings.TrimSpace(name), "description") {
			return true
		}

		info.HasDescription = true
		content, _ := selection.Attr("content")
		info.Description = cleanHumanText(content)

		return false
	})
}

func parseImages(doc *goquery.Document, info *PageInfo) {
	doc.Find("img").Each(func(_ int, selection *goquery.Selection) {
		info.ImageCount++

		alt, ok := selection.Attr("alt")
		if ok && strings.TrimSpace(alt) != "" {
			info.ImagesWithAlt++
		}
	})
}

func parseLinks(doc *goquery.Document) []string {
	links := []string{}
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, ok := selection.Attr("href")
		if !ok {
			return
		}

		links = append(links, strings.TrimSpace(href))
	})

	return links
}

// visibleWordCount counts whitespace-separated words in the body text,
// excluding script, style, noscript, and template contents.
func visibleWordCount(doc *goquery.Document) int {
	body := doc.Find("body")
	if body.Length() == 0 {
		return 0
	}

	visible := body.Clone()
	visible.Find("script, style, noscript, template").Remove()

	return len(strings.Fields(visible.Text()))
}
