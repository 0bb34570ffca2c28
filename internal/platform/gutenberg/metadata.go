package gutenberg

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Metadata holds the descriptive fields scraped from a catalog page.
// Fields the page does not carry are left empty.
type Metadata struct {
	Title         string
	Author        string
	Language      string
	Description   string
	CoverImageURL *string
}

// ParseMetadata extracts book metadata from catalog page markup. Missing rows
// leave the matching field empty; only unreadable input is an error.
func ParseMetadata(markup string) (Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Metadata{}, fmt.Errorf("parse catalog markup: %w", err)
	}

	rows := doc.Find(".bibrec tr")
	md := Metadata{
		Title:       clean(rowValue(rows, "Title").Text()),
		Author:      clean(rowValue(rows, "Author").Find("a").First().Text()),
		Language:    clean(rowValue(rows, "Language").Text()),
		Description: clean(rowValue(rows, "Summary").Text()),
	}

	if src := coverImage(doc); src != "" {
		md.CoverImageURL = &src
	}
	return md, nil
}

// rowValue returns the value cell of the first row whose header equals label.
// When no header matches exactly, the first header containing label is used.
func rowValue(rows *goquery.Selection, label string) *goquery.Selection {
	header := func(row *goquery.Selection) string {
		return clean(row.Find("th").First().Text())
	}
	match := rows.FilterFunction(func(_ int, row *goquery.Selection) bool {
		return header(row) == label
	})
	if match.Length() == 0 {
		match = rows.FilterFunction(func(_ int, row *goquery.Selection) bool {
			return strings.Contains(header(row), label)
		})
	}
	return match.First().Find("td").First()
}

func coverImage(doc *goquery.Document) string {
	if src, ok := doc.Find("#cover .cover-art").First().Attr("src"); ok && strings.TrimSpace(src) != "" {
		return strings.TrimSpace(src)
	}
	if src, ok := doc.Find("img.cover-art").First().Attr("src"); ok && strings.TrimSpace(src) != "" {
		return strings.TrimSpace(src)
	}
	if src, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		return strings.TrimSpace(src)
	}
	return ""
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
