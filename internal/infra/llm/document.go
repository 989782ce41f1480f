package llm

import (
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoDocument is returned when a completion does not contain usable HTML.
var ErrNoDocument = errors.New("completion contains no HTML document")

var fencedBlock = regexp.MustCompile("(?s)```[ \t]*(?:html|HTML)?[ \t]*\r?\n(.*?)```")

// Document is an extracted index.html.
type Document struct {
	Source string
	Title  string
}

// ExtractDocument pulls the HTML out of a model reply. Markdown fences are
// stripped, the markup must parse with at least one body element, and a doctype is
// prepended when missing.
func ExtractDocument(reply string) (Document, error) {
	source := strings.TrimSpace(reply)
	if match := fencedBlock.FindStringSubmatch(source); match != nil {
		source = strings.TrimSpace(match[1])
	}
	if !strings.Contains(source, "<") {
		return Document{}, ErrNoDocument
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return Document{}, errors.Join(ErrNoDocument, err)
	}
	if doc.Find("body").Children().Length() == 0 {
		return Document{}, ErrNoDocument
	}

	if !strings.HasPrefix(strings.ToLower(source), "<!doctype") {
		source = "<!DOCTYPE html>\n" + source
	}
	return Document{
		Source: source,
		Title:  strings.TrimSpace(doc.Find("title").First().Text()),
	}, nil
}
