package normalize

import (
	"strings"

	"github.com/ppiankov/verifact/internal/errs"
	"golang.org/x/net/html"
)

// MaxPageRunes bounds the visible text taken from a fetched page
const MaxPageRunes = 5000

// Page is the readable content of an HTML document
type Page struct {
	Title string
	Text  string
}

// ExtractPage parses an HTML document and returns its title and visible text
func ExtractPage(body string) (Page, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return Page{}, errs.Wrap(errs.KindInput, "parse html", err)
	}

	var (
		title strings.Builder
		text  strings.Builder
	)

	var walk func(*html.Node, bool)
	walk = func(n *html.Node, inTitle bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "svg", "nav", "footer":
				return
			case "title":
				inTitle = true
			}
		}

		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				if inTitle {
					title.WriteString(s)
					title.WriteString(" ")
				} else {
					text.WriteString(s)
					text.WriteString(" ")
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inTitle)
		}
	}
	walk(doc, false)

	return Page{
		Title: strings.TrimSpace(title.String()),
		Text:  Truncate(strings.TrimSpace(text.String()), MaxPageRunes),
	}, nil
}

// NormalizeHTML extracts the visible text of a page and normalizes it as a
// claim. The title leads the claim text when present.
func NormalizeHTML(body, lang string) (Claim, error) {
	page, err := ExtractPage(body)
	if err != nil {
		return Claim{}, err
	}
	raw := page.Text
	if page.Title != "" {
		raw = page.Title + ". " + raw
	}
	return Normalize(Truncate(raw, MaxPageRunes), lang)
}
