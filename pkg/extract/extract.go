// Package extract turns the wiki's support card list page into catalog cards.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/go-shiori/dom"
	"golang.org/x/net/html"

	"github.com/Lusbox/umasparkmaker/pkg/catalog"
)

const (
	// DefaultOrigin is prepended to site-relative image and page links.
	DefaultOrigin = "https://umamusu.wiki"

	fileSelector   = `span[typeof="mw:File"]`
	namePrefix     = "Game:"
	rarityMarker   = "SSR"
	thumbEndpoint  = "/w/thumb.php"
	highDensityTag = "2x"
)

// Extractor pulls cards out of a parsed document.
type Extractor struct {
	// Origin is the scheme and host used to absolutise relative URLs.
	Origin string
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// FromHTML parses body and extracts cards using DefaultOrigin.
func FromHTML(body []byte, filterSSR bool) ([]catalog.Card, error) {
	doc, err := Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return Extract(doc, filterSSR), nil
}

// Extract runs an Extractor with DefaultOrigin.
func Extract(doc *html.Node, filterSSR bool) []catalog.Card {
	return Extractor{Origin: DefaultOrigin}.Extract(doc, filterSSR)
}

// Extract returns one card per embedded file element that wraps both a link
// and an image. With filterSSR set, cards whose name lacks "SSR" are skipped.
// Elements that produce no name or no image are ignored, and a name seen
// twice keeps its first card.
func (e Extractor) Extract(doc *html.Node, filterSSR bool) []catalog.Card {
	if doc == nil {
		return nil
	}
	origin := strings.TrimRight(e.Origin, "/")

	var cards []catalog.Card
	seen := make(map[string]struct{})
	for _, span := range dom.QuerySelectorAll(doc, fileSelector) {
		link := dom.QuerySelector(span, "a")
		img := dom.QuerySelector(span, "img")
		if link == nil || img == nil {
			continue
		}

		name := strings.TrimPrefix(dom.GetAttribute(link, "title"), namePrefix)
		if filterSSR && !strings.Contains(name, rarityMarker) {
			continue
		}
		name = strings.TrimSpace(name)

		image := imageURL(img, origin)
		if name == "" || image == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		cards = append(cards, catalog.Card{
			Name:  name,
			Image: image,
			Link:  linkURL(dom.GetAttribute(link, "href"), origin),
		})
	}
	return cards
}

// imageURL prefers the 2x srcset candidate over src.
func imageURL(img *html.Node, origin string) string {
	src := absThumb(dom.GetAttribute(img, "src"), origin)

	srcset := dom.GetAttribute(img, "srcset")
	if srcset == "" {
		return src
	}
	for _, candidate := range strings.Split(srcset, ",") {
		candidate = strings.TrimSpace(candidate)
		if !strings.HasSuffix(candidate, highDensityTag) {
			continue
		}
		fields := strings.Fields(candidate)
		if len(fields) > 0 {
			return absThumb(fields[0], origin)
		}
		break
	}
	return src
}

func absThumb(u, origin string) string {
	if strings.HasPrefix(u, thumbEndpoint) {
		return origin + u
	}
	return u
}

func linkURL(href, origin string) string {
	if strings.HasPrefix(href, "/") {
		return origin + href
	}
	return href
}
