package cart

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var ErrNoItems = errors.New("no cart items found")

// ParseHTML extracts cart lines from a saved order confirmation page.
// Elements carrying data-item-name (plus data-quantity and data-unit) are
// preferred; otherwise list items and table rows are parsed as text lines.
func ParseHTML(r io.Reader) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, nav, footer, iframe").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	var items []Item
	var firstErr error

	doc.Find("[data-item-name]").Each(func(i int, s *goquery.Selection) {
		name, _ := s.Attr("data-item-name")
		qtyText, _ := s.Attr("data-quantity")
		unit, _ := s.Attr("data-unit")

		qty, parsedUnit, err := ParseQuantity(strings.TrimSpace(qtyText + " " + unit))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("item %q: %w", name, err)
			}
			return
		}
		items = append(items, Item{Name: strings.TrimSpace(name), Quantity: qty, Unit: parsedUnit})
	})
	if firstErr != nil {
		return nil, firstErr
	}
	if len(items) > 0 {
		return items, nil
	}

	doc.Find("li, tr").Each(func(i int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		item, err := ParseLine(text)
		if err != nil {
			// Headers, totals and other noise rows.
			return
		}
		items = append(items, item)
	})

	if len(items) == 0 {
		return nil, ErrNoItems
	}
	return items, nil
}
