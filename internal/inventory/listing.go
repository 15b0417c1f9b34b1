package inventory

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"menuharvest/internal/config"
)

// ListingRow is one product row lifted from a listing page: its raw text
// (fed to the normalizer downstream), the product link if the row carries
// one, and whatever inventory the cheap strategies could read in place.
type ListingRow struct {
	Text       string
	ProductURL string
	Inventory  Result
}

// ResolveListing applies the page-text and badge strategies to every
// visible row of a listing page in a single DOM pass. No per-item slow
// strategies run here: throughput over completeness.
func (r *Resolver) ResolveListing(html string, profile config.SiteProfile) ([]ListingRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	var rows []ListingRow
	doc.Find(profile.RowSelector).Each(func(_ int, sel *goquery.Selection) {
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if text == "" {
			return
		}
		row := ListingRow{
			Text:      text,
			Inventory: Result{InStock: true, Source: SourceUnknown, Confidence: ConfidenceBoolean},
		}
		if href, ok := sel.Find(profile.ProductLinkSelector).First().Attr("href"); ok {
			row.ProductURL = strings.TrimSpace(href)
		}

		if qty, phrase := matchQuantity(text); qty != nil {
			row.Inventory = Result{
				Quantity:        qty,
				QuantityWarning: phrase,
				InStock:         *qty > 0,
				Source:          SourcePageText,
				Confidence:      ConfidenceExact,
			}
		} else if rowOutOfStock(sel, text, profile) {
			row.Inventory = Result{
				Quantity:        intPtr(0),
				QuantityWarning: "out of stock",
				InStock:         false,
				Source:          SourceBadge,
				Confidence:      ConfidenceExact,
			}
		}
		rows = append(rows, row)
	})
	return rows, nil
}

func rowOutOfStock(sel *goquery.Selection, text string, profile config.SiteProfile) bool {
	if sel.Find(profile.BadgeSelector).Length() > 0 {
		return true
	}
	lower := strings.ToLower(text)
	return strings.Contains(lower, "out of stock") || strings.Contains(lower, "sold out")
}
