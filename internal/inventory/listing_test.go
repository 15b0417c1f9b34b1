package inventory

import (
	"testing"
)

const listingHTML = `
<html><body>
<div class="product-row">
  <a class="product-link" href="/products/chem-91">Chem 91</a>
  <span>Splash | Flower | 3.5g | Chem 91 Hybrid THC: 25.9%</span>
  <span>Hurry, 3 left in stock</span>
</div>
<div class="product-row">
  <a class="product-link" href="/products/blue-dream">Blue Dream</a>
  <span>Blue Dream - Quarter Ounce - Hybrid</span>
  <span class="oos-badge">Sold Out</span>
</div>
<div class="product-row">
  <a class="product-link" href="/products/runtz">Runtz</a>
  <span>Runtz THC: 30%</span>
</div>
<div class="product-row"></div>
</body></html>`

func TestResolveListing(t *testing.T) {
	profile := testProfile()
	profile.RowSelector = ".product-row"
	profile.ProductLinkSelector = ".product-link"

	rows, err := NewResolver().ResolveListing(listingHTML, profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The empty row contributes nothing.
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	first := rows[0]
	if first.ProductURL != "/products/chem-91" {
		t.Errorf("url = %q, want /products/chem-91", first.ProductURL)
	}
	if first.Inventory.Quantity == nil || *first.Inventory.Quantity != 3 {
		t.Errorf("quantity = %v, want 3 from in-place page text", first.Inventory.Quantity)
	}
	if first.Inventory.Source != SourcePageText || first.Inventory.Confidence != ConfidenceExact {
		t.Errorf("got %s/%s, want page-text/exact", first.Inventory.Source, first.Inventory.Confidence)
	}

	second := rows[1]
	if second.Inventory.Quantity == nil || *second.Inventory.Quantity != 0 {
		t.Errorf("quantity = %v, want exact 0 from badge", second.Inventory.Quantity)
	}
	if second.Inventory.InStock {
		t.Error("badge row must read as out of stock")
	}
	if second.Inventory.Source != SourceBadge {
		t.Errorf("source = %s, want out-of-stock-badge", second.Inventory.Source)
	}

	third := rows[2]
	if third.Inventory.Confidence != ConfidenceBoolean || third.Inventory.Quantity != nil {
		t.Errorf("got %+v, want boolean fallback for an unmarked row", third.Inventory)
	}
	if !third.Inventory.InStock {
		t.Error("unmarked row defaults to in stock")
	}
}

func TestResolveListingNoRows(t *testing.T) {
	profile := testProfile()
	profile.RowSelector = ".product-row"

	rows, err := NewResolver().ResolveListing("<html><body><p>menu loading</p></body></html>", profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want 0", len(rows))
	}
}
