package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SiteProfile carries the per-retailer DOM selectors the inventory resolver
// works against. Menu platforms differ in markup but not in structure, so one
// profile per platform is usually enough; the default profile covers the
// common rendering model.
type SiteProfile struct {
	// Listing page.
	ListingReadySelector string `yaml:"listing_ready"`
	RowSelector          string `yaml:"row_selector"`
	ProductLinkSelector  string `yaml:"product_link"`

	// Inventory extraction on a product page.
	QuantitySelectSelector string `yaml:"quantity_select"`
	QuantityInputSelector  string `yaml:"quantity_input"`
	BadgeSelector          string `yaml:"badge_selector"`

	// Cart controls for the overflow probe.
	AddToCartSelector  string `yaml:"add_to_cart"`
	CartErrorSelector  string `yaml:"cart_error"`
	CartClearSelector  string `yaml:"cart_clear"`
	CartOverflowAmount int    `yaml:"cart_overflow_amount"`

	// Per-product deep resolution from a listing page. Zero disables it.
	DeepResolveLimit int `yaml:"deep_resolve_limit"`
}

type Profiles map[string]SiteProfile

// DefaultProfile returns the selector set for the common client-rendered
// menu layout. Named profiles override it per retailer.
func DefaultProfile() SiteProfile {
	return SiteProfile{
		ListingReadySelector:   ".product-list, [data-testid='product-list']",
		RowSelector:            ".product-list-item, [data-testid='product-list-item']",
		ProductLinkSelector:    "a[href]",
		QuantitySelectSelector: "select.quantity-select, select[name='quantity']",
		QuantityInputSelector:  "input[type='number'][name='quantity'], input.quantity-input",
		BadgeSelector:          ".out-of-stock, .sold-out, [data-out-of-stock]",
		AddToCartSelector:      "button.add-to-cart, [data-testid='add-to-cart']",
		CartErrorSelector:      ".cart-error, .validation-message, [role='alert']",
		CartClearSelector:      "button.remove-item, [data-testid='remove-item']",
		CartOverflowAmount:     99,
	}
}

// LoadProfiles reads named site profiles from a YAML file. Fields left empty
// in a named profile fall back to the default selector set. A missing path
// yields just the default profile.
func LoadProfiles(path string) (Profiles, error) {
	profiles := Profiles{"default": DefaultProfile()}
	if path == "" {
		return profiles, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site profiles: %w", err)
	}
	var raw map[string]SiteProfile
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse site profiles: %w", err)
	}
	for name, p := range raw {
		profiles[name] = mergeProfile(DefaultProfile(), p)
	}
	return profiles, nil
}

// Get returns the named profile, falling back to the default set.
func (p Profiles) Get(name string) SiteProfile {
	if prof, ok := p[name]; ok && name != "" {
		return prof
	}
	return p["default"]
}

func mergeProfile(base, override SiteProfile) SiteProfile {
	pick := func(o, b string) string {
		if o != "" {
			return o
		}
		return b
	}
	return SiteProfile{
		ListingReadySelector:   pick(override.ListingReadySelector, base.ListingReadySelector),
		RowSelector:            pick(override.RowSelector, base.RowSelector),
		ProductLinkSelector:    pick(override.ProductLinkSelector, base.ProductLinkSelector),
		QuantitySelectSelector: pick(override.QuantitySelectSelector, base.QuantitySelectSelector),
		QuantityInputSelector:  pick(override.QuantityInputSelector, base.QuantityInputSelector),
		BadgeSelector:          pick(override.BadgeSelector, base.BadgeSelector),
		AddToCartSelector:      pick(override.AddToCartSelector, base.AddToCartSelector),
		CartErrorSelector:      pick(override.CartErrorSelector, base.CartErrorSelector),
		CartClearSelector:      pick(override.CartClearSelector, base.CartClearSelector),
		CartOverflowAmount:     pickInt(override.CartOverflowAmount, base.CartOverflowAmount),
		DeepResolveLimit:       pickInt(override.DeepResolveLimit, base.DeepResolveLimit),
	}
}

func pickInt(o, b int) int {
	if o != 0 {
		return o
	}
	return b
}
