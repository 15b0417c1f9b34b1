package normalizer

// Category classifies a menu product line.
type Category string

const (
	CategoryFlower      Category = "flower"
	CategoryPreRoll     Category = "pre_roll"
	CategoryVape        Category = "vape"
	CategoryEdible      Category = "edible"
	CategoryConcentrate Category = "concentrate"
	CategoryTincture    Category = "tincture"
	CategoryTopical     Category = "topical"
	CategoryOther       Category = "other"
)

// Strain is the canonical strain classification.
type Strain string

const (
	StrainSativa Strain = "sativa"
	StrainIndica Strain = "indica"
	StrainHybrid Strain = "hybrid"
)

// Weight is a parsed product weight. Ounce denominations are normalized to
// grams; mg and ml pass through unchanged.
type Weight struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// RawItem is one unparsed menu row as produced by the rendering layer: a
// concatenated text blob plus whatever side-channel fields the row markup
// exposed separately.
type RawItem struct {
	Text         string `json:"text"`
	BrandHint    string `json:"brand_hint,omitempty"`
	CategoryHint string `json:"category_hint,omitempty"`
	THCText      string `json:"thc_text,omitempty"`
	CBDText      string `json:"cbd_text,omitempty"`
	PriceText    string `json:"price_text,omitempty"`
}

// Product is the normalized output record. Fields that could not be
// extracted are left zero/nil, never guessed. Immutable once returned.
type Product struct {
	Name        string   `json:"name"`
	Brand       string   `json:"brand,omitempty"`
	Category    Category `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	Strain      Strain   `json:"strain,omitempty"`
	THC         *float64 `json:"thc,omitempty"`
	CBD         *float64 `json:"cbd,omitempty"`
	TAC         *float64 `json:"tac,omitempty"`
	Weight      *Weight  `json:"weight,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Complete reports whether every field a well-formed menu row carries was
// resolved. Callers use it as the parse-confidence signal.
func (p Product) Complete() bool {
	return p.Name != "" && p.Brand != "" && p.Category != CategoryOther && p.THC != nil
}
