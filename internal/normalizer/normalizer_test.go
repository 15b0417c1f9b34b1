package normalizer

import (
	"testing"
)

func TestNormalizePipeDelimitedRow(t *testing.T) {
	p := Normalize(RawItem{
		Text:      "Splash | Flower | 3.5g | Chem 91 Hybrid TAC: 33.23% THC: 25.9%",
		BrandHint: "Splash",
	})

	if p.Name != "Chem 91" {
		t.Errorf("name = %q, want %q", p.Name, "Chem 91")
	}
	if p.Brand != "Splash" {
		t.Errorf("brand = %q, want %q", p.Brand, "Splash")
	}
	if p.Category != CategoryFlower {
		t.Errorf("category = %q, want %q", p.Category, CategoryFlower)
	}
	if p.Strain != StrainHybrid {
		t.Errorf("strain = %q, want %q", p.Strain, StrainHybrid)
	}
	if p.THC == nil || *p.THC != 25.9 {
		t.Errorf("thc = %v, want 25.9", p.THC)
	}
	if p.TAC == nil || *p.TAC != 33.23 {
		t.Errorf("tac = %v, want 33.23", p.TAC)
	}
	if p.Weight == nil || p.Weight.Amount != 3.5 || p.Weight.Unit != "g" {
		t.Errorf("weight = %+v, want 3.5g", p.Weight)
	}
	if !p.Complete() {
		t.Error("expected a complete product")
	}
}

func TestNormalizeStrainOnlyRowUsesStrainAsName(t *testing.T) {
	p := Normalize(RawItem{Text: "Sativa THC: 22%", BrandHint: "Acme"})

	if p.Name != "Sativa" {
		t.Errorf("name = %q, want %q", p.Name, "Sativa")
	}
	if p.Strain != StrainSativa {
		t.Errorf("strain = %q, want %q", p.Strain, StrainSativa)
	}
	if p.THC == nil || *p.THC != 22 {
		t.Errorf("thc = %v, want 22", p.THC)
	}
}

func TestNormalizeStripsRepeatedBrandSuffix(t *testing.T) {
	p := Normalize(RawItem{
		Text:         "Wedding Cake Kind Tree Indica THC: 24.5%",
		BrandHint:    "Kind Tree",
		CategoryHint: "flower",
	})

	if p.Name != "Wedding Cake" {
		t.Errorf("name = %q, want %q", p.Name, "Wedding Cake")
	}
	if p.Strain != StrainIndica {
		t.Errorf("strain = %q, want %q", p.Strain, StrainIndica)
	}
	if p.Category != CategoryFlower {
		t.Errorf("category = %q, want %q", p.Category, CategoryFlower)
	}
}

func TestNormalizeWordWeightAndStrainSegment(t *testing.T) {
	p := Normalize(RawItem{Text: "Blue Dream - Quarter Ounce - Hybrid"})

	if p.Name != "Blue Dream" {
		t.Errorf("name = %q, want %q", p.Name, "Blue Dream")
	}
	if p.Weight == nil || p.Weight.Amount != 7 || p.Weight.Unit != "g" {
		t.Errorf("weight = %+v, want 7g", p.Weight)
	}
	if p.Strain != StrainHybrid {
		t.Errorf("strain = %q, want %q", p.Strain, StrainHybrid)
	}
	// No category word anywhere, but 7g reads as flower.
	if p.Category != CategoryFlower {
		t.Errorf("category = %q, want %q", p.Category, CategoryFlower)
	}
}

func TestNormalizeMilligramEdible(t *testing.T) {
	p := Normalize(RawItem{Text: "Watermelon Gummies - 100mg - THC: 100mg", BrandHint: "Wana"})

	if p.Name != "Watermelon Gummies" {
		t.Errorf("name = %q, want %q", p.Name, "Watermelon Gummies")
	}
	if p.Category != CategoryEdible || p.Subcategory != "gummies" {
		t.Errorf("category = %q/%q, want edible/gummies", p.Category, p.Subcategory)
	}
	if p.THC == nil || *p.THC != 100 {
		t.Errorf("thc = %v, want 100", p.THC)
	}
	if p.Weight == nil || p.Weight.Amount != 100 || p.Weight.Unit != "mg" {
		t.Errorf("weight = %+v, want 100mg", p.Weight)
	}
}

func TestNormalizePromoLabelBecomesTag(t *testing.T) {
	p := Normalize(RawItem{Text: "Staff Pick Gelato Cartridge 0.5g THC: 84%", BrandHint: "Select"})

	if len(p.Tags) != 1 || p.Tags[0] != "Staff Pick" {
		t.Errorf("tags = %v, want [Staff Pick]", p.Tags)
	}
	if p.Category != CategoryVape || p.Subcategory != "cartridge" {
		t.Errorf("category = %q/%q, want vape/cartridge", p.Category, p.Subcategory)
	}
	if p.THC == nil || *p.THC != 84 {
		t.Errorf("thc = %v, want 84", p.THC)
	}
	if p.Name != "Gelato Cartridge 0.5g" {
		t.Errorf("name = %q, want %q", p.Name, "Gelato Cartridge 0.5g")
	}
}

func TestNormalizeCBDTincture(t *testing.T) {
	p := Normalize(RawItem{
		Text:      "Brand X | Tincture | 30ml | Harlequin CBD: 500mg THC: 10mg",
		BrandHint: "Brand X",
	})

	if p.Name != "Harlequin" {
		t.Errorf("name = %q, want %q", p.Name, "Harlequin")
	}
	if p.Category != CategoryTincture {
		t.Errorf("category = %q, want %q", p.Category, CategoryTincture)
	}
	if p.CBD == nil || *p.CBD != 500 {
		t.Errorf("cbd = %v, want 500", p.CBD)
	}
	if p.THC == nil || *p.THC != 10 {
		t.Errorf("thc = %v, want 10", p.THC)
	}
	if p.Weight == nil || p.Weight.Amount != 30 || p.Weight.Unit != "ml" {
		t.Errorf("weight = %+v, want 30ml", p.Weight)
	}
}

func TestNormalizeFractionOunce(t *testing.T) {
	p := Normalize(RawItem{Text: "Sour Diesel 1/8 oz Sativa"})

	if p.Strain != StrainSativa {
		t.Errorf("strain = %q, want %q", p.Strain, StrainSativa)
	}
	if p.Weight == nil || p.Weight.Amount != 3.5 || p.Weight.Unit != "g" {
		t.Errorf("weight = %+v, want 3.5g", p.Weight)
	}
	if p.Category != CategoryFlower {
		t.Errorf("category = %q, want %q", p.Category, CategoryFlower)
	}
}

func TestNormalizeOunceConvertsToGrams(t *testing.T) {
	p := Normalize(RawItem{Text: "Mac 1 - 1 oz - Indica"})

	if p.Name != "Mac 1" {
		t.Errorf("name = %q, want %q", p.Name, "Mac 1")
	}
	if p.Weight == nil || p.Weight.Amount != 28 || p.Weight.Unit != "g" {
		t.Errorf("weight = %+v, want 28g", p.Weight)
	}
	if p.Strain != StrainIndica {
		t.Errorf("strain = %q, want %q", p.Strain, StrainIndica)
	}
}

func TestNormalizeHintsFillGaps(t *testing.T) {
	p := Normalize(RawItem{
		Text:      "Mystery OG",
		BrandHint: "House",
		THCText:   "28.7 mg",
		PriceText: "$45.00",
	})

	if p.THC == nil || *p.THC != 28.7 {
		t.Errorf("thc = %v, want 28.7", p.THC)
	}
	if p.Price == nil || *p.Price != 45 {
		t.Errorf("price = %v, want 45", p.Price)
	}
	if p.Name != "Mystery OG" {
		t.Errorf("name = %q, want %q", p.Name, "Mystery OG")
	}
}

func TestNormalizeTextWinsOverHints(t *testing.T) {
	p := Normalize(RawItem{Text: "Runtz THC: 30%", THCText: "12"})

	if p.THC == nil || *p.THC != 30 {
		t.Errorf("thc = %v, want 30 (text value, not hint)", p.THC)
	}
}

func TestNormalizeEmptyText(t *testing.T) {
	p := Normalize(RawItem{})

	if p.Name != "" {
		t.Errorf("name = %q, want empty", p.Name)
	}
	if p.Category != CategoryOther {
		t.Errorf("category = %q, want %q", p.Category, CategoryOther)
	}
	if p.Complete() {
		t.Error("empty row must not be complete")
	}
}
