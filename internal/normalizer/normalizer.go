// Package normalizer reconstructs typed product records from the densely
// packed text of scraped menu rows. Menu platforms concatenate name, brand,
// strain, potency and promo labels into one string with inconsistent
// delimiters; Normalize peels those back off. It is a pure function and
// never fails: anything it cannot recognize is left absent.
package normalizer

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	pctRe        = regexp.MustCompile(`(?i)(TAC|THC|CBD)\s*:?\s*(\d+(?:\.\d+)?)\s*(?:%|mg)?`)
	trailingPct  = regexp.MustCompile(`(?i)(?:TAC|THC|CBD)\s*:?\s*\d+(?:\.\d+)?\s*(?:%|mg)?\s*$`)
	trailingStr  = regexp.MustCompile(`(?i)(sativa-hybrid|indica-hybrid|sativa|indica|hybrid)\s*$`)
	firstFloatRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
	weightRe     = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(mg|ml|g|oz)\b`)
	fractionOzRe = regexp.MustCompile(`(?i)\b1\s*/\s*([248])\s*(?:oz|ounce)\b`)
)

// Promotional labels the target platforms append to row text. Matched
// case-insensitively and collected into tags.
var promoLabels = []string{
	"Staff Pick",
	"Staff Favorite",
	"Last Call",
	"Low Stock",
	"New Arrival",
	"On Sale",
	"Special",
}

var wordWeights = []struct {
	word  string
	grams float64
}{
	{"quarter ounce", 7},
	{"half ounce", 14},
	{"eighth", 3.5},
	{"ounce", 28},
}

var categoryWords = []struct {
	word        string
	category    Category
	subcategory string
}{
	{"pre-roll", CategoryPreRoll, ""},
	{"pre roll", CategoryPreRoll, ""},
	{"preroll", CategoryPreRoll, ""},
	{"joint", CategoryPreRoll, ""},
	{"blunt", CategoryPreRoll, "blunt"},
	{"cartridge", CategoryVape, "cartridge"},
	{"disposable", CategoryVape, "disposable"},
	{"vape", CategoryVape, ""},
	{"pod", CategoryVape, "pod"},
	{"gummies", CategoryEdible, "gummies"},
	{"gummy", CategoryEdible, "gummies"},
	{"chocolate", CategoryEdible, "chocolate"},
	{"chews", CategoryEdible, "chews"},
	{"beverage", CategoryEdible, "beverage"},
	{"edible", CategoryEdible, ""},
	{"live rosin", CategoryConcentrate, "live rosin"},
	{"rosin", CategoryConcentrate, "rosin"},
	{"live resin", CategoryConcentrate, "live resin"},
	{"resin", CategoryConcentrate, "resin"},
	{"shatter", CategoryConcentrate, "shatter"},
	{"badder", CategoryConcentrate, "badder"},
	{"budder", CategoryConcentrate, "budder"},
	{"crumble", CategoryConcentrate, "crumble"},
	{"wax", CategoryConcentrate, "wax"},
	{"concentrate", CategoryConcentrate, ""},
	{"tincture", CategoryTincture, ""},
	{"topical", CategoryTopical, ""},
	{"balm", CategoryTopical, "balm"},
	{"lotion", CategoryTopical, "lotion"},
	{"salve", CategoryTopical, "salve"},
	{"flower", CategoryFlower, ""},
}

// Normalize converts one raw scraped row into a Product. It never returns
// an error; unrecognized fields stay nil/empty.
func Normalize(raw RawItem) Product {
	p := Product{Category: CategoryOther}
	text := strings.TrimSpace(raw.Text)
	p.Brand = strings.TrimSpace(raw.BrandHint)

	// Promo labels first: they can be glued directly onto the metadata run.
	text, p.Tags = extractTags(text)

	// Potency tokens are captured wherever they appear; the name-side
	// occurrences are stripped later as part of the trailing run.
	assignPercents(&p, text)
	if p.THC == nil {
		p.THC = firstFloat(raw.THCText)
	}
	if p.CBD == nil {
		p.CBD = firstFloat(raw.CBDText)
	}
	p.Price = firstFloat(raw.PriceText)

	namePart, hintParts := splitSegments(text, p.Brand)

	// Weight comes from the hint segments when delimited, else anywhere.
	weightSource := strings.Join(hintParts, " ")
	if weightSource == "" {
		weightSource = text
	}
	p.Weight = extractWeight(weightSource)

	name, strainWord := stripTrailingRun(namePart, p.Brand)
	if strainWord != "" {
		p.Strain = canonicalStrain(strainWord)
	}
	if p.Strain == "" {
		// Delimited rows often carry the strain as its own segment.
		for _, hint := range hintParts {
			h := strings.TrimSpace(hint)
			if m := trailingStr.FindString(h); m != "" && strings.EqualFold(m, h) {
				p.Strain = canonicalStrain(m)
				break
			}
		}
	}

	// Category: explicit hint, then category words in the row, then weight
	// magnitude when nothing was said at all.
	if cat, sub, ok := categoryFromText(raw.CategoryHint); ok {
		p.Category, p.Subcategory = cat, sub
	} else if cat, sub, ok := categoryFromText(strings.Join(hintParts, " ")); ok {
		p.Category, p.Subcategory = cat, sub
	} else if cat, sub, ok := categoryFromText(text); ok {
		p.Category, p.Subcategory = cat, sub
	} else if p.Weight != nil && p.Weight.Unit == "g" && p.Weight.Amount >= 1 && p.Weight.Amount <= 28 {
		p.Category = CategoryFlower
	}

	name = cleanName(name, p.Brand)
	if name == "" && strainWord != "" {
		// Lines whose only distinguishing word is the strain: the strain
		// word is the product name.
		name = titleCase(strainWord)
	}
	p.Name = name
	return p
}

func extractTags(text string) (string, []string) {
	var tags []string
	for _, label := range promoLabels {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label))
		if re.MatchString(text) {
			text = re.ReplaceAllString(text, "")
			tags = append(tags, label)
		}
	}
	return text, tags
}

func assignPercents(p *Product, text string) {
	for _, m := range pctRe.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		switch strings.ToUpper(m[1]) {
		case "TAC":
			if p.TAC == nil {
				p.TAC = &v
			}
		case "THC":
			if p.THC == nil {
				p.THC = &v
			}
		case "CBD":
			if p.CBD == nil {
				p.CBD = &v
			}
		}
	}
}

// firstFloat parses the first float in a string, tolerating trailing unit
// noise ("28.7 mg" parses to 28.7).
func firstFloat(s string) *float64 {
	m := firstFloatRe.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

// splitSegments picks the candidate-name segment and the hint segments.
// Pipe-delimited rows put the name last; dash-delimited rows are filtered
// down to segments that are not pure metadata; otherwise the whole row is
// the candidate name.
func splitSegments(text, brand string) (string, []string) {
	if strings.Contains(text, "|") {
		parts := splitTrim(text, "|")
		if len(parts) == 0 {
			return text, nil
		}
		return parts[len(parts)-1], parts[:len(parts)-1]
	}
	if strings.Contains(text, " - ") {
		parts := splitTrim(text, " - ")
		var name string
		var hints []string
		for _, part := range parts {
			if isMetadataSegment(part, brand) {
				hints = append(hints, part)
				continue
			}
			name = part
		}
		if name == "" && len(parts) > 0 {
			name = parts[len(parts)-1]
		}
		return name, hints
	}
	return text, nil
}

func splitTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// isMetadataSegment reports whether a delimited segment carries only
// weight/category/brand/strain information rather than a name.
func isMetadataSegment(seg, brand string) bool {
	s := strings.TrimSpace(seg)
	if brand != "" && strings.EqualFold(s, brand) {
		return true
	}
	stripped := pctRe.ReplaceAllString(s, "")
	stripped = weightRe.ReplaceAllString(stripped, "")
	stripped = fractionOzRe.ReplaceAllString(stripped, "")
	for _, ww := range wordWeights {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(ww.word))
		stripped = re.ReplaceAllString(stripped, "")
	}
	for _, cw := range categoryWords {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(cw.word))
		stripped = re.ReplaceAllString(stripped, "")
	}
	stripped = trailingStr.ReplaceAllString(stripped, "")
	return strings.TrimSpace(stripped) == ""
}

func extractWeight(s string) *Weight {
	lower := strings.ToLower(s)
	for _, ww := range wordWeights {
		if strings.Contains(lower, ww.word) {
			return &Weight{Amount: ww.grams, Unit: "g"}
		}
	}
	if m := fractionOzRe.FindStringSubmatch(s); m != nil {
		switch m[1] {
		case "8":
			return &Weight{Amount: 3.5, Unit: "g"}
		case "4":
			return &Weight{Amount: 7, Unit: "g"}
		case "2":
			return &Weight{Amount: 14, Unit: "g"}
		}
	}
	if m := weightRe.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil
		}
		unit := strings.ToLower(m[2])
		if unit == "oz" {
			return &Weight{Amount: v * 28, Unit: "g"}
		}
		return &Weight{Amount: v, Unit: unit}
	}
	return nil
}

// stripTrailingRun peels the concatenated metadata run off the end of the
// candidate name: potency tokens, the strain word, and a repeated brand.
// Returns the cleaned name and the raw strain word if one was found.
func stripTrailingRun(name, brand string) (string, string) {
	name = strings.TrimSpace(name)
	strainWord := ""
	for {
		prev := name
		name = strings.TrimSpace(trailingPct.ReplaceAllString(name, ""))
		if m := trailingStr.FindString(name); m != "" {
			if strainWord == "" {
				strainWord = m
			}
			name = strings.TrimSpace(name[:len(name)-len(m)])
		}
		if brand != "" {
			if cut, ok := trimSuffixFold(name, brand); ok {
				name = strings.TrimSpace(cut)
			}
		}
		if name == prev {
			break
		}
	}
	return name, strainWord
}

func trimSuffixFold(s, suffix string) (string, bool) {
	if len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s[:len(s)-len(suffix)], true
	}
	return s, false
}

func canonicalStrain(word string) Strain {
	switch strings.ToLower(word) {
	case "sativa", "sativa-hybrid":
		return StrainSativa
	case "indica", "indica-hybrid":
		return StrainIndica
	default:
		return StrainHybrid
	}
}

func categoryFromText(s string) (Category, string, bool) {
	if strings.TrimSpace(s) == "" {
		return CategoryOther, "", false
	}
	lower := strings.ToLower(s)
	for _, cw := range categoryWords {
		if strings.Contains(lower, cw.word) {
			return cw.category, cw.subcategory, true
		}
	}
	return CategoryOther, "", false
}

func titleCase(word string) string {
	if word == "" {
		return word
	}
	lower := strings.ToLower(word)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// cleanName removes a leading brand echo and leftover separators.
func cleanName(name, brand string) string {
	name = strings.TrimSpace(name)
	if brand != "" {
		lower, lowerBrand := strings.ToLower(name), strings.ToLower(brand)
		if strings.HasPrefix(lower, lowerBrand) && len(name) > len(brand) {
			name = strings.TrimSpace(name[len(brand):])
		}
	}
	name = strings.Trim(name, "-|,:; ")
	return strings.Join(strings.Fields(name), " ")
}
