package inventory

// Confidence is the ordered trust classification of an inventory figure.
type Confidence string

const (
	ConfidenceExact     Confidence = "exact"
	ConfidenceEstimated Confidence = "estimated"
	ConfidenceBoolean   Confidence = "boolean"
)

var confidenceRank = map[Confidence]int{
	ConfidenceBoolean:   0,
	ConfidenceEstimated: 1,
	ConfidenceExact:     2,
}

// Rank orders confidences: exact > estimated > boolean.
func (c Confidence) Rank() int { return confidenceRank[c] }

// Source names the extraction strategy that produced a result.
type Source string

const (
	SourcePageText     Source = "page-text"
	SourceDropdown     Source = "quantity-dropdown"
	SourceBadge        Source = "out-of-stock-badge"
	SourceCartOverflow Source = "cart-overflow"
	SourceUnknown      Source = "unknown"
)

// Result is one inventory reading. Produced fresh per resolution attempt
// and never mutated: a better result replaces a worse one wholesale.
// The quantity-dropdown source never yields exact confidence; exact comes
// only from page-text, a zero-quantity badge, or the cart-overflow probe.
type Result struct {
	Quantity        *int       `json:"quantity"`
	QuantityWarning string     `json:"quantity_warning,omitempty"`
	InStock         bool       `json:"in_stock"`
	Source          Source     `json:"source"`
	Confidence      Confidence `json:"confidence"`
	RawError        string     `json:"raw_error,omitempty"`
}

// PickBestResult orders strictly by confidence; ties break in favor of the
// result carrying a quantity, defaulting to a.
func PickBestResult(a, b Result) Result {
	if a.Confidence.Rank() != b.Confidence.Rank() {
		if a.Confidence.Rank() > b.Confidence.Rank() {
			return a
		}
		return b
	}
	if a.Quantity == nil && b.Quantity != nil {
		return b
	}
	return a
}

func intPtr(v int) *int { return &v }
