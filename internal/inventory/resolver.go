// Package inventory infers the stock count a menu page intentionally hides.
// An ordered chain of extraction strategies runs against a live rendering
// session, from cheap text scans down to a deliberately excessive add-to-cart
// probe, each labeled with how much its answer can be trusted.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"menuharvest/internal/config"
	"menuharvest/internal/logger"
	"menuharvest/internal/session"
)

var pageTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*left\s*in\s*stock`),
	regexp.MustCompile(`(?i)only\s*(\d+)\s*(?:available|left|remaining)`),
	regexp.MustCompile(`(?i)(\d+)\s*(?:available|remaining)`),
}

const (
	defaultBudget = 15 * time.Second

	// Counts above this are page noise (order totals, review counts),
	// not unit inventory. The match is discarded and the chain continues.
	maxPlausibleQuantity = 999

	// A selector capped below this is treated as a real inventory ceiling;
	// a higher cap is a UI default and says nothing.
	lowDropdownMax = 20
)

// ErrBudgetExceeded is returned alongside the best partial result when the
// chain ran out of its global time budget. Callers treat it as a known,
// non-fatal condition.
var ErrBudgetExceeded = errors.New("inventory resolution time budget exceeded")

// Options configures one resolution run. Zero Budget means the default 15s.
type Options struct {
	Profile  config.SiteProfile
	FastMode bool
	Budget   time.Duration
}

type Resolver struct {
	log *logger.Logger
}

func NewResolver() *Resolver {
	return &Resolver{log: logger.New("InventoryResolver")}
}

// Resolve runs the fallback hierarchy against a session positioned at one
// product page. It returns immediately on the first exact result, otherwise
// keeps the best estimated result found, escalating to the slow cart probe
// only outside fast mode. On budget expiry the best result collected so far
// is returned together with ErrBudgetExceeded, never an empty result.
func (r *Resolver) Resolve(ctx context.Context, sess session.Session, opts Options) (Result, error) {
	budget := opts.Budget
	if budget <= 0 {
		budget = defaultBudget
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	best := Result{InStock: true, Source: SourceUnknown, Confidence: ConfidenceBoolean}

	if res, ok := r.pageText(ctx, sess); ok {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return best, ErrBudgetExceeded
	}

	if res, ok := r.quantityDropdown(ctx, sess, opts.Profile); ok {
		best = PickBestResult(best, res)
	}
	if err := ctx.Err(); err != nil {
		return best, ErrBudgetExceeded
	}

	if res, ok := r.outOfStockBadge(ctx, sess, opts.Profile); ok {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return best, ErrBudgetExceeded
	}

	if !opts.FastMode {
		if res, ok := r.cartOverflow(ctx, sess, opts.Profile); ok {
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			return best, ErrBudgetExceeded
		}
	}

	return best, nil
}

// pageText scans the rendered text for explicit remaining-count phrases.
func (r *Resolver) pageText(ctx context.Context, sess session.Session) (Result, bool) {
	raw, err := sess.Evaluate(ctx, `() => document.body.innerText`)
	if err != nil {
		r.strategyMiss("page-text", err)
		return Result{}, false
	}
	text := gjson.Parse(raw).String()
	qty, phrase := matchQuantity(text)
	if qty == nil {
		return Result{}, false
	}
	return Result{
		Quantity:        qty,
		QuantityWarning: phrase,
		InStock:         *qty > 0,
		Source:          SourcePageText,
		Confidence:      ConfidenceExact,
	}, true
}

// quantityDropdown reads the ceiling of the quantity selector. A low max is
// a likely inventory signal; a high max is not informative. Never exact.
func (r *Resolver) quantityDropdown(ctx context.Context, sess session.Session, profile config.SiteProfile) (Result, bool) {
	script := fmt.Sprintf(`() => {
		const sel = document.querySelector(%q);
		if (sel && sel.options) {
			const vals = Array.from(sel.options).map(o => parseInt(o.value, 10)).filter(n => !isNaN(n));
			return vals.length ? { kind: 'select', max: Math.max(...vals) } : null;
		}
		const input = document.querySelector(%q);
		if (input && input.max) {
			const max = parseInt(input.max, 10);
			return isNaN(max) ? null : { kind: 'input', max: max };
		}
		return null;
	}`, profile.QuantitySelectSelector, profile.QuantityInputSelector)

	raw, err := sess.Evaluate(ctx, script)
	if err != nil {
		r.strategyMiss("quantity-dropdown", err)
		return Result{}, false
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return Result{}, false
	}
	max := int(parsed.Get("max").Int())
	if max <= 0 || max >= lowDropdownMax {
		return Result{}, false
	}
	return Result{
		Quantity:        intPtr(max),
		QuantityWarning: fmt.Sprintf("quantity %s capped at %d", parsed.Get("kind").String(), max),
		InStock:         true,
		Source:          SourceDropdown,
		Confidence:      ConfidenceEstimated,
	}, true
}

// outOfStockBadge detects sold-out markers. A positive match is an exact
// zero and short-circuits the chain.
func (r *Resolver) outOfStockBadge(ctx context.Context, sess session.Session, profile config.SiteProfile) (Result, bool) {
	script := fmt.Sprintf(`() => {
		const badge = document.querySelector(%q);
		if (badge) return { matched: true, text: badge.textContent.trim() };
		const text = document.body.innerText.toLowerCase();
		if (text.includes('out of stock') || text.includes('sold out')) {
			return { matched: true, text: 'out of stock' };
		}
		return { matched: false };
	}`, profile.BadgeSelector)

	raw, err := sess.Evaluate(ctx, script)
	if err != nil {
		r.strategyMiss("out-of-stock-badge", err)
		return Result{}, false
	}
	parsed := gjson.Parse(raw)
	if !parsed.Get("matched").Bool() {
		return Result{}, false
	}
	return Result{
		Quantity:        intPtr(0),
		QuantityWarning: parsed.Get("text").String(),
		InStock:         false,
		Source:          SourceBadge,
		Confidence:      ConfidenceExact,
	}, true
}

// cartOverflow requests more units than any menu item plausibly has and
// reads the validation message, which on this class of site echoes the
// true remaining count. The cart is emptied on every exit path, including
// budget expiry, so a reused session never leaks cart state into the next
// job.
func (r *Resolver) cartOverflow(ctx context.Context, sess session.Session, profile config.SiteProfile) (res Result, ok bool) {
	overflow := profile.CartOverflowAmount
	if overflow <= 0 {
		overflow = 99
	}

	added := false
	defer func() {
		if !added {
			return
		}
		// The resolution context may already be expired; cleanup gets its
		// own deadline.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sess.Click(cleanupCtx, profile.CartClearSelector); err != nil && !session.IsInapplicable(err) {
			r.log.LogWarnf("cart cleanup failed: %v", err)
		}
	}()

	if err := sess.Fill(ctx, profile.QuantityInputSelector, strconv.Itoa(overflow)); err != nil {
		r.strategyMiss("cart-overflow fill", err)
		return Result{}, false
	}
	if err := sess.Click(ctx, profile.AddToCartSelector); err != nil {
		r.strategyMiss("cart-overflow add", err)
		return Result{}, false
	}
	added = true

	if err := sess.WaitForSelector(ctx, profile.CartErrorSelector, 3*time.Second); err != nil {
		r.strategyMiss("cart-overflow error wait", err)
		return Result{}, false
	}
	script := fmt.Sprintf(`() => {
		const el = document.querySelector(%q);
		return el ? el.textContent.trim() : '';
	}`, profile.CartErrorSelector)
	raw, err := sess.Evaluate(ctx, script)
	if err != nil {
		r.strategyMiss("cart-overflow read", err)
		return Result{}, false
	}
	message := gjson.Parse(raw).String()
	qty, phrase := matchQuantity(message)
	if qty == nil {
		return Result{}, false
	}
	return Result{
		Quantity:        qty,
		QuantityWarning: phrase,
		InStock:         *qty > 0,
		Source:          SourceCartOverflow,
		Confidence:      ConfidenceExact,
	}, true
}

// matchQuantity applies the remaining-count patterns in order and returns
// the first plausible match with the phrase that produced it.
func matchQuantity(text string) (*int, string) {
	for _, re := range pageTextPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n > maxPlausibleQuantity {
				continue
			}
			return intPtr(n), m[0]
		}
	}
	return nil, ""
}

func (r *Resolver) strategyMiss(strategy string, err error) {
	if session.IsInapplicable(err) {
		r.log.LogDebugf("strategy %s inapplicable: %v", strategy, err)
		return
	}
	r.log.LogWarnf("strategy %s failed: %v", strategy, err)
}
