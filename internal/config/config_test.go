package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPAddr != ":8082" {
		t.Errorf("http addr = %q, want :8082", cfg.HTTPAddr)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("max retries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.BaseDelayMs != 1000 || cfg.DelayCapMs != 10000 {
		t.Errorf("backoff = %d/%d, want 1000/10000", cfg.BaseDelayMs, cfg.DelayCapMs)
	}
	if cfg.BackoffMultiplier != 2.0 {
		t.Errorf("multiplier = %v, want 2.0", cfg.BackoffMultiplier)
	}
	if cfg.MaxTotalTimeMs != 15000 {
		t.Errorf("budget = %d, want 15000", cfg.MaxTotalTimeMs)
	}
	want := []int{429, 500, 502, 503, 504}
	if len(cfg.RetryableStatusCodes) != len(want) {
		t.Fatalf("retryable codes = %v, want %v", cfg.RetryableStatusCodes, want)
	}
	for i, code := range want {
		if cfg.RetryableStatusCodes[i] != code {
			t.Errorf("code[%d] = %d, want %d", i, cfg.RetryableStatusCodes[i], code)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("FAST_MODE", "true")
	t.Setenv("RETRYABLE_STATUS_CODES", "500, 503")
	t.Setenv("BACKOFF_MULTIPLIER", "1.5")

	cfg := Load()

	if cfg.MaxRetries != 5 {
		t.Errorf("max retries = %d, want 5", cfg.MaxRetries)
	}
	if !cfg.FastMode {
		t.Error("fast mode must be on")
	}
	if len(cfg.RetryableStatusCodes) != 2 || cfg.RetryableStatusCodes[0] != 500 || cfg.RetryableStatusCodes[1] != 503 {
		t.Errorf("retryable codes = %v, want [500 503]", cfg.RetryableStatusCodes)
	}
	if cfg.BackoffMultiplier != 1.5 {
		t.Errorf("multiplier = %v, want 1.5", cfg.BackoffMultiplier)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MAX_RETRIES", "lots")
	t.Setenv("RETRYABLE_STATUS_CODES", "500,oops,503")

	cfg := Load()

	if cfg.MaxRetries != 3 {
		t.Errorf("max retries = %d, want default 3 on malformed input", cfg.MaxRetries)
	}
	if len(cfg.RetryableStatusCodes) != 5 {
		t.Errorf("retryable codes = %v, malformed list must fall back to defaults", cfg.RetryableStatusCodes)
	}
}

func TestLoadProfilesMissingPathYieldsDefault(t *testing.T) {
	profiles, err := LoadProfiles("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := profiles.Get("anything")
	if def.RowSelector == "" || def.CartOverflowAmount != 99 {
		t.Errorf("default profile incomplete: %+v", def)
	}
}

func TestLoadProfilesMergesOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	yaml := `
greenleaf:
  row_selector: ".menu-item"
  deep_resolve_limit: 5
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	profiles, err := LoadProfiles(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	p := profiles.Get("greenleaf")
	if p.RowSelector != ".menu-item" {
		t.Errorf("row selector = %q, want override", p.RowSelector)
	}
	if p.DeepResolveLimit != 5 {
		t.Errorf("deep resolve limit = %d, want 5", p.DeepResolveLimit)
	}
	// Unspecified fields fall back to the defaults.
	if p.AddToCartSelector != DefaultProfile().AddToCartSelector {
		t.Errorf("add-to-cart = %q, want default", p.AddToCartSelector)
	}
	if p.CartOverflowAmount != 99 {
		t.Errorf("overflow = %d, want default 99", p.CartOverflowAmount)
	}

	// Unknown names resolve to the default profile.
	if profiles.Get("unknown").RowSelector != DefaultProfile().RowSelector {
		t.Error("unknown profile must fall back to default")
	}
}
