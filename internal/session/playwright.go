package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"menuharvest/internal/logger"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Manager owns the playwright runtime and one shared browser process.
// Sessions are cheap browser contexts; the browser itself is not.
type Manager struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	log     *logger.Logger
}

func NewManager() (*Manager, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("playwright run: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
			"--no-first-run",
			"--disable-default-apps",
			"--disable-extensions",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return &Manager{pw: pw, browser: browser, log: logger.New("SessionManager")}, nil
}

// NewSession opens a fresh browser context and page. The returned session
// belongs to exactly one job until Close.
func (m *Manager) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bctx, err := m.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(defaultUserAgent),
		ExtraHttpHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &playwrightSession{bctx: bctx, page: page}, nil
}

func (m *Manager) Close() {
	if m.browser != nil {
		_ = m.browser.Close()
	}
	if m.pw != nil {
		_ = m.pw.Stop()
	}
}

type playwrightSession struct {
	bctx playwright.BrowserContext
	page playwright.Page
}

func (s *playwrightSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

// Evaluate runs a script against the live DOM and serializes whatever it
// returned to JSON. Weakly-typed DOM data is coerced to a typed shape at
// the caller's boundary, never deeper in.
func (s *playwrightSession) Evaluate(ctx context.Context, script string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	result, err := s.page.Evaluate(script)
	if err != nil {
		return "", fmt.Errorf("evaluate: %w", err)
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal evaluate result: %w", err)
	}
	return string(b), nil
}

func (s *playwrightSession) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(3000),
	})
	if err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (s *playwrightSession) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(3000),
	})
	if err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

func (s *playwrightSession) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

func (s *playwrightSession) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return nil
}

func (s *playwrightSession) Close() error {
	return s.bctx.Close()
}
