package harvest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"menuharvest/internal/config"
	"menuharvest/internal/ingest"
	"menuharvest/internal/inventory"
	"menuharvest/internal/logger"
	"menuharvest/internal/normalizer"
	"menuharvest/internal/retry"
	"menuharvest/internal/session"
)

// SessionFactory hands out browser sessions. *session.Manager satisfies it.
type SessionFactory interface {
	NewSession(ctx context.Context) (session.Session, error)
}

// PageCache stores rendered listing pages between batches. *redis.Service
// satisfies it; nil disables caching.
type PageCache interface {
	CacheGet(ctx context.Context, key string, dest interface{}) error
	CacheSet(ctx context.Context, key string, val interface{}, ttlSeconds int) error
}

// Coordinator fans a batch of sources out over a bounded pool of browser
// sessions, runs each source through the retry orchestrator, aggregates
// the normalized items and ships them to the ingest boundary.
type Coordinator struct {
	cfg      config.Config
	profiles config.Profiles
	sessions SessionFactory
	jobs     JobStore
	resolver *inventory.Resolver
	retrier  *retry.Orchestrator
	ingest   *ingest.Client
	cache    PageCache
	log      *logger.Logger

	mu     sync.Mutex
	active map[string]*Job
}

func NewCoordinator(cfg config.Config, profiles config.Profiles, sessions SessionFactory, jobs JobStore, recorder retry.Recorder, ingestClient *ingest.Client, cache PageCache) *Coordinator {
	c := &Coordinator{
		cfg:      cfg,
		profiles: profiles,
		sessions: sessions,
		jobs:     jobs,
		resolver: inventory.NewResolver(),
		ingest:   ingestClient,
		cache:    cache,
		log:      logger.New("Coordinator"),
		active:   make(map[string]*Job),
	}
	c.retrier = retry.New(retry.Config{
		MaxRetries:           cfg.MaxRetries,
		BaseDelay:            time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		Multiplier:           cfg.BackoffMultiplier,
		DelayCap:             time.Duration(cfg.DelayCapMs) * time.Millisecond,
		RetryableStatusCodes: cfg.RetryableStatusCodes,
	}, recorder, retry.WithAttemptHook(c.noteAttempt))
	return c
}

// noteAttempt keeps the persisted job in step with the orchestrator so a
// status poll during backoff shows the real retry count.
func (c *Coordinator) noteAttempt(source string, attempt int) {
	c.mu.Lock()
	job := c.active[source]
	c.mu.Unlock()
	if job == nil {
		return
	}
	job.RetryCount = attempt - 1
	if err := c.jobs.SaveJob(context.Background(), job); err != nil {
		c.log.LogWarnf("failed to persist attempt %d for %s: %v", attempt, source, err)
	}
}

// RunBatch harvests every source and returns the batch record. Individual
// source failures are dead-lettered by the orchestrator and counted, never
// propagated; the returned error covers batch-level bookkeeping only.
func (c *Coordinator) RunBatch(ctx context.Context, batchID string, sources []Source) (*BatchStatus, error) {
	if batchID == "" {
		batchID = uuid.New().String()
	}
	batch := &BatchStatus{
		BatchID:   batchID,
		Status:    StatusRunning,
		Sources:   len(sources),
		CreatedAt: time.Now(),
	}
	if err := c.jobs.SaveBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("save batch %s: %w", batchID, err)
	}
	c.log.LogInfof("batch %s: %d sources, %d workers", batchID, len(sources), c.cfg.MaxSessions)

	workers := c.cfg.MaxSessions
	if workers < 1 {
		workers = 1
	}
	queue := make(chan Source)
	var wg sync.WaitGroup
	var mu sync.Mutex
	payload := &ingest.Payload{BatchID: batchID}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first := true
			for src := range queue {
				if !first {
					time.Sleep(time.Duration(c.cfg.JobDelayMs) * time.Millisecond)
				}
				first = false

				job, items := c.runJob(ctx, batchID, src)

				mu.Lock()
				batch.JobIDs = append(batch.JobIDs, job.ID)
				result := ingest.SourceResult{SourceID: src.ID, Items: items, Status: "ok"}
				if job.Status == StatusFailed {
					batch.Summary.Failed++
					batch.Summary.DeadLettered++
					result.Status = "error"
					result.Error = job.ErrorMessage
				} else {
					batch.Summary.Succeeded++
					batch.Summary.ItemsScraped += job.ItemsScraped
				}
				payload.Results = append(payload.Results, result)
				mu.Unlock()
			}
		}()
	}

	for _, src := range sources {
		queue <- src
	}
	close(queue)
	wg.Wait()

	now := time.Now()
	batch.CompletedAt = &now
	batch.Status = StatusSucceeded
	if batch.Summary.Succeeded == 0 && batch.Summary.Failed > 0 {
		batch.Status = StatusFailed
	}
	if err := c.jobs.SaveBatch(ctx, batch); err != nil {
		return batch, fmt.Errorf("save batch %s: %w", batchID, err)
	}

	// Delivery is best-effort: a rejected payload never fails the batch.
	if err := c.ingest.Deliver(ctx, payload); err != nil {
		c.log.LogWarnf("batch %s: ingest delivery failed: %v", batchID, err)
	}

	c.log.LogSuccessf("batch %s: %d succeeded, %d failed, %d items",
		batchID, batch.Summary.Succeeded, batch.Summary.Failed, batch.Summary.ItemsScraped)
	return batch, nil
}

func (c *Coordinator) runJob(ctx context.Context, batchID string, src Source) (*Job, []ingest.ItemRecord) {
	job := &Job{
		ID:        uuid.New().String(),
		BatchID:   batchID,
		Source:    src,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	c.mu.Lock()
	c.active[src.ID] = job
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.active, src.ID)
		c.mu.Unlock()
	}()
	if err := c.jobs.SaveJob(ctx, job); err != nil {
		c.log.LogWarnf("failed to persist job %s: %v", job.ID, err)
	}

	var items []ingest.ItemRecord
	fail := c.retrier.Do(ctx, src.ID, func(ctx context.Context) error {
		var err error
		items, err = c.harvestOne(ctx, src)
		return err
	})

	now := time.Now()
	job.CompletedAt = &now
	if fail != nil {
		job.Status = StatusFailed
		job.ErrorMessage = fail.Message
		job.RetryCount = fail.Attempts - 1
		items = nil
	} else {
		job.Status = StatusSucceeded
		job.ItemsScraped = len(items)
	}
	if err := c.jobs.SaveJob(ctx, job); err != nil {
		c.log.LogWarnf("failed to persist job %s: %v", job.ID, err)
	}
	return job, items
}

// harvestOne produces the item records for one source, from a cached page
// when one is available or from a live render otherwise.
func (c *Coordinator) harvestOne(ctx context.Context, src Source) ([]ingest.ItemRecord, error) {
	profile := c.profiles.Get(src.Profile)

	if c.cache != nil && !src.Fresh {
		var html string
		if err := c.cache.CacheGet(ctx, pageCacheKey(src.URL), &html); err == nil && html != "" {
			c.log.LogDebugf("%s: serving listing from page cache", src.ID)
			// No live session behind a cached page, so no deep resolve.
			return c.buildItems(ctx, nil, src, profile, html)
		}
	}

	sess, err := c.sessions.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	if err := sess.Navigate(ctx, src.URL, 20*time.Second); err != nil {
		return nil, err
	}
	if profile.ListingReadySelector != "" {
		if err := sess.WaitForSelector(ctx, profile.ListingReadySelector, 10*time.Second); err != nil {
			if !session.IsInapplicable(err) {
				return nil, err
			}
			c.log.LogDebugf("%s: ready selector never appeared, reading page anyway", src.ID)
		}
	}

	raw, err := sess.Evaluate(ctx, `() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, err
	}
	html := gjson.Parse(raw).String()

	items, err := c.buildItems(ctx, sess, src, profile, html)
	if err != nil {
		if _, isParse := err.(*retry.ParseError); isParse {
			c.captureDiagnostic(sess, src.ID)
		}
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.CacheSet(ctx, pageCacheKey(src.URL), html, c.cfg.PageCacheTTLSec); err != nil {
			c.log.LogDebugf("%s: page cache write failed: %v", src.ID, err)
		}
	}
	return items, nil
}

// buildItems lifts the product rows out of a listing page, optionally deep
// resolves inventory for rows the cheap pass could not read, and normalizes
// everything into item records. Per-item problems are logged and skipped so
// one bad row never burns a retry attempt for the whole source. A nil
// session means the page came from cache and deep resolution is skipped.
func (c *Coordinator) buildItems(ctx context.Context, sess session.Session, src Source, profile config.SiteProfile, html string) ([]ingest.ItemRecord, error) {
	rows, err := c.resolver.ResolveListing(html, profile)
	if err != nil {
		return nil, retry.NewParseError("listing parse failed for %s: %v", src.ID, err)
	}
	if len(rows) == 0 {
		return nil, retry.NewParseError("no product rows found at %s", src.URL)
	}

	if sess != nil {
		c.deepResolve(ctx, sess, src, profile, rows)
	}

	var items []ingest.ItemRecord
	for _, row := range rows {
		product := normalizer.Normalize(normalizer.RawItem{Text: row.Text})
		if product.Name == "" {
			c.log.LogDebugf("%s: dropped unnameable row %q", src.ID, truncate(row.Text, 80))
			continue
		}
		inv := row.Inventory
		items = append(items, ingest.ItemRecord{Product: product, Inventory: &inv})
	}
	if len(items) == 0 {
		return nil, retry.NewParseError("all %d rows at %s were unusable", len(rows), src.URL)
	}
	return items, nil
}

func pageCacheKey(url string) string { return "harvest:page:" + url }

// deepResolve visits individual product pages for rows whose in-place read
// stayed at boolean confidence. Bounded by the profile so a thousand-item
// menu cannot turn one job into a crawl.
func (c *Coordinator) deepResolve(ctx context.Context, sess session.Session, src Source, profile config.SiteProfile, rows []inventory.ListingRow) {
	if profile.DeepResolveLimit <= 0 {
		return
	}
	base, err := url.Parse(src.URL)
	if err != nil {
		return
	}
	budget := time.Duration(c.cfg.MaxTotalTimeMs) * time.Millisecond

	visited := 0
	for i := range rows {
		if visited >= profile.DeepResolveLimit {
			return
		}
		row := &rows[i]
		if row.Inventory.Confidence != inventory.ConfidenceBoolean || row.ProductURL == "" {
			continue
		}
		ref, err := url.Parse(row.ProductURL)
		if err != nil {
			continue
		}
		visited++

		target := base.ResolveReference(ref).String()
		if err := sess.Navigate(ctx, target, 20*time.Second); err != nil {
			c.log.LogWarnf("%s: deep resolve navigation to %s failed: %v", src.ID, target, err)
			continue
		}
		res, err := c.resolver.Resolve(ctx, sess, inventory.Options{
			Profile:  profile,
			FastMode: c.cfg.FastMode,
			Budget:   budget,
		})
		if err != nil && err != inventory.ErrBudgetExceeded {
			c.log.LogWarnf("%s: deep resolve for %s failed: %v", src.ID, target, err)
			continue
		}
		row.Inventory = inventory.PickBestResult(row.Inventory, res)
	}
}

// captureDiagnostic snapshots the rendered page when a listing comes back
// empty, so a selector drift can be diagnosed after the fact.
func (c *Coordinator) captureDiagnostic(sess session.Session, sourceID string) {
	if c.cfg.DataDir == "" {
		return
	}
	if err := os.MkdirAll(c.cfg.DataDir, 0o755); err != nil {
		return
	}
	name := fmt.Sprintf("empty-%s-%d.png", sanitize(sourceID), time.Now().Unix())
	path := filepath.Join(c.cfg.DataDir, name)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sess.Screenshot(ctx, path); err != nil {
		c.log.LogWarnf("diagnostic screenshot for %s failed: %v", sourceID, err)
		return
	}
	c.log.LogInfof("%s: empty listing, screenshot saved to %s", sourceID, path)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
