// Package ingest defines the batch payload handed to the surrounding
// ingestion system and the client that delivers it. Delivery is
// best-effort: the payload is always returned to the caller whether or not
// the collaborator accepted it.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"menuharvest/internal/inventory"
	"menuharvest/internal/logger"
	"menuharvest/internal/normalizer"
)

// ItemRecord is one normalized product plus its inventory reading when one
// was resolved.
type ItemRecord struct {
	normalizer.Product
	Inventory *inventory.Result `json:"inventory,omitempty"`
}

// SourceResult is the per-source slice of a batch payload.
type SourceResult struct {
	SourceID string       `json:"source_id"`
	Items    []ItemRecord `json:"items"`
	Status   string       `json:"status"` // "ok" | "error"
	Error    string       `json:"error,omitempty"`
}

// Payload is the sole output contract to the ingestion boundary.
type Payload struct {
	BatchID string         `json:"batch_id"`
	Results []SourceResult `json:"results"`
}

type Client struct {
	http *retryablehttp.Client
	url  string
	log  *logger.Logger
}

// NewClient builds a delivery client for the ingestion endpoint. An empty
// URL disables delivery; Deliver becomes a no-op.
func NewClient(url string, maxRetries int) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = maxRetries
	rc.Logger = nil
	return &Client{http: rc, url: url, log: logger.New("IngestClient")}
}

// Deliver posts one batch payload to the ingestion collaborator.
func (c *Client) Deliver(ctx context.Context, payload *Payload) error {
	if c.url == "" {
		c.log.LogDebugf("no ingest URL configured, skipping delivery of batch %s", payload.BatchID)
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal ingest payload: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return fmt.Errorf("build ingest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Harvest-Batch-ID", payload.BatchID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("deliver batch %s: %w", payload.BatchID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ingest endpoint returned %d for batch %s", resp.StatusCode, payload.BatchID)
	}
	c.log.LogInfof("delivered batch %s (%d source results)", payload.BatchID, len(payload.Results))
	return nil
}
