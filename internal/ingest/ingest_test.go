package ingest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"menuharvest/internal/inventory"
	"menuharvest/internal/normalizer"
)

func samplePayload() *Payload {
	qty := 3
	return &Payload{
		BatchID: "batch-1",
		Results: []SourceResult{{
			SourceID: "store-a",
			Status:   "ok",
			Items: []ItemRecord{{
				Product: normalizer.Product{Name: "Chem 91", Brand: "Splash", Category: normalizer.CategoryFlower},
				Inventory: &inventory.Result{
					Quantity:   &qty,
					InStock:    true,
					Source:     inventory.SourcePageText,
					Confidence: inventory.ConfidenceExact,
				},
			}},
		}},
	}
}

func TestDeliverPostsPayload(t *testing.T) {
	var gotBatchHeader string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBatchHeader = r.Header.Get("X-Harvest-Batch-ID")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	if err := c.Deliver(context.Background(), samplePayload()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if gotBatchHeader != "batch-1" {
		t.Errorf("batch header = %q, want batch-1", gotBatchHeader)
	}

	var decoded Payload
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("payload not valid json: %v", err)
	}
	if len(decoded.Results) != 1 || decoded.Results[0].SourceID != "store-a" {
		t.Errorf("decoded = %+v, want one store-a result", decoded)
	}
	item := decoded.Results[0].Items[0]
	if item.Name != "Chem 91" {
		t.Errorf("item name = %q, want Chem 91", item.Name)
	}
	if item.Inventory == nil || item.Inventory.Quantity == nil || *item.Inventory.Quantity != 3 {
		t.Errorf("inventory did not survive the round trip: %+v", item.Inventory)
	}
}

func TestDeliverNoURLIsNoOp(t *testing.T) {
	c := NewClient("", 0)
	if err := c.Deliver(context.Background(), samplePayload()); err != nil {
		t.Fatalf("empty url must be a no-op, got %v", err)
	}
}

func TestDeliverRejectedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	if err := c.Deliver(context.Background(), samplePayload()); err == nil {
		t.Fatal("non-2xx response must surface as an error")
	}
}
