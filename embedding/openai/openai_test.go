package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mementohq/memento-go/core"
)

func newTestServer(t *testing.T, dim int, handler func(req embeddingsRequest) any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(handler(req))
	}))
}

func TestEmbedBatchOrderPreserving(t *testing.T) {
	const dim = 4
	srv := newTestServer(t, dim, func(req embeddingsRequest) any {
		// Answer in reverse order; the client must restore input order
		// from the index field.
		var resp embeddingsResponse
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(i), 0, 0, 0}})
		}
		return resp
	})
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "m", Dimension: dim})
	vectors, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, v := range vectors {
		if v[0] != float32(i) {
			t.Errorf("vector %d: first component = %v, want %d", i, v[0], i)
		}
	}
}

func TestEmbedBatchSplitsLargeBatches(t *testing.T) {
	const dim = 2
	var calls int
	srv := newTestServer(t, dim, func(req embeddingsRequest) any {
		calls++
		if len(req.Input) > 2 {
			t.Errorf("provider batch of %d exceeds configured size 2", len(req.Input))
		}
		var resp embeddingsResponse
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{1, 2}})
		}
		return resp
	})
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "m", Dimension: dim, BatchSize: 2})
	vectors, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vectors) != 5 {
		t.Fatalf("got %d vectors, want 5", len(vectors))
	}
	if calls != 3 {
		t.Errorf("provider calls = %d, want 3", calls)
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv := newTestServer(t, 3, func(req embeddingsRequest) any {
		var resp embeddingsResponse
		resp.Data = append(resp.Data, struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}{Index: 0, Embedding: []float32{1, 2}})
		return resp
	})
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "m", Dimension: 3})
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestEmbedUnreachableIsModelUnavailable(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1", Model: "m", Dimension: 2})
	_, err := c.Embed(context.Background(), "x")
	if !errors.Is(err, core.ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}
}

func TestEmbedServerErrorIsModelUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "m", Dimension: 2})
	_, err := c.Embed(context.Background(), "x")
	if !errors.Is(err, core.ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}
}

func TestEmbedRejectsEmptyText(t *testing.T) {
	c := New(Config{BaseURL: "http://unused", Model: "m", Dimension: 2})
	_, err := c.EmbedBatch(context.Background(), []string{"ok", "  "})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}
