package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/abrahaamv/ifinallywill-sub004/internal/errors"
)

// fakeEmbedService returns a deterministic 4-dim embedding per input.
func fakeEmbedService(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i, text := range req.Input {
			resp.Embeddings[i] = []float32{float32(len(text)), 1, 0, 0}
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestEmbedder(t *testing.T, endpoint string) *HTTPEmbedder {
	t.Helper()
	e, err := NewHTTPEmbedder(context.Background(), HTTPConfig{
		Endpoint:   endpoint,
		Model:      "test-model",
		Dimensions: 4,
		SkipProbe:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestHTTPEmbedder_Embed(t *testing.T) {
	srv := fakeEmbedService(t, nil)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL)

	vec, err := e.Embed(context.Background(), "hello", ModeQuery)
	require.NoError(t, err)
	require.Len(t, vec, 4)

	// Responses are unit-normalized
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 0.001)
}

func TestHTTPEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	calls := &atomic.Int64{}
	srv := fakeEmbedService(t, calls)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL)

	vec, err := e.Embed(context.Background(), "   ", ModeQuery)
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 4), vec)
	assert.Equal(t, int64(0), calls.Load(), "no service call for empty text")
}

func TestHTTPEmbedder_EmbedBatch(t *testing.T) {
	srv := fakeEmbedService(t, nil)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL)

	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two", "three"}, ModeDocument)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
}

func TestHTTPEmbedder_BatchTooLarge(t *testing.T) {
	srv := fakeEmbedService(t, nil)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL)

	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "text"
	}
	_, err := e.EmbedBatch(context.Background(), texts, ModeDocument)
	require.Error(t, err)
	assert.Equal(t, coreerrors.ErrCodeBatchTooLarge, coreerrors.GetCode(err))
}

func TestHTTPEmbedder_RetriesThenFails(t *testing.T) {
	calls := &atomic.Int64{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(context.Background(), HTTPConfig{
		Endpoint:   srv.URL,
		Model:      "test-model",
		Dimensions: 4,
		MaxRetries: 2,
		SkipProbe:  true,
	})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "hello", ModeQuery)
	require.Error(t, err)
	assert.Equal(t, coreerrors.ErrCodeEmbedderUnavailable, coreerrors.GetCode(err))
	assert.Equal(t, int64(2), calls.Load())
}

func TestHTTPEmbedder_ClosedRejectsCalls(t *testing.T) {
	srv := fakeEmbedService(t, nil)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL)
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "hello", ModeQuery)
	require.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}
