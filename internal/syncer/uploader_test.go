package syncer_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropadvisor/cropadvisor/internal/provider/resilience"
	"github.com/cropadvisor/cropadvisor/internal/recommendation"
	"github.com/cropadvisor/cropadvisor/internal/syncer"
)

func batch() []recommendation.Record {
	return []recommendation.Record{
		{ID: "rec_a", Source: recommendation.SourceOfflineCache},
		{ID: "rec_b", Source: recommendation.SourceOfflineCache},
	}
}

func TestNoopUploader(t *testing.T) {
	ids, err := syncer.NoopUploader{}.Upload(context.Background(), batch())
	require.NoError(t, err)
	assert.Equal(t, []string{"rec_a", "rec_b"}, ids)
}

func TestHTTPUploader_AcknowledgedIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body struct {
			Records []recommendation.Record `json:"records"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Records, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"acknowledged":["rec_b"]}`))
	}))
	defer server.Close()

	up := syncer.NewHTTPUploader(syncer.HTTPUploaderConfig{
		URL:        server.URL,
		APIKey:     "secret",
		HTTPClient: server.Client(),
	})

	ids, err := up.Upload(context.Background(), batch())
	require.NoError(t, err)
	assert.Equal(t, []string{"rec_b"}, ids)
}

func TestHTTPUploader_EmptyBodyAcknowledgesAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	up := syncer.NewHTTPUploader(syncer.HTTPUploaderConfig{URL: server.URL, HTTPClient: server.Client()})
	ids, err := up.Upload(context.Background(), batch())
	require.NoError(t, err)
	assert.Equal(t, []string{"rec_a", "rec_b"}, ids)
}

func TestHTTPUploader_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "client error", status: http.StatusBadRequest, body: `{"error":"bad"}`},
		{name: "malformed body", status: http.StatusOK, body: `{"acknowledged":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			up := syncer.NewHTTPUploader(syncer.HTTPUploaderConfig{URL: server.URL, HTTPClient: server.Client()})
			_, err := up.Upload(context.Background(), batch())
			assert.Error(t, err)
		})
	}
}

func TestHTTPUploader_RetriesThroughResilientClient(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		var body struct {
			Records []recommendation.Record `json:"records"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Records, 2)
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	up := syncer.NewHTTPUploader(syncer.HTTPUploaderConfig{URL: server.URL, Registry: registry})

	ids, err := up.Upload(context.Background(), batch())
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Equal(t, int32(2), attempts.Load())

	health := registry.GetHealth(resilience.ProviderSyncUpload)
	require.NotNil(t, health)
	assert.Equal(t, resilience.HealthHealthy, health.Status())
}
