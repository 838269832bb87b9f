package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telembed/telembed/internal/domain/credential"
	"github.com/telembed/telembed/internal/domain/embedding"
)

func TestEmbedSuccess(t *testing.T) {
	var gotPath, gotKey string
	var gotBody embedContentRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float64{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "text-embedding-004", 3)
	require.NoError(t, err)

	vec, err := client.Embed(context.Background(), "hello", credential.Credential{Secret: "key-1"})
	require.NoError(t, err)

	assert.Equal(t, embedding.Vector{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "/v1beta/models/text-embedding-004:embedContent", gotPath)
	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, "models/text-embedding-004", gotBody.Model)
	assert.Equal(t, 3, gotBody.OutputDimensionality)
	require.Len(t, gotBody.Content.Parts, 1)
	assert.Equal(t, "hello", gotBody.Content.Parts[0].Text)
}

func TestEmbedClassifies429AsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "text-embedding-004", 3)
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "hello", credential.Credential{Secret: "k"})
	require.Error(t, err)
	assert.True(t, embedding.IsRateLimited(err))
}

func TestEmbedClassifiesResourceExhaustedStatus(t *testing.T) {
	// Some proxies rewrite the HTTP status; the RPC status still tags it.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "text-embedding-004", 3)
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "hello", credential.Credential{Secret: "k"})
	require.Error(t, err)
	assert.True(t, embedding.IsRateLimited(err))
}

func TestEmbedServerErrorIsNotRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "text-embedding-004", 3)
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "hello", credential.Credential{Secret: "k"})
	require.Error(t, err)
	assert.False(t, embedding.IsRateLimited(err))

	var pe *embedding.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
}

func TestEmbedRejectsDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float64{0.1, 0.2}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "text-embedding-004", 3)
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "hello", credential.Credential{Secret: "k"})
	assert.ErrorContains(t, err, "dimension mismatch")
}
