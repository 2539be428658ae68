package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIntelClient(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		client, err := NewIntelClient("", "/v1/advisories", 0)
		assert.Error(t, err)
		assert.Nil(t, client)
	})

	t.Run("applies default timeout", func(t *testing.T) {
		client, err := NewIntelClient("http://localhost:9090", "/v1/advisories", 0)
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, client.HTTPClient.Timeout)
	})
}

func TestFetchAdvisories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got: %s", r.Method)
		}

		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected Content-Type: application/json, got: %s", ct)
		}

		body, _ := io.ReadAll(r.Body)

		var req map[string][]string
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("Request body is not JSON: %v", err)
		}

		assert.Equal(t, []string{"CVE-2021-44228"}, req["cves"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"advisories": {"CVE-2021-44228": {"epss": 0.97}}}`))
	}))
	defer server.Close()

	client, err := NewIntelClient(server.URL, "/v1/advisories", 5*time.Second)
	require.NoError(t, err)

	resp, err := client.FetchAdvisories(context.Background(), []string{"CVE-2021-44228"})
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetIntelHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewIntelClient(server.URL, "/v1/advisories", 5*time.Second)
	require.NoError(t, err)

	resp, err := client.GetIntelHealth(context.Background())
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
