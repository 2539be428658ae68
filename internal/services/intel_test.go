package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-sec/argus/internal/clients"
	"github.com/argus-sec/argus/internal/testutils"
)

type stubIntelProvider struct {
	calls      int
	advisories []Advisory
	err        error
}

func (p *stubIntelProvider) Advisories(_ context.Context, cves []string) ([]Advisory, error) {
	p.calls++

	if p.err != nil {
		return nil, p.err
	}

	if p.advisories != nil {
		return p.advisories, nil
	}

	advisories := make([]Advisory, 0, len(cves))
	for _, cve := range cves {
		advisories = append(advisories, Advisory{CVE: cve, Severity: "HIGH", Source: "stub"})
	}

	return advisories, nil
}

func TestStaticIntelProvider_Advisories(t *testing.T) {
	provider := NewStaticIntelProvider()

	advisories, err := provider.Advisories(
		context.Background(),
		[]string{"CVE-2021-44228", "CVE-2099-0001"},
	)
	require.NoError(t, err)
	require.Len(t, advisories, 2)

	assert.Equal(t, "CRITICAL", advisories[0].Severity)
	assert.Contains(t, advisories[0].Summary, "log4j")

	// unknown CVEs still yield a placeholder record
	assert.Equal(t, "CVE-2099-0001", advisories[1].CVE)
	assert.Equal(t, "UNKNOWN", advisories[1].Severity)
	assert.Equal(t, "static", advisories[1].Source)
}

func TestDedupeCVEs(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "normalizes case and trims",
			input:    []string{" cve-2021-44228 ", "CVE-2021-44228"},
			expected: []string{"CVE-2021-44228"},
		},
		{
			name:     "sorts ordinally",
			input:    []string{"CVE-2022-1", "CVE-2020-9", "CVE-2021-5"},
			expected: []string{"CVE-2020-9", "CVE-2021-5", "CVE-2022-1"},
		},
		{
			name:     "drops empties",
			input:    []string{"", "  ", "CVE-2020-8203"},
			expected: []string{"CVE-2020-8203"},
		},
		{
			name:     "nil input",
			input:    nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, dedupeCVEs(tt.input))
		})
	}
}

func TestIntelService_GetAdvisories_SortsAndDedupes(t *testing.T) {
	provider := &stubIntelProvider{}
	service := NewIntelService(provider, testutils.NewTestLogger())

	advisories, err := service.GetAdvisories(
		context.Background(),
		[]string{"CVE-2021-23337", "cve-2020-8203", "CVE-2021-23337"},
	)
	require.NoError(t, err)
	require.Len(t, advisories, 2)

	assert.Equal(t, "CVE-2020-8203", advisories[0].CVE)
	assert.Equal(t, "CVE-2021-23337", advisories[1].CVE)
	assert.Equal(t, 1, provider.calls)
}

func TestIntelService_GetAdvisories_CachesResults(t *testing.T) {
	provider := &stubIntelProvider{}
	service := NewIntelService(provider, testutils.NewTestLogger())

	_, err := service.GetAdvisories(context.Background(), []string{"CVE-2021-44228"})
	require.NoError(t, err)

	advisories, err := service.GetAdvisories(context.Background(), []string{"CVE-2021-44228"})
	require.NoError(t, err)
	require.Len(t, advisories, 1)

	assert.Equal(t, 1, provider.calls, "second lookup should be served from cache")
}

func TestIntelService_GetAdvisories_PropagatesProviderError(t *testing.T) {
	provider := &stubIntelProvider{err: errors.New("feed unavailable")}
	service := NewIntelService(provider, testutils.NewTestLogger())

	advisories, err := service.GetAdvisories(context.Background(), []string{"CVE-2021-44228"})
	require.Error(t, err)
	assert.Nil(t, advisories)
}

func TestFeedIntelProvider_Advisories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/advisories", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"advisories": [
				{"cve": "CVE-2021-44228", "severity": "CRITICAL", "summary": "log4shell", "source": "feed"}
			]
		}`))
	}))
	defer server.Close()

	client, err := clients.NewIntelClient(server.URL, "/v1/advisories", 0)
	require.NoError(t, err)

	provider := NewFeedIntelProvider(client)

	advisories, err := provider.Advisories(context.Background(), []string{"CVE-2021-44228"})
	require.NoError(t, err)
	require.Len(t, advisories, 1)

	assert.Equal(t, "CVE-2021-44228", advisories[0].CVE)
	assert.Equal(t, "feed", advisories[0].Source)
}

func TestFeedIntelProvider_Advisories_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := clients.NewIntelClient(server.URL, "/v1/advisories", 0)
	require.NoError(t, err)

	provider := NewFeedIntelProvider(client)

	advisories, err := provider.Advisories(context.Background(), []string{"CVE-2021-44228"})
	require.Error(t, err)
	assert.Nil(t, advisories)
	assert.Contains(t, err.Error(), "502")
}
