package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/argus-sec/argus/internal/clients"
	"github.com/argus-sec/argus/internal/config"
	"github.com/argus-sec/argus/internal/telemetry"
)

// Advisory is one threat-intel record for a CVE.
type Advisory struct {
	CVE      string `json:"cve"`
	Severity string `json:"severity"`
	Summary  string `json:"summary"`
	URL      string `json:"url,omitempty"`
	Source   string `json:"source"`
}

// IntelProvider resolves CVE identifiers into advisories.
type IntelProvider interface {
	Advisories(ctx context.Context, cves []string) ([]Advisory, error)
}

// StaticIntelProvider serves advisories from a built-in table. CVEs without
// an entry still get a placeholder advisory so every distinct CVE in a run
// produces exactly one record.
type StaticIntelProvider struct{}

// NewStaticIntelProvider creates a provider backed by the built-in table.
func NewStaticIntelProvider() *StaticIntelProvider {
	return &StaticIntelProvider{}
}

var staticAdvisories = map[string]Advisory{
	"CVE-2021-44228": {
		CVE:      "CVE-2021-44228",
		Severity: "CRITICAL",
		Summary:  "log4j remote code execution via JNDI lookup",
		URL:      "https://nvd.nist.gov/vuln/detail/CVE-2021-44228",
		Source:   "static",
	},
	"CVE-2021-23337": {
		CVE:      "CVE-2021-23337",
		Severity: "HIGH",
		Summary:  "lodash command injection via template",
		URL:      "https://nvd.nist.gov/vuln/detail/CVE-2021-23337",
		Source:   "static",
	},
	"CVE-2020-8203": {
		CVE:      "CVE-2020-8203",
		Severity: "HIGH",
		Summary:  "lodash prototype pollution in zipObjectDeep",
		URL:      "https://nvd.nist.gov/vuln/detail/CVE-2020-8203",
		Source:   "static",
	},
	"CVE-2018-16487": {
		CVE:      "CVE-2018-16487",
		Severity: "MEDIUM",
		Summary:  "lodash prototype pollution in merge and mergeWith",
		URL:      "https://nvd.nist.gov/vuln/detail/CVE-2018-16487",
		Source:   "static",
	},
}

// Advisories returns one advisory per CVE, never an error.
func (p *StaticIntelProvider) Advisories(_ context.Context, cves []string) ([]Advisory, error) {
	advisories := make([]Advisory, 0, len(cves))

	for _, cve := range cves {
		if advisory, ok := staticAdvisories[cve]; ok {
			advisories = append(advisories, advisory)
			continue
		}

		advisories = append(advisories, Advisory{
			CVE:      cve,
			Severity: "UNKNOWN",
			Summary:  "no published advisory data",
			Source:   "static",
		})
	}

	return advisories, nil
}

// FeedIntelProvider resolves advisories through the external intel feed.
type FeedIntelProvider struct {
	client *clients.IntelClient
}

// NewFeedIntelProvider creates a provider backed by the intel feed client.
func NewFeedIntelProvider(client *clients.IntelClient) *FeedIntelProvider {
	return &FeedIntelProvider{client: client}
}

type advisoryFeedResponse struct {
	Advisories []Advisory `json:"advisories"`
}

// Advisories fetches advisories for the given CVEs from the feed.
func (p *FeedIntelProvider) Advisories(ctx context.Context, cves []string) ([]Advisory, error) {
	resp, err := p.client.FetchAdvisories(ctx, cves)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch advisories: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("intel feed returned status %d", resp.StatusCode)
	}

	var feed advisoryFeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode advisory response: %w", err)
	}

	return feed.Advisories, nil
}

type cachedAdvisory struct {
	advisory Advisory
	expires  time.Time
}

// IntelService resolves CVEs through a provider with per-CVE TTL caching.
type IntelService struct {
	provider  IntelProvider
	logger    *slog.Logger
	telemetry *telemetry.Helper

	mutex sync.RWMutex
	cache map[string]cachedAdvisory
}

// NewIntelService creates a new IntelService around the given provider.
func NewIntelService(provider IntelProvider, logger *slog.Logger) *IntelService {
	return &IntelService{
		provider:  provider,
		logger:    logger,
		telemetry: telemetry.NewTelemetryHelper("argus/services"),
		cache:     make(map[string]cachedAdvisory),
	}
}

// GetAdvisories resolves one advisory per distinct CVE, sorted by CVE.
// Cached entries are served until their TTL expires; only the misses go to
// the provider.
func (s *IntelService) GetAdvisories(ctx context.Context, cves []string) ([]Advisory, error) {
	ctx, span := s.telemetry.StartSpan(ctx, "intel.get_advisories")
	defer span.End()

	distinct := dedupeCVEs(cves)
	now := time.Now()

	advisories := make([]Advisory, 0, len(distinct))
	misses := make([]string, 0, len(distinct))

	s.mutex.RLock()
	for _, cve := range distinct {
		if entry, ok := s.cache[cve]; ok && now.Before(entry.expires) {
			advisories = append(advisories, entry.advisory)
			continue
		}

		misses = append(misses, cve)
	}
	s.mutex.RUnlock()

	s.telemetry.SetCacheAttributes(span, len(misses) == 0)

	if len(misses) > 0 {
		fetched, err := s.provider.Advisories(ctx, misses)
		if err != nil {
			s.telemetry.SetErrorAttribute(span, err)
			return nil, err
		}

		ttl := config.GetIntelCacheTTL()
		expires := now.Add(ttl)

		s.mutex.Lock()
		for _, advisory := range fetched {
			s.cache[advisory.CVE] = cachedAdvisory{advisory: advisory, expires: expires}
		}
		s.mutex.Unlock()

		advisories = append(advisories, fetched...)

		s.logger.DebugContext(ctx, "Resolved advisories from provider",
			"requested", len(distinct),
			"fetched", len(fetched),
			"cached", len(distinct)-len(misses),
		)
	}

	sort.Slice(advisories, func(i, j int) bool {
		return advisories[i].CVE < advisories[j].CVE
	})

	return advisories, nil
}

// dedupeCVEs upper-cases, deduplicates and sorts CVE identifiers.
func dedupeCVEs(cves []string) []string {
	seen := make(map[string]struct{}, len(cves))
	distinct := make([]string, 0, len(cves))

	for _, cve := range cves {
		normalized := strings.ToUpper(strings.TrimSpace(cve))
		if normalized == "" {
			continue
		}

		if _, ok := seen[normalized]; ok {
			continue
		}

		seen[normalized] = struct{}{}
		distinct = append(distinct, normalized)
	}

	sort.Strings(distinct)

	return distinct
}
