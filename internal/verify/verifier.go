package verify

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// SearchProvider is the external lookup used to find corroborating
// coverage of a story. It is best-effort: errors degrade to zero
// additional sources.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// Config holds the trust policy.
type Config struct {
	Allowlist     []string // trusted registrable domains
	AllowFallback bool     // let unverified URLs fill remaining slots
}

// Verifier enforces the source-trust policy: a URL is verified iff its
// registrable domain matches, or is a subdomain of, an allowlist entry.
type Verifier struct {
	allowlist     []string
	allowFallback bool
	logger        *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Verifier {
	allowlist := make([]string, 0, len(cfg.Allowlist))
	for _, d := range cfg.Allowlist {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			allowlist = append(allowlist, d)
		}
	}
	return &Verifier{
		allowlist:     allowlist,
		allowFallback: cfg.AllowFallback,
		logger:        logger.With("component", "verify"),
	}
}

// IsVerified reports whether rawURL belongs to a trusted domain.
func (v *Verifier) IsVerified(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		registrable = host
	}

	for _, trusted := range v.allowlist {
		if host == trusted || registrable == trusted || strings.HasSuffix(host, "."+trusted) {
			return true
		}
	}
	return false
}

// GatherSources collects up to maxNeeded source URLs for a story:
// the origin link plus search-provider results, deduplicated by exact
// URL, trusted domains first. When the fallback policy is disabled the
// result holds verified URLs only. The second return value is the
// number of verified URLs included.
func (v *Verifier) GatherSources(ctx context.Context, provider SearchProvider, query, origin string, maxNeeded int) ([]string, int) {
	if maxNeeded <= 0 {
		return nil, 0
	}

	urls := []string{origin}
	if provider != nil {
		results, err := provider.Search(ctx, query, maxNeeded*4)
		if err != nil {
			v.logger.Warn("source search failed", "query", query, "error", err)
		} else {
			urls = append(urls, results...)
		}
	}

	seen := make(map[string]struct{}, len(urls))
	var verified, fallback []string
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if v.IsVerified(u) {
			verified = append(verified, u)
		} else {
			fallback = append(fallback, u)
		}
	}

	if len(verified) > maxNeeded {
		verified = verified[:maxNeeded]
	}
	sources := verified
	if v.allowFallback {
		for _, u := range fallback {
			if len(sources) >= maxNeeded {
				break
			}
			sources = append(sources, u)
		}
	}

	return sources, len(verified)
}
