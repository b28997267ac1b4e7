package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/AbdoElsaed/ufd/internal/domain"
)

// CookieAggregator collects platform-relevant session cookies from the host
// cookie store and turns them into request headers. Collection failures on a
// single domain never abort a request; the request degrades to whatever
// cookies were found, possibly none.
type CookieAggregator struct {
	store  domain.CookieStore
	logger *zap.Logger
}

// NewCookieAggregator creates a new cookie aggregator
func NewCookieAggregator(store domain.CookieStore, logger *zap.Logger) *CookieAggregator {
	return &CookieAggregator{
		store:  store,
		logger: logger,
	}
}

// Collect builds the auth headers for a platform. The returned set is empty
// (not an error) when no cookies are found or the store is unavailable;
// callers proceed unauthenticated.
func (a *CookieAggregator) Collect(ctx context.Context, platform *domain.PlatformDescriptor) domain.AuthHeaderSet {
	headers := domain.AuthHeaderSet{}

	if a.store == nil || !a.store.Available() {
		a.logger.Warn("Cookie store not available, proceeding unauthenticated",
			zap.String("platform", string(platform.ID)))
		return headers
	}

	cookies := a.collectCookies(ctx, platform)
	if len(cookies) == 0 {
		a.logger.Debug("No cookies found for platform",
			zap.String("platform", string(platform.ID)))
		return headers
	}

	headers["Cookie"] = domain.CookieHeader(cookies)

	// Sites with bot detection check the request origin against the session.
	if platform.Origin != "" {
		headers["Referer"] = platform.Origin
		headers["Origin"] = platform.Origin
	}

	a.logger.Debug("Collected cookies for platform",
		zap.String("platform", string(platform.ID)),
		zap.Int("count", len(cookies)))

	return headers
}

// collectCookies queries every configured cookie domain in both its bare and
// dot-prefixed forms, filters by the allowlist unless the platform collects
// everything, and deduplicates by name keeping the first occurrence.
func (a *CookieAggregator) collectCookies(ctx context.Context, platform *domain.PlatformDescriptor) []domain.CookieEntry {
	allowed := make(map[string]bool, len(platform.CookieNames))
	for _, name := range platform.CookieNames {
		allowed[name] = true
	}

	seen := make(map[string]bool)
	var result []domain.CookieEntry

	for _, dom := range platform.CookieDomains {
		for _, queryDomain := range domainForms(dom) {
			cookies, err := a.store.Cookies(ctx, queryDomain)
			if err != nil {
				a.logger.Warn("Failed to query cookie domain, skipping",
					zap.String("domain", queryDomain),
					zap.Error(err))
				continue
			}

			for _, c := range cookies {
				if !platform.CollectAll && len(allowed) > 0 && !allowed[c.Name] {
					continue
				}
				if seen[c.Name] {
					continue
				}
				seen[c.Name] = true
				result = append(result, c)
			}
		}
	}

	return result
}

// domainForms returns the bare and dot-prefixed variants of a cookie domain.
// Cookie stores index the two forms separately.
func domainForms(dom string) []string {
	if strings.HasPrefix(dom, ".") {
		return []string{strings.TrimPrefix(dom, "."), dom}
	}
	return []string{dom, "." + dom}
}
