package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/hashicorp/go-multierror"
)

// Pages and shared fragments whose rendered content depends on site
// configuration. Busted after every successful update.
var siteConfigCachePaths = []string{
	"/tag-onboarding",
	"/shell/top",
	"/shell/bottom",
	"/onboarding",
	"/",
}

type fragmentCache interface {
	Invalidate(ctx context.Context, key string) error
	InvalidateMatching(ctx context.Context, substr string) (int, error)
}

type cacheBuster struct {
	fragments   fragmentCache
	fingerprint string
	logger      *slog.Logger
}

func newCacheBuster(fragments fragmentCache, fingerprint string, logger *slog.Logger) *cacheBuster {
	if logger == nil {
		logger = slog.Default()
	}
	return &cacheBuster{fragments: fragments, fingerprint: fingerprint, logger: logger}
}

// BustSiteConfigViews invalidates every fixed entry plus all keys carrying
// the release fingerprint. Best effort: each invalidation is independent,
// failures are collected and logged once, and the caller never sees an
// error — the store update is the operation's true effect and the cache
// heals itself.
func (b *cacheBuster) BustSiteConfigViews(ctx context.Context) {
	var errs *multierror.Error
	for _, path := range siteConfigCachePaths {
		if err := b.fragments.Invalidate(ctx, path); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("invalidate %s: %w", path, err))
		}
	}
	if _, err := b.fragments.InvalidateMatching(ctx, b.fingerprint); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalidate matching %q: %w", b.fingerprint, err))
	}
	if err := errs.ErrorOrNil(); err != nil {
		b.logger.Warn("site config cache fanout incomplete", "error", err)
	}
}

// releaseFingerprint identifies the running deployment; fragment keys carry
// it so the wildcard invalidation is scoped to the current release.
func releaseFingerprint() string {
	if v := os.Getenv("ARBOR_RELEASE_FINGERPRINT"); v != "" {
		return v
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return "dev"
}
