package compliance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"offramp/pkg/types"
)

// Provider is the remote source of truth for verification status. The gate
// never changes a status on its own; every transition comes from here.
type Provider interface {
	FetchStatus(ctx context.Context) (types.ComplianceStatus, error)
	ForceCheck(ctx context.Context) (types.ComplianceStatus, error)
	StartVerification(ctx context.Context) (*VerificationSession, error)
}

// Gate caches the verification status with a max-age revalidation policy.
// The cache is advisory only; Refresh always goes remote.
type Gate struct {
	provider Provider
	maxAge   time.Duration
	log      *logrus.Entry

	mu        sync.Mutex
	cached    types.ComplianceStatus
	fetchedAt time.Time
}

// NewGate creates a compliance gate with the given cache max age.
func NewGate(provider Provider, maxAge time.Duration) *Gate {
	return &Gate{
		provider: provider,
		maxAge:   maxAge,
		log:      logrus.WithField("component", "compliance-gate"),
	}
}

// Status returns the verification status, revalidating against the remote
// provider when the cached value is older than the max age.
func (g *Gate) Status(ctx context.Context) (types.ComplianceStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cached != "" && time.Since(g.fetchedAt) <= g.maxAge {
		return g.cached, nil
	}

	status, err := g.provider.FetchStatus(ctx)
	if err != nil {
		return "", fmt.Errorf("compliance status check failed: %w", err)
	}
	g.store(status)
	return status, nil
}

// Refresh forces a remote re-sync regardless of cache age.
func (g *Gate) Refresh(ctx context.Context) (types.ComplianceStatus, error) {
	status, err := g.provider.ForceCheck(ctx)
	if err != nil {
		return "", fmt.Errorf("compliance refresh failed: %w", err)
	}

	g.mu.Lock()
	g.store(status)
	g.mu.Unlock()

	return status, nil
}

// BeginVerification opens a new provider session. The local cache is
// invalidated so the next Status call observes the provider-side
// transition (rejected -> pending) instead of a stale value.
func (g *Gate) BeginVerification(ctx context.Context) (*VerificationSession, error) {
	session, err := g.provider.StartVerification(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.cached = ""
	g.fetchedAt = time.Time{}
	g.mu.Unlock()

	g.log.Info("verification session started")
	return session, nil
}

// store must be called with g.mu held.
func (g *Gate) store(status types.ComplianceStatus) {
	if status != g.cached {
		g.log.WithFields(logrus.Fields{
			"from": g.cached,
			"to":   status,
		}).Info("compliance status changed")
	}
	g.cached = status
	g.fetchedAt = time.Now()
}
