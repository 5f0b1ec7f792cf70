// Package sequence allocates human-readable, monotonically increasing document
// numbers (invoices, commission invoices, receipts) scoped per owner or
// company. Allocation is a single atomic upsert so concurrent callers can
// never observe the same counter value.
package sequence

import (
	"context"
	"fmt"
	"time"
)

// Scope identifies the namespace a counter lives in.
type Scope string

const (
	ScopeOwner   Scope = "owner"
	ScopeCompany Scope = "company"
)

// Store persists per-scope counters.
type Store interface {
	NextValue(ctx context.Context, scope Scope, scopeID int64, prefix, period string) (int64, error)
}

// Generator produces document numbers of the form PREFIX-YYYYMM-NNNN.
type Generator struct {
	store Store
	now   func() time.Time
}

// NewGenerator constructs a Generator.
func NewGenerator(store Store) *Generator {
	return &Generator{store: store, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (g *Generator) WithNow(now func() time.Time) {
	if now != nil {
		g.now = now
	}
}

// Next allocates the next number in the scope for the current month.
func (g *Generator) Next(ctx context.Context, scope Scope, scopeID int64, prefix string) (string, error) {
	period := g.now().UTC().Format("200601")
	seq, err := g.store.NextValue(ctx, scope, scopeID, prefix, period)
	if err != nil {
		return "", fmt.Errorf("sequence: next %s/%d/%s: %w", scope, scopeID, prefix, err)
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, period, seq), nil
}
