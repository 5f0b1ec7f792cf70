package sequence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type mockStore struct {
	counters map[string]int64
}

func newMockStore() *mockStore {
	return &mockStore{counters: make(map[string]int64)}
}

func (m *mockStore) NextValue(_ context.Context, scope Scope, scopeID int64, prefix, period string) (int64, error) {
	key := fmt.Sprintf("%s:%d:%s:%s", scope, scopeID, prefix, period)
	m.counters[key]++
	return m.counters[key], nil
}

func fixedClock(y int, m time.Month) func() time.Time {
	return func() time.Time { return time.Date(y, m, 15, 12, 0, 0, 0, time.UTC) }
}

func TestNextFormatsNumber(t *testing.T) {
	g := NewGenerator(newMockStore())
	g.WithNow(fixedClock(2026, time.March))

	number, err := g.Next(context.Background(), ScopeOwner, 3, "INV")
	require.NoError(t, err)
	require.Equal(t, "INV-202603-0001", number)
}

func TestNextIncrementsWithinScope(t *testing.T) {
	g := NewGenerator(newMockStore())
	g.WithNow(fixedClock(2026, time.March))

	seen := make(map[string]bool)
	for i := 1; i <= 5; i++ {
		number, err := g.Next(context.Background(), ScopeOwner, 3, "INV")
		require.NoError(t, err)
		require.False(t, seen[number], "duplicate number %s", number)
		seen[number] = true
		require.Equal(t, fmt.Sprintf("INV-202603-%04d", i), number)
	}
}

func TestNextScopesAreIndependent(t *testing.T) {
	g := NewGenerator(newMockStore())
	g.WithNow(fixedClock(2026, time.March))

	a, err := g.Next(context.Background(), ScopeOwner, 3, "INV")
	require.NoError(t, err)
	b, err := g.Next(context.Background(), ScopeOwner, 4, "INV")
	require.NoError(t, err)
	c, err := g.Next(context.Background(), ScopeCompany, 3, "COM")
	require.NoError(t, err)

	require.Equal(t, "INV-202603-0001", a)
	require.Equal(t, "INV-202603-0001", b)
	require.Equal(t, "COM-202603-0001", c)

	r, err := g.Next(context.Background(), ScopeOwner, 3, "REC")
	require.NoError(t, err)
	require.Equal(t, "REC-202603-0001", r)
}

func TestNextResetsPerPeriod(t *testing.T) {
	store := newMockStore()
	g := NewGenerator(store)

	g.WithNow(fixedClock(2026, time.March))
	first, err := g.Next(context.Background(), ScopeOwner, 3, "INV")
	require.NoError(t, err)
	require.Equal(t, "INV-202603-0001", first)

	g.WithNow(fixedClock(2026, time.April))
	second, err := g.Next(context.Background(), ScopeOwner, 3, "INV")
	require.NoError(t, err)
	require.Equal(t, "INV-202604-0001", second)
}
