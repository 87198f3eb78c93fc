package capability

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/betterportal/gateway/internal/auth/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func nopHandler(_ context.Context, _ *domain.AuthToken, _ string, _ string, _ map[string]string) (any, error) {
	return nil, nil
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in       string
		ok       bool
		internal bool
	}{
		{in: "search", ok: true},
		{in: "searchCacheAuthed", ok: true},
		{in: "settings", ok: true},
		{in: "uiServices", ok: true, internal: true},
		{in: "permissions", ok: true, internal: true},
		{in: "Search", ok: false},
		{in: "unknown", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			kind, ok := ParseKind(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.internal, kind.Internal())
			}
		})
	}
}

func TestRegistry_Query(t *testing.T) {
	registry := newTestRegistry()
	registry.Register(Registration{
		Service: "tickets",
		Kind:    KindSearch,
		Keys:    map[string]string{"tickets": "ticket-search", "incidents": "incident-search"},
		Handler: nopHandler,
	})
	registry.Register(Registration{
		Service: "billing",
		Kind:    KindSearch,
		Keys:    map[string]string{"invoices": "invoice-search"},
		Handler: nopHandler,
	})
	registry.Register(Registration{
		Service: "billing",
		Kind:    KindSettings,
		Keys:    map[string]string{"invoices": "invoice-settings"},
		Handler: nopHandler,
	})

	t.Run("MatchesKindAndKey", func(t *testing.T) {
		matched := registry.Query(KindSearch, "invoices")
		require.Len(t, matched, 1)
		assert.Equal(t, "billing", matched[0].Service)
		assert.Equal(t, "invoice-search", matched[0].Keys["invoices"])
	})

	t.Run("PreservesRegistrationOrder", func(t *testing.T) {
		registry.Register(Registration{
			Service: "archive",
			Kind:    KindSearch,
			Keys:    map[string]string{"invoices": "archived-invoice-search"},
			Handler: nopHandler,
		})

		matched := registry.Query(KindSearch, "invoices")
		require.Len(t, matched, 2)
		assert.Equal(t, "billing", matched[0].Service)
		assert.Equal(t, "archive", matched[1].Service)
	})

	t.Run("NoMatches", func(t *testing.T) {
		assert.Empty(t, registry.Query(KindChangelog, "invoices"))
		assert.Empty(t, registry.Query(KindSearch, "users"))
	})
}

func TestRegistry_RejectsInvalidRegistrations(t *testing.T) {
	tests := []struct {
		name string
		reg  Registration
	}{
		{
			name: "BlankService",
			reg:  Registration{Service: "  ", Kind: KindSearch, Keys: map[string]string{"x": "1"}, Handler: nopHandler},
		},
		{
			name: "UnknownKind",
			reg:  Registration{Service: "billing", Kind: Kind("bogus"), Keys: map[string]string{"x": "1"}, Handler: nopHandler},
		},
		{
			name: "NoKeys",
			reg:  Registration{Service: "billing", Kind: KindSearch, Handler: nopHandler},
		},
		{
			name: "BlankDispatchKey",
			reg:  Registration{Service: "billing", Kind: KindSearch, Keys: map[string]string{"x": " "}, Handler: nopHandler},
		},
		{
			name: "NilHandler",
			reg:  Registration{Service: "billing", Kind: KindSearch, Keys: map[string]string{"x": "1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := newTestRegistry()
			registry.Register(tt.reg)
			assert.Empty(t, registry.Kinds())
		})
	}
}

func TestRegistry_Kinds(t *testing.T) {
	registry := newTestRegistry()
	registry.Register(Registration{
		Service: "tickets",
		Kind:    KindSearch,
		Keys:    map[string]string{"tickets": "a"},
		Handler: nopHandler,
	})
	registry.Register(Registration{
		Service: "billing",
		Kind:    KindSearch,
		Keys:    map[string]string{"invoices": "b", "tickets": "c"},
		Handler: nopHandler,
	})

	known := registry.Kinds()

	// Key names are deduplicated across services and sorted.
	require.Len(t, known, 1)
	assert.Equal(t, []string{"invoices", "tickets"}, known[KindSearch])
}

func TestRegistry_DiscoveryHash(t *testing.T) {
	first := newTestRegistry()
	first.Register(Registration{Service: "a", Kind: KindSearch, Keys: map[string]string{"x": "1"}, Handler: nopHandler})
	first.Register(Registration{Service: "b", Kind: KindSettings, Keys: map[string]string{"y": "2"}, Handler: nopHandler})

	// Same metadata registered in a different order hashes identically.
	second := newTestRegistry()
	second.Register(Registration{Service: "b", Kind: KindSettings, Keys: map[string]string{"y": "2"}, Handler: nopHandler})
	second.Register(Registration{Service: "a", Kind: KindSearch, Keys: map[string]string{"x": "1"}, Handler: nopHandler})

	assert.Equal(t, first.DiscoveryHash(), second.DiscoveryHash())

	second.Register(Registration{Service: "c", Kind: KindSearch, Keys: map[string]string{"z": "3"}, Handler: nopHandler})
	assert.NotEqual(t, first.DiscoveryHash(), second.DiscoveryHash())
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	registry := newTestRegistry()
	registry.Register(Registration{
		Service: "tickets",
		Kind:    KindSearch,
		Keys:    map[string]string{"tickets": "a"},
		Handler: nopHandler,
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = registry.Query(KindSearch, "tickets")
				_ = registry.Kinds()
				_ = registry.DiscoveryHash()
			}
		}()
	}
	wg.Wait()
}
