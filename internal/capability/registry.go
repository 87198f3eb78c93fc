package capability

import (
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"slices"
	"sort"
	"sync"

	customValidation "github.com/betterportal/gateway/internal/validation"
)

// Registry is the append-only store of capability registrations. Writes
// happen at module-init time before traffic begins; reads during request
// handling are lock-protected but effectively contention-free.
type Registry struct {
	logger *slog.Logger

	mu            sync.RWMutex
	registrations []Registration
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register appends a registration, preserving registration order for
// dispatch. An invalid registration is logged and dropped rather than served
// half-configured.
func (r *Registry) Register(reg Registration) {
	if err := reg.Validate(); err != nil {
		r.logger.Error("capability registration rejected",
			slog.String("service", reg.Service),
			slog.String("kind", string(reg.Kind)),
			slog.String("error", customValidation.WrapValidationError(err).Error()),
		)
		return
	}

	keyNames := make([]string, 0, len(reg.Keys))
	for name := range reg.Keys {
		keyNames = append(keyNames, name)
	}
	sort.Strings(keyNames)

	r.logger.Info("capability registered",
		slog.String("service", reg.Service),
		slog.String("kind", string(reg.Kind)),
		slog.Any("keys", keyNames),
	)

	r.mu.Lock()
	r.registrations = append(r.registrations, reg)
	r.mu.Unlock()
}

// Query returns, in registration order, every registration of the given kind
// whose key set contains keyName.
func (r *Registry) Query(kind Kind, keyName string) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Registration
	for _, reg := range r.registrations {
		if reg.Kind != kind {
			continue
		}
		if _, ok := reg.Keys[keyName]; ok {
			matched = append(matched, reg)
		}
	}
	return matched
}

// Kinds returns the deduplicated map of registered kind to declared key
// names, sorted for stable hashing. This is discovery metadata, not data.
func (r *Registry) Kinds() map[Kind][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[Kind][]string)
	for _, reg := range r.registrations {
		for name := range reg.Keys {
			if !slices.Contains(result[reg.Kind], name) {
				result[reg.Kind] = append(result[reg.Kind], name)
			}
		}
	}
	for kind := range result {
		sort.Strings(result[kind])
	}
	return result
}

// DiscoveryHash content-hashes the discovery metadata for cache validation.
func (r *Registry) DiscoveryHash() string {
	known := r.Kinds()

	sortedKinds := make([]string, 0, len(known))
	for kind := range known {
		sortedKinds = append(sortedKinds, string(kind))
	}
	sort.Strings(sortedKinds)

	hash := md5.New()
	for _, kind := range sortedKinds {
		hash.Write([]byte(kind))
		for _, name := range known[Kind(kind)] {
			hash.Write([]byte(name))
		}
	}
	return hex.EncodeToString(hash.Sum(nil))
}
