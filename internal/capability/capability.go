// Package capability holds the registry feature modules publish their
// capabilities into, plus the dispatch metadata the discovery endpoint serves.
package capability

import (
	"context"

	"github.com/jellydator/validation"

	"github.com/betterportal/gateway/internal/auth/domain"
	customValidation "github.com/betterportal/gateway/internal/validation"
)

// Kind names a capability class. Configurable kinds are authorized
// per-registration; internal kinds are served without authorization.
type Kind string

const (
	KindSearch            Kind = "search"
	KindSearchCache       Kind = "searchCache"
	KindSearchAuthed      Kind = "searchAuthed"
	KindSearchCacheAuthed Kind = "searchCacheAuthed"
	KindChangelog         Kind = "changelog"
	KindSettings          Kind = "settings"
	KindSettingsAuthed    Kind = "settingsAuthed"

	KindUIServices  Kind = "uiServices"
	KindPermissions Kind = "permissions"
)

var kinds = map[Kind]struct{}{
	KindSearch:            {},
	KindSearchCache:       {},
	KindSearchAuthed:      {},
	KindSearchCacheAuthed: {},
	KindChangelog:         {},
	KindSettings:          {},
	KindSettingsAuthed:    {},
	KindUIServices:        {},
	KindPermissions:       {},
}

// ParseKind maps a request path segment onto a known kind.
func ParseKind(s string) (Kind, bool) {
	kind := Kind(s)
	_, ok := kinds[kind]
	return kind, ok
}

// Internal reports whether the kind bypasses authorization entirely.
func (k Kind) Internal() bool {
	return k == KindUIServices || k == KindPermissions
}

// Handler answers one dispatch call. dispatchKey is the registration-internal
// key mapped from the public key name. A nil result with a nil error means
// the registration has nothing to contribute for this key.
type Handler func(ctx context.Context, token *domain.AuthToken, clientID, dispatchKey string, query map[string]string) (any, error)

// Registration is one published capability. Keys maps public key names to the
// registration's internal dispatch keys. Permission guards dispatch for
// configurable kinds; nil means no extra grant beyond a valid token.
type Registration struct {
	Service    string
	Kind       Kind
	Keys       map[string]string
	Handler    Handler
	Permission *domain.BasePermission
}

// Validate implements validation.Validatable.
func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Service, validation.Required, customValidation.NotBlank),
		validation.Field(&r.Kind, validation.By(func(any) error {
			if _, ok := kinds[r.Kind]; !ok {
				return validation.NewError("validation_unknown_kind", "must be a known capability kind")
			}
			return nil
		})),
		validation.Field(&r.Keys, validation.Required, validation.Each(customValidation.NotBlank)),
		validation.Field(&r.Handler, validation.By(func(any) error {
			if r.Handler == nil {
				return validation.NewError("validation_handler_required", "cannot be nil")
			}
			return nil
		})),
	)
}
