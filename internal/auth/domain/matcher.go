package domain

import (
	"slices"
	"strings"
)

// Decision is the result of a permission evaluation. VisibleFields holds the
// field paths the caller may see, in declaration order. A granted decision
// with zero visible fields means the permission declares fields but none of
// the caller's grants name them.
type Decision struct {
	Granted       bool
	VisibleFields []string
}

// Denied is the zero decision.
var Denied = Decision{}

// Evaluate decides whether the caller's permissions grant the required
// permission for the named service and, for field-scoped permissions, which
// field paths are visible.
//
// Root-scope grants short-circuit before per-service evaluation:
//  1. "root" in the root scope grants everything, all declared fields visible.
//  2. The lower-cased service name in the root scope grants the whole service.
//
// Otherwise the service's grant list is filtered by permission id, then
// matched by action: an exact action match grants, with field visibility from
// the grants' field segments intersected with the declared fields; an action
// wildcard with a field segment grants with all fields visible.
//
// Evaluate is a pure function of its inputs: matching is existence-based, so
// entry ordering inside a grant list never matters.
func Evaluate(perms ClientPermissions, serviceName string, required BasePermission) Decision {
	allFields := required.FieldPaths()
	service := strings.ToLower(serviceName)

	rootScope := perms.RootScope()
	if slices.Contains(rootScope, RootGrant) {
		return Decision{Granted: true, VisibleFields: allFields}
	}
	if slices.Contains(rootScope, service) {
		return Decision{Granted: true, VisibleFields: allFields}
	}

	var matched []Grant
	for _, g := range ParseGrants(perms[service]) {
		if g.PermissionID == required.ID {
			matched = append(matched, g)
		}
	}
	if len(matched) == 0 {
		return Denied
	}

	var exact []Grant
	for _, g := range matched {
		if g.Action == string(required.Action) {
			exact = append(exact, g)
		}
	}

	if len(exact) > 0 {
		grantedIDs := make(map[string]struct{}, len(exact))
		for _, g := range exact {
			if g.AllFields() {
				return Decision{Granted: true, VisibleFields: allFields}
			}
			if g.FieldID != "" {
				grantedIDs[g.FieldID] = struct{}{}
			}
		}

		// Dangling field grants (ids not declared on the permission) are
		// ignored, not errors.
		visible := make([]string, 0, len(required.Fields))
		for _, f := range required.Fields {
			if _, ok := grantedIDs[f.ID]; ok {
				visible = append(visible, f.FieldPath)
			}
		}
		return Decision{Granted: true, VisibleFields: visible}
	}

	for _, g := range matched {
		if g.Action == Wildcard && g.FieldID != "" {
			return Decision{Granted: true, VisibleFields: allFields}
		}
	}

	return Denied
}

// HasPermission is the coarse string-only permission check kept for
// compatibility with callers that predate field-scoped grants. A grant exists
// when the root scope or the service's grant list contains "root" or the
// literal required string. No field granularity is applied.
func HasPermission(perms ClientPermissions, serviceName string, required string) bool {
	rootScope := perms.RootScope()
	if slices.Contains(rootScope, RootGrant) || slices.Contains(rootScope, required) {
		return true
	}

	serviceScope := perms[strings.ToLower(serviceName)]
	return slices.Contains(serviceScope, RootGrant) || slices.Contains(serviceScope, required)
}
