package domain

import "strings"

// Wildcard matches any value in a grant-string segment.
const Wildcard = "*"

// Grant is the parsed form of a grant string "<permissionId>:<action>:<fieldId>".
// Grant strings are the wire format kept for backward compatibility; parsing
// happens once at this boundary and nothing downstream matches on raw strings.
type Grant struct {
	PermissionID string
	Action       string
	FieldID      string
}

// ParseGrant parses a single grant string. The literal "root" and blank
// strings are not grants and return false.
func ParseGrant(raw string) (Grant, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == RootGrant {
		return Grant{}, false
	}

	parts := strings.SplitN(raw, ":", 3)
	grant := Grant{PermissionID: parts[0]}
	if len(parts) > 1 {
		grant.Action = parts[1]
	}
	if len(parts) > 2 {
		grant.FieldID = parts[2]
	}
	return grant, true
}

// ParseGrants parses a grant list, dropping entries that are not grants.
func ParseGrants(raw []string) []Grant {
	grants := make([]Grant, 0, len(raw))
	for _, entry := range raw {
		if g, ok := ParseGrant(entry); ok {
			grants = append(grants, g)
		}
	}
	return grants
}

// MatchesAction reports whether the grant covers the action, either exactly
// or through the action wildcard.
func (g Grant) MatchesAction(action Action) bool {
	return g.Action == string(action) || g.Action == Wildcard
}

// AllFields reports whether the grant's field segment is the wildcard.
func (g Grant) AllFields() bool {
	return g.FieldID == Wildcard
}
