package domain

import "net/http"

// Action is the operation class a permission guards. Actions map 1:1 to HTTP
// methods on registered routes.
type Action string

const (
	// ReadAction allows reading resource data (GET).
	ReadAction Action = "read"

	// CreateAction allows creating resource data (POST).
	CreateAction Action = "create"

	// UpdateAction allows updating resource data (PATCH).
	UpdateAction Action = "update"

	// DeleteAction allows removing resource data (DELETE).
	DeleteAction Action = "delete"

	// ExecuteAction allows invoking resource operations (PUT).
	ExecuteAction Action = "execute"
)

// ActionForMethod returns the action guarding the given HTTP method.
// Returns ("", false) for methods that have no action mapping.
func ActionForMethod(method string) (Action, bool) {
	switch method {
	case http.MethodGet:
		return ReadAction, true
	case http.MethodPost:
		return CreateAction, true
	case http.MethodPatch:
		return UpdateAction, true
	case http.MethodDelete:
		return DeleteAction, true
	case http.MethodPut:
		return ExecuteAction, true
	default:
		return "", false
	}
}

// PermissionField is a field-level sub-permission used to redact parts of a
// response object. FieldPath addresses the field inside the payload
// (e.g. "$.amount").
type PermissionField struct {
	ID          string `json:"id"`
	FieldPath   string `json:"fieldPath"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// BasePermission declares a permission a route or capability requires.
type BasePermission struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Action      Action            `json:"action"`
	Require2FA  bool              `json:"require2FA"`
	Fields      []PermissionField `json:"fields,omitempty"`
}

// FieldPaths returns the declared field paths in declaration order.
func (p BasePermission) FieldPaths() []string {
	paths := make([]string, 0, len(p.Fields))
	for _, f := range p.Fields {
		paths = append(paths, f.FieldPath)
	}
	return paths
}

// Required describes the authorization requirement of a route. A nil *Required
// means no auth check at all (public route). Optional means a valid token is
// required but no specific grant.
type Required struct {
	Permission BasePermission
	Optional   bool
}

// Require builds a mandatory authorization requirement.
func Require(p BasePermission) *Required {
	return &Required{Permission: p}
}

// RequireOptional builds an optional authorization requirement: being logged
// in is enough, the permission only declares the visible fields.
func RequireOptional(p BasePermission) *Required {
	return &Required{Permission: p, Optional: true}
}
