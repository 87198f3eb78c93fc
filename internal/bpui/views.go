package bpui

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jellydator/validation"

	customValidation "github.com/betterportal/gateway/internal/validation"
)

// ViewDefinition describes one UI entry a theme exposes for discovery.
type ViewDefinition struct {
	Name                       string   `json:"name"`
	Description                string   `json:"description"`
	Path                       string   `json:"path"`
	RequiresAdditionalServices []string `json:"requiresAdditionalServices"`
	RequiresPermissions        []string `json:"requiresPermissions"`
}

// Validate implements validation.Validatable. Required permissions are full
// grant strings the caller must hold for the view to be offered.
func (v ViewDefinition) Validate() error {
	return validation.ValidateStruct(&v,
		validation.Field(&v.Name, validation.Required, customValidation.NotBlank),
		validation.Field(&v.Path, validation.Required, customValidation.NotBlank),
		validation.Field(&v.RequiresPermissions, validation.Each(customValidation.GrantFormat)),
	)
}

// LoadViewDefinitions reads the definition.json of every theme folder under
// viewsDir, keyed by theme name. Theme folders without a definition file are
// skipped; a malformed or invalid definition fails the load.
func LoadViewDefinitions(viewsDir string) (map[string][]ViewDefinition, error) {
	entries, err := os.ReadDir(viewsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]ViewDefinition{}, nil
		}
		return nil, err
	}

	definitions := make(map[string][]ViewDefinition)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(viewsDir, entry.Name(), "definition.json"))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		var views []ViewDefinition
		if err := json.Unmarshal(raw, &views); err != nil {
			return nil, fmt.Errorf("theme %s: %w", entry.Name(), err)
		}
		for _, view := range views {
			if err := view.Validate(); err != nil {
				return nil, fmt.Errorf("theme %s view %q: %w",
					entry.Name(), view.Name, customValidation.WrapValidationError(err))
			}
		}
		definitions[entry.Name()] = views
	}
	return definitions, nil
}
