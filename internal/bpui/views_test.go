package bpui

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTheme(t *testing.T, viewsDir, theme, definition string) {
	t.Helper()
	dir := filepath.Join(viewsDir, theme)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "definition.json"), []byte(definition), 0o644))
}

func TestLoadViewDefinitions(t *testing.T) {
	viewsDir := t.TempDir()
	writeTheme(t, viewsDir, "default", `[
		{"name": "Dashboard", "path": "dashboard.vue", "requiresPermissions": ["dashboard:read:*"]},
		{"name": "Invoices", "path": "invoices.vue", "requiresAdditionalServices": ["billing"]}
	]`)
	writeTheme(t, viewsDir, "dark", `[{"name": "Dashboard", "path": "dashboard.vue"}]`)
	require.NoError(t, os.MkdirAll(filepath.Join(viewsDir, "empty-theme"), 0o755))

	definitions, err := LoadViewDefinitions(viewsDir)
	require.NoError(t, err)

	require.Len(t, definitions, 2)
	require.Len(t, definitions["default"], 2)
	assert.Equal(t, "Dashboard", definitions["default"][0].Name)
	assert.Equal(t, []string{"dashboard:read:*"}, definitions["default"][0].RequiresPermissions)
	assert.Equal(t, []string{"billing"}, definitions["default"][1].RequiresAdditionalServices)
	assert.Len(t, definitions["dark"], 1)
	assert.NotContains(t, definitions, "empty-theme")
}

func TestLoadViewDefinitions_MissingDir(t *testing.T) {
	definitions, err := LoadViewDefinitions(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, definitions)
}

func TestLoadViewDefinitions_InvalidDefinition(t *testing.T) {
	tests := []struct {
		name       string
		definition string
	}{
		{name: "MalformedJSON", definition: `{not json`},
		{name: "MissingName", definition: `[{"path": "a.vue"}]`},
		{name: "MissingPath", definition: `[{"name": "A"}]`},
		{name: "BadGrantString", definition: `[{"name": "A", "path": "a.vue", "requiresPermissions": ["not-a-grant"]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viewsDir := t.TempDir()
			writeTheme(t, viewsDir, "default", tt.definition)

			_, err := LoadViewDefinitions(viewsDir)
			assert.Error(t, err)
		})
	}
}
