// Package bpui resolves and serves content-addressed UI bundle files from a
// mounted bpui directory tree.
package bpui

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
)

// Subtree configures one of the four bundle sub-directories. Each has its own
// allowed file pattern, default-extension and default-file fallbacks, and an
// optional not-found search run when the resolved file does not exist.
type Subtree struct {
	Name             string
	Dir              string
	Allowed          *regexp.Regexp
	DefaultExtension string
	DefaultFile      string
	NotFoundSearch   func(dir string) (string, bool)
}

var (
	anyFile = regexp.MustCompile(`.*`)
	jsFile  = regexp.MustCompile(`\w+\.js$`)
	vueFile = regexp.MustCompile(`\w+\.vue$`)
)

// Subtrees builds the standard subtree set rooted at a bpui directory.
func Subtrees(bpuiDir string) []Subtree {
	return []Subtree{
		{
			Name:    "assets",
			Dir:     filepath.Join(bpuiDir, "assets"),
			Allowed: anyFile,
		},
		{
			Name:             "lib",
			Dir:              filepath.Join(bpuiDir, "lib"),
			Allowed:          jsFile,
			DefaultExtension: "js",
			DefaultFile:      "index.js",
			NotFoundSearch:   indexJSSearch,
		},
		{
			Name:             "views",
			Dir:              filepath.Join(bpuiDir, "views"),
			Allowed:          vueFile,
			DefaultExtension: "vue",
			DefaultFile:      "index.vue",
		},
		{
			Name:             "elib",
			Dir:              filepath.Join(bpuiDir, "elib"),
			Allowed:          jsFile,
			DefaultExtension: "js",
			DefaultFile:      "index.js",
			NotFoundSearch:   packageMainSearch,
		},
	}
}

// indexJSSearch resolves a directory to its index.js when one exists.
func indexJSSearch(dir string) (string, bool) {
	if _, err := os.Stat(filepath.Join(dir, "index.js")); err != nil {
		return "", false
	}
	return "index.js", true
}

// packageMainSearch resolves a directory through its package.json main field.
// The declared main file must actually exist.
func packageMainSearch(dir string) (string, bool) {
	raw, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return "", false
	}
	var descriptor struct {
		Main string `json:"main"`
	}
	if err := json.Unmarshal(raw, &descriptor); err != nil || descriptor.Main == "" {
		return "", false
	}
	if _, err := os.Stat(filepath.Join(dir, descriptor.Main)); err != nil {
		return "", false
	}
	return descriptor.Main, true
}
