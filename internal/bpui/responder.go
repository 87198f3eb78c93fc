package bpui

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// Resolution is the outcome of resolving a logical bundle path. Exactly one
// of the three shapes applies: a 200 carrying the physical file, its content
// type and content hash; a 302 carrying a corrected Location; or a 404
// carrying a diagnostic code.
type Resolution struct {
	Status      int
	Location    string
	FilePath    string
	ContentType string
	Hash        string
	Diagnostic  string
}

// Responder resolves logical paths against a bundle directory. Content hashes
// are computed once at startup for every discovered file and shared by all
// requests; files that appear later fall back to a lazy, cached hash.
type Responder struct {
	subtrees map[string]Subtree
	logger   *slog.Logger

	mu     sync.RWMutex
	hashes map[string]string
}

// NewResponder walks the subtrees under bpuiDir and precomputes the content
// hash of every file found. Missing subtree directories are skipped.
func NewResponder(bpuiDir string, logger *slog.Logger) (*Responder, error) {
	r := &Responder{
		subtrees: make(map[string]Subtree),
		logger:   logger,
		hashes:   make(map[string]string),
	}
	for _, subtree := range Subtrees(bpuiDir) {
		r.subtrees[subtree.Name] = subtree
		if err := r.hashSubtree(subtree); err != nil {
			return nil, fmt.Errorf("hashing %s subtree: %w", subtree.Name, err)
		}
	}
	return r, nil
}

func (r *Responder) hashSubtree(subtree Subtree) error {
	if _, err := os.Stat(subtree.Dir); err != nil {
		return nil
	}
	return filepath.WalkDir(subtree.Dir, func(filePath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		hash, err := fileMD5(filePath)
		if err != nil {
			return err
		}
		r.hashes[filePath] = hash
		return nil
	})
}

// Resolve maps a logical path "<subtreeName>/<rest>" onto a physical file,
// a redirect to the corrected logical path, or a not-found diagnostic. A
// redirect is never combined with resolution: the redirected request resolves
// on its own follow-up pass.
func (r *Responder) Resolve(subtreeName, rest string) Resolution {
	subtree, ok := r.subtrees[subtreeName]
	if !ok {
		return notFound("XE00001")
	}

	trimmed := strings.Trim(rest, "/")
	if trimmed == "" {
		return notFound("XE00002")
	}

	segments := strings.Split(trimmed, "/")
	leaf := segments[len(segments)-1]
	intermediates := segments[:len(segments)-1]
	for i, segment := range intermediates {
		intermediates[i] = sanitizeSegment(segment)
	}
	if leaf == "" {
		return notFound("XE00003")
	}

	baseDir := filepath.Join(append([]string{subtree.Dir}, intermediates...)...)
	requestedLeaf := leaf
	redirect := ""

	if !subtree.Allowed.MatchString(leaf) {
		suffixed := leaf + "." + subtree.DefaultExtension
		switch {
		case subtree.DefaultExtension != "" && fileExists(filepath.Join(subtree.Dir, suffixed)):
			leaf = suffixed
			redirect = suffixed
		case subtree.DefaultExtension != "" && fileExists(filepath.Join(baseDir, suffixed)):
			leaf = suffixed
			redirect = path.Join(append(append([]string{}, intermediates...), suffixed)...)
		case subtree.DefaultFile == "":
			return notFound(fmt.Sprintf("XE00004 (%s:%s)", subtree.Name, leaf))
		default:
			leaf = subtree.DefaultFile
			redirect = subtree.DefaultFile
		}
	}

	filePath := filepath.Join(baseDir, leaf)
	r.logger.Debug("bundle file requested",
		slog.String("subtree", subtree.Name),
		slog.String("file", filePath),
		slog.String("redirect", redirect),
	)

	if !fileExists(filePath) {
		if subtree.NotFoundSearch == nil {
			return notFound("XE00005")
		}
		found, ok := subtree.NotFoundSearch(baseDir)
		if ok {
			redirect = path.Join(append(append([]string{}, intermediates...), found)...)
		} else {
			// The leaf may name a package directory whose descriptor
			// points at the real entry file.
			packageDir := requestedLeaf
			if subtree.DefaultExtension != "" {
				packageDir = strings.TrimSuffix(packageDir, "."+subtree.DefaultExtension)
			}
			found, ok = subtree.NotFoundSearch(filepath.Join(baseDir, packageDir))
			if !ok {
				return notFound(fmt.Sprintf("XE00006 (%s:%s)", subtree.Name, leaf))
			}
			redirect = path.Join(append(append([]string{}, intermediates...), packageDir, found)...)
		}
		filePath = filepath.Join(subtree.Dir, filepath.FromSlash(redirect))
	}

	if redirect != "" {
		return Resolution{
			Status:   302,
			Location: "/bpui/" + subtreeName + "/" + redirect,
		}
	}

	hash, err := r.hashFor(filePath)
	if err != nil {
		r.logger.Error("bundle file hash failed",
			slog.String("file", filePath),
			slog.String("error", err.Error()),
		)
		return notFound("XE00005")
	}

	return Resolution{
		Status:      200,
		FilePath:    filePath,
		ContentType: contentTypeFor(leaf),
		Hash:        hash,
	}
}

// hashFor returns the precomputed content hash, hashing lazily for files that
// were not present at startup.
func (r *Responder) hashFor(filePath string) (string, error) {
	r.mu.RLock()
	hash, ok := r.hashes[filePath]
	r.mu.RUnlock()
	if ok {
		return hash, nil
	}

	hash, err := fileMD5(filePath)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.hashes[filePath] = hash
	r.mu.Unlock()
	return hash, nil
}

func notFound(diagnostic string) Resolution {
	return Resolution{Status: 404, Diagnostic: diagnostic}
}

func fileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	return err == nil && !info.IsDir()
}

func fileMD5(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// sanitizeSegment strips path-unsafe characters from an intermediate segment
// and caps its length at 255.
func sanitizeSegment(segment string) string {
	var b strings.Builder
	for _, r := range segment {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_', r == '.', r == '@':
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "." || clean == ".." {
		return ""
	}
	if len(clean) > 255 {
		clean = clean[:255]
	}
	return clean
}

// contentTypeFor picks the response content type by file extension. Vue
// single-file components are served as javascript for the in-browser loader.
func contentTypeFor(name string) string {
	switch {
	case strings.HasSuffix(name, ".js"), strings.HasSuffix(name, ".vue"):
		return "application/javascript"
	case strings.HasSuffix(name, ".css"):
		return "text/css"
	}
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
