// Package ability loads and caches ability documents (markdown files that
// get woven into agent prompts), grounded in the reference stack's
// internal/skills manager/loader/template trio, generalized from "skill" to
// "ability" vocabulary.
package ability

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"

	"automatosx/internal/apperr"
	"automatosx/internal/cache"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// MaxSizeBytes is the ceiling on a single ability document.
const MaxSizeBytes = 500 * 1024

// DefaultTTL is how long a loaded ability stays cached before a disk re-read.
const DefaultTTL = 5 * time.Minute

// Document is a single loaded ability.
type Document struct {
	Name    string
	Content string
}

// Manager loads ability markdown files by name from a directory, caching
// them with a TTL.
type Manager struct {
	dir   string
	cache *cache.TTL[string, Document]
}

// NewManager creates a Manager rooted at dir (typically Layout.AbilitiesDir()).
func NewManager(dir string) *Manager {
	return &Manager{
		dir:   dir,
		cache: cache.New[string, Document](DefaultTTL),
	}
}

// Get returns the named ability, reading through the TTL cache to disk on a
// miss. A cache miss always falls through to a fresh disk read regardless of
// watcher state, so a missed filesystem event degrades to ordinary TTL
// behavior rather than serving stale data indefinitely.
func (m *Manager) Get(name string) (Document, error) {
	if !nameRe.MatchString(name) {
		return Document{}, apperr.New(apperr.CodeInvalidAbilityName, fmt.Sprintf("ability name %q must match ^[A-Za-z0-9_-]+$", name))
	}
	if doc, ok := m.cache.Get(name); ok {
		return doc, nil
	}
	return m.load(name)
}

func (m *Manager) load(name string) (Document, error) {
	path := filepath.Join(m.dir, name+".md")
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, apperr.New(apperr.CodeNotFound, fmt.Sprintf("ability %q not found", name))
		}
		return Document{}, apperr.Wrap(apperr.CodeConfigError, "stat ability", err)
	}
	if info.Size() > MaxSizeBytes {
		return Document{}, apperr.New(apperr.CodeInvalidFormat, fmt.Sprintf("ability %q exceeds %d byte ceiling", name, MaxSizeBytes))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, apperr.Wrap(apperr.CodeConfigError, "read ability", err)
	}

	doc := Document{Name: name, Content: string(data)}
	m.cache.Set(name, doc)
	return doc, nil
}

// Invalidate drops a single ability's cache entry, called by the fsnotify
// watcher on external edits.
func (m *Manager) Invalidate(name string) {
	m.cache.Invalidate(name)
}

// RenderVars resolves "{{VAR | default: fallback}}" placeholders in an
// ability document against vars, matching the reference stack's skill
// template engine generalized to abilities.
func RenderVars(content string, vars map[string]string) (string, error) {
	tmpl := template.New("ability").Funcs(template.FuncMap{
		"default": func(fallback, value string) string {
			if value == "" {
				return fallback
			}
			return value
		},
	})

	rewritten := rewritePipeDefaults(content)
	parsed, err := tmpl.Parse(rewritten)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInvalidFormat, "parse ability template", err)
	}

	var buf bytes.Buffer
	if err := parsed.Execute(&buf, vars); err != nil {
		return "", apperr.Wrap(apperr.CodeInvalidFormat, "render ability template", err)
	}
	return buf.String(), nil
}

// rewritePipeDefaults turns "{{VAR | default: fallback}}" into the
// text/template-native "{{default "fallback" .VAR}}" pipeline form the
// FuncMap above expects.
var pipeDefaultRe = regexp.MustCompile(`\{\{\s*(\w+)\s*\|\s*default:\s*([^}]+?)\s*\}\}`)

func rewritePipeDefaults(content string) string {
	return pipeDefaultRe.ReplaceAllStringFunc(content, func(match string) string {
		groups := pipeDefaultRe.FindStringSubmatch(match)
		varName, fallback := groups[1], strings.TrimSpace(groups[2])
		if !strings.HasPrefix(fallback, `"`) {
			fallback = fmt.Sprintf("%q", fallback)
		}
		return fmt.Sprintf("{{default %s .%s}}", fallback, varName)
	})
}
