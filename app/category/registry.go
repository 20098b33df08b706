package category

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// CanonicalName normalizes a category label so that inconsistent casing from
// upstream or from URL routing resolves to the same partition
// ("electronics" and "Electronics" are the same category).
func CanonicalName(name string) string {
	return titleCaser.String(strings.ToLower(strings.TrimSpace(name)))
}

// Slugify derives a URL-safe identifier from a category name: lowercase,
// with runs of non-alphanumeric characters collapsed to a single dash.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Registry tracks every category observed in-process and the bidirectional
// mapping between display names and slugs. Slugs are assigned once and stay
// stable for the lifetime of the process.
type Registry struct {
	mu    sync.RWMutex
	slugs map[string]string // canonical name -> slug
	names map[string]string // slug -> canonical name
}

func NewRegistry() *Registry {
	return &Registry{
		slugs: make(map[string]string),
		names: make(map[string]string),
	}
}

// Ensure registers a category if unseen and reports whether it was newly
// created. Idempotent: re-ensuring a known name (in any casing) is a no-op.
func (r *Registry) Ensure(name string) bool {
	canonical := CanonicalName(name)
	if canonical == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slugs[canonical]; ok {
		return false
	}

	slug := Slugify(canonical)
	if slug == "" {
		slug = "category"
	}
	// Slug collisions resolve first-registered-wins with a numeric suffix
	if _, taken := r.names[slug]; taken {
		for i := 2; ; i++ {
			candidate := fmt.Sprintf("%s-%d", slug, i)
			if _, taken := r.names[candidate]; !taken {
				slug = candidate
				break
			}
		}
	}

	r.slugs[canonical] = slug
	r.names[slug] = canonical
	return true
}

// Restore registers a category with a previously persisted slug, so that
// partitions created in earlier runs keep their identifiers across restarts.
func (r *Registry) Restore(name, slug string) {
	canonical := CanonicalName(name)
	if canonical == "" || slug == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slugs[canonical]; ok {
		return
	}
	r.slugs[canonical] = slug
	r.names[slug] = canonical
}

// Canonicalize matches a caller-supplied name against the known categories.
func (r *Registry) Canonicalize(name string) (string, bool) {
	canonical := CanonicalName(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.slugs[canonical]
	return canonical, ok
}

func (r *Registry) SlugOf(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slugs[CanonicalName(name)]
}

// Resolve maps a slug back to the category display name.
func (r *Registry) Resolve(slug string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[slug]
	return name, ok
}

// List returns every known category name, sorted for stable iteration.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.slugs))
	for name := range r.slugs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slugs)
}
