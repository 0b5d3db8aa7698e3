// Package biblio provides the pluggable bibliographic lookup used to resolve
// citation references. The compiler core never fetches anything over the
// network itself; it queries a Resolver by key and degrades a miss or a
// failure to a diagnostic.
package biblio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by a Resolver when it has no record for the key.
var ErrNotFound = errors.New("biblio: entry not found")

// A CitationRecord is the resolved data for one bibliographic entry.
type CitationRecord struct {
	Key   string `yaml:"-"`
	Title string `yaml:"title"`
	Href  string `yaml:"href"`
	Date  string `yaml:"date"`
}

// A Resolver looks up a citation by key. Keys are matched case-insensitively.
// Implementations may block (e.g. read a file); the caller bounds each lookup
// with the context.
type Resolver interface {
	Lookup(ctx context.Context, key string) (*CitationRecord, error)
}

// A Map is an in-memory Resolver. Keys are stored lowercased.
type Map map[string]CitationRecord

// Lookup implements Resolver.
func (m Map) Lookup(ctx context.Context, key string) (*CitationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := m[strings.ToLower(key)]
	if !ok {
		return nil, ErrNotFound
	}
	rec.Key = key
	return &rec, nil
}

// Add inserts a record under its lowercased key.
func (m Map) Add(key string, rec CitationRecord) {
	rec.Key = key
	m[strings.ToLower(key)] = rec
}

// LoadFile reads a bibliography database file in YAML format: a mapping of
// citation key to {title, href, date}.
func LoadFile(fileName string) (Map, error) {
	src, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	m, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing biblio file %s: %w", fileName, err)
	}
	return m, nil
}

// Parse builds a Map from YAML bibliography data.
func Parse(src []byte) (Map, error) {
	raw := map[string]CitationRecord{}
	if err := yaml.Unmarshal(src, &raw); err != nil {
		return nil, err
	}

	m := Map{}
	for key, rec := range raw {
		m.Add(key, rec)
	}
	return m, nil
}

// Merge overlays other on top of m; entries in other win.
func (m Map) Merge(other Map) {
	for k, rec := range other {
		m[k] = rec
	}
}

// FrontMatter extracts the inline bibliography from a document metadata
// block: the 'localBiblio' mapping of citation key to record. Documents
// without one yield an empty Map.
func FrontMatter(meta []byte) (Map, error) {
	var header struct {
		LocalBiblio map[string]CitationRecord `yaml:"localBiblio"`
	}
	if err := yaml.Unmarshal(meta, &header); err != nil {
		return nil, err
	}

	m := Map{}
	for key, rec := range header.LocalBiblio {
		m.Add(key, rec)
	}
	return m, nil
}

// A Chain queries several resolvers in order and returns the first hit.
// Earlier resolvers shadow later ones, so a document-local bibliography
// placed first takes precedence over a shared database.
type Chain []Resolver

// Lookup implements Resolver. A transport failure in any resolver stops
// the chain; only ErrNotFound falls through to the next one.
func (c Chain) Lookup(ctx context.Context, key string) (*CitationRecord, error) {
	for _, r := range c {
		rec, err := r.Lookup(ctx, key)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}
