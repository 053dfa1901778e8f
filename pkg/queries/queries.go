// Package queries loads saved data queries (YAML/JSON) and turns them into
// validated identifiers and request options.
package queries

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samvad-hq/dataddo-puller/pkg/dataddo"
	"gopkg.in/yaml.v3"
)

// Query is one saved data call declared in the queries file.
type Query struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Kind         string `json:"kind" yaml:"kind"`
	ObjectID     string `json:"object_id" yaml:"object_id"`
	Format       string `json:"format" yaml:"format"`
	JSONFormat   string `json:"json_format" yaml:"json_format"`
	CSVDelimiter string `json:"csv_delimiter" yaml:"csv_delimiter"`
	Enabled      *bool  `json:"enabled" yaml:"enabled"`
}

type fileRegistry struct {
	Queries []Query `json:"queries" yaml:"queries"`
}

// Registry holds validated queries in file order.
type Registry struct {
	mu      sync.RWMutex
	queries []Query
	idx     map[string]Query
}

// LoadRegistry reads and validates the queries file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("queries file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open queries file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read queries file: %w", err)
	}

	reg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return NewRegistry(reg.Queries)
}

// NewRegistry validates qs and indexes them by id.
func NewRegistry(qs []Query) (*Registry, error) {
	if len(qs) == 0 {
		return nil, errors.New("queries file contains no queries entries")
	}

	r := &Registry{
		queries: make([]Query, len(qs)),
		idx:     make(map[string]Query, len(qs)),
	}
	for i := range qs {
		q := sanitizeQuery(qs[i])
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("queries[%d]: %w", i, err)
		}
		if _, exists := r.idx[q.ID]; exists {
			return nil, fmt.Errorf("duplicate query id %q", q.ID)
		}
		r.queries[i] = q
		r.idx[q.ID] = q
	}
	return r, nil
}

func parseRegistry(data []byte, ext string) (fileRegistry, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg fileRegistry
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return fileRegistry{}, errors.New("queries file format not recognized (expected YAML or JSON)")
}

func sanitizeQuery(q Query) Query {
	q.ID = strings.TrimSpace(q.ID)
	q.Name = strings.TrimSpace(q.Name)
	q.Kind = strings.ToLower(strings.TrimSpace(q.Kind))
	q.ObjectID = strings.TrimSpace(q.ObjectID)
	q.Format = strings.ToLower(strings.TrimSpace(q.Format))
	q.JSONFormat = strings.ToLower(strings.TrimSpace(q.JSONFormat))
	if q.Name == "" {
		q.Name = q.ID
	}
	if q.Enabled == nil {
		def := true
		q.Enabled = &def
	}
	return q
}

// Validate checks the query can be turned into an identifier and request options.
func (q Query) Validate() error {
	if q.ID == "" {
		return errors.New("id is required")
	}
	if _, err := q.Target(); err != nil {
		return fmt.Errorf("query %q: %w", q.ID, err)
	}
	if _, err := q.RequestOptions(); err != nil {
		return fmt.Errorf("query %q: %w", q.ID, err)
	}
	return nil
}

// Target returns the validated identifier the query points at.
func (q Query) Target() (dataddo.ObjectID, error) {
	kind, err := dataddo.ParseKind(q.Kind)
	if err != nil {
		return dataddo.ObjectID{}, err
	}
	return dataddo.NewObjectID(kind, q.ObjectID)
}

// RequestOptions maps the format fields to library options.
func (q Query) RequestOptions() (dataddo.RequestOptions, error) {
	format, err := dataddo.ParseFormat(q.Format)
	if err != nil {
		return dataddo.RequestOptions{}, err
	}
	jsonFormat, err := dataddo.ParseJSONFormat(q.JSONFormat)
	if err != nil {
		return dataddo.RequestOptions{}, err
	}
	delim, err := dataddo.ParseCSVDelimiter(q.CSVDelimiter)
	if err != nil {
		return dataddo.RequestOptions{}, err
	}
	return dataddo.RequestOptions{Format: format, JSONFormat: jsonFormat, CSVDelimiter: delim}, nil
}

// EnabledValue returns the enabled flag, defaulting to true.
func (q Query) EnabledValue() bool {
	if q.Enabled == nil {
		return true
	}
	return *q.Enabled
}

// ByID returns the query with the given id.
func (r *Registry) ByID(id string) (Query, bool) {
	if r == nil {
		return Query{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.idx[strings.TrimSpace(id)]
	return q, ok
}

// All returns a copy of every query.
func (r *Registry) All() []Query {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Query, len(r.queries))
	copy(out, r.queries)
	return out
}

// Enabled returns the queries that are switched on.
func (r *Registry) Enabled() []Query {
	all := r.All()
	out := make([]Query, 0, len(all))
	for _, q := range all {
		if q.EnabledValue() {
			out = append(out, q)
		}
	}
	return out
}
