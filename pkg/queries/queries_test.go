package queries

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samvad-hq/dataddo-puller/pkg/dataddo"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadRegistryYAML(t *testing.T) {
	path := writeFile(t, "queries.yaml", `
queries:
  - id: sales
    kind: source
    object_id: 5f1a2b3c4d5e6f7a8b9c0d1e
  - id: export
    kind: Flow
    object_id: 5F1A2B3C4D5E6F7A8B9C0D1E
    format: csv
    csv_delimiter: tab
    enabled: false
`)
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.All()) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(reg.All()))
	}
	enabled := reg.Enabled()
	if len(enabled) != 1 || enabled[0].ID != "sales" {
		t.Fatalf("enabled = %#v", enabled)
	}

	q, ok := reg.ByID("export")
	if !ok {
		t.Fatalf("export query missing")
	}
	target, err := q.Target()
	if err != nil || target.Kind() != dataddo.KindFlow {
		t.Fatalf("target = %v, %v", target, err)
	}
	ro, err := q.RequestOptions()
	if err != nil {
		t.Fatalf("RequestOptions: %v", err)
	}
	if ro.Format != dataddo.FormatCSV || ro.CSVDelimiter != dataddo.CSVDelimiterTab {
		t.Fatalf("options = %+v", ro)
	}
	if sales, _ := reg.ByID("sales"); sales.Name != "sales" {
		t.Fatalf("name should default to id, got %q", sales.Name)
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	path := writeFile(t, "queries.json", `{"queries":[{"id":"ep","kind":"endpoint","object_id":"5f1a2b3c4d5e6f7a8b9c0d1e","json_format":"object_list"}]}`)
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	q, _ := reg.ByID("ep")
	ro, err := q.RequestOptions()
	if err != nil || ro.Format != dataddo.FormatJSON || ro.JSONFormat != dataddo.JSONFormatObject {
		t.Fatalf("options = %+v, %v", ro, err)
	}
}

func TestLoadRegistryRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"bad kind": `
queries:
  - id: q
    kind: table
    object_id: 5f1a2b3c4d5e6f7a8b9c0d1e
`,
		"short id": `
queries:
  - id: q
    kind: source
    object_id: 5f1a
`,
		"bad format": `
queries:
  - id: q
    kind: source
    object_id: 5f1a2b3c4d5e6f7a8b9c0d1e
    format: xml
`,
		"duplicate": `
queries:
  - id: q
    kind: source
    object_id: 5f1a2b3c4d5e6f7a8b9c0d1e
  - id: q
    kind: flow
    object_id: 5f1a2b3c4d5e6f7a8b9c0d1e
`,
		"empty": `queries: []`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "queries.yaml", content)
			if _, err := LoadRegistry(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadRegistryUnknownExtension(t *testing.T) {
	path := writeFile(t, "queries.toml", `queries = []`)
	_, err := LoadRegistry(path)
	if err == nil || !strings.Contains(err.Error(), "not recognized") {
		t.Fatalf("expected format error, got %v", err)
	}
}
