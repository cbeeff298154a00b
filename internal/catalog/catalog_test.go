package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	e, ok := c.Lookup("spotify")
	if !ok {
		t.Fatalf("spotify missing from default catalog")
	}
	if e.Category != "music" {
		t.Fatalf("unexpected category %q", e.Category)
	}
	p, ok := e.Plan("individual")
	if !ok || p.Price.IntPart() != 980 {
		t.Fatalf("unexpected plan %+v", p)
	}
	if c.Label("video") != "Video" {
		t.Fatalf("label: %q", c.Label("video"))
	}
	if c.Label("unknown") != "unknown" {
		t.Fatalf("unknown label should fall back to key")
	}
	if len(c.Entries()) == 0 || c.Entries()[0].ID != "netflix" {
		t.Fatalf("entries should keep file order")
	}
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	bads := []string{
		`not json`,
		`{"services":[{"name":"x"}]}`,
		`{"services":[{"id":"a"},{"id":"a"}]}`,
		`{"services":[{"id":"a","plans":[{"id":"p","price":"1","cycle":"weekly"}]}]}`,
	}
	for i, b := range bads {
		if _, err := Parse([]byte(b)); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	content := `{"categories":{"video":"Video"},"services":[{"id":"x","name":"X","category":"video","plans":[]}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Lookup("x"); !ok {
		t.Fatalf("x missing")
	}
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if c, err := Load(""); err != nil || c == nil {
		t.Fatalf("empty path should give default catalog")
	}
}

func TestCategoryLabelsIsCopy(t *testing.T) {
	c := New(nil, map[string]string{"a": "A"})
	m := c.CategoryLabels()
	m["a"] = "changed"
	if c.Label("a") != "A" {
		t.Fatalf("CategoryLabels leaked internal map")
	}
}
