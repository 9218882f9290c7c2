package packs

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDecode_Codecs(t *testing.T) {
	jsonDoc := `{"display": "A", "items": {"coal": {"display": "Coal", "maxStackSize": 64}}}`
	yamlDoc := "display: A\nitems:\n  coal:\n    display: Coal\n    maxStackSize: 64\n"

	var zipped bytes.Buffer
	if err := Compress(&zipped, strings.NewReader(jsonDoc)); err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	want := map[string]any{
		"display": "A",
		"items":   map[string]any{"coal": map[string]any{"display": "Coal", "maxStackSize": 64.0}},
	}
	tests := []struct {
		name string
		raw  []byte
	}{
		{"a.json", []byte(jsonDoc)},
		{"a.yaml", []byte(yamlDoc)},
		{"a.YML", []byte(yamlDoc)},
		{"a.json.zst", zipped.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.name, tt.raw)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Decode() = %v, want %v", got, want)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"a.toml", `display = "A"`},
		{"a.json", `[1, 2]`},
		{"a.json", `{"display": `},
		{"a.yaml", "- one\n- two\n"},
		{"a.json.zst", "not zstd"},
	}
	for _, tt := range tests {
		if _, err := Decode(tt.name, []byte(tt.raw)); err == nil {
			t.Errorf("Decode(%s, %q) error = nil, want error", tt.name, tt.raw)
		}
	}
}

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b.json":    `{"display": "B"}`,
		"a.yaml":    "display: A\n",
		"notes.txt": "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	packs, err := ReadDir(dir, nil)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var names []string
	for _, p := range packs {
		names = append(names, p.Name)
		if len(p.Digest) != 64 {
			t.Errorf("%s digest = %q, want 64 hex chars", p.Name, p.Digest)
		}
	}
	if !reflect.DeepEqual(names, []string{"a.yaml", "b.json"}) {
		t.Errorf("ReadDir() names = %v, want [a.yaml b.json]", names)
	}

	ordered, err := ReadDir(dir, []string{"b.json", "a.yaml"})
	if err != nil {
		t.Fatalf("ReadDir(ordered) error = %v", err)
	}
	if ordered[0].Display() != "B" || ordered[1].Display() != "A" {
		t.Errorf("ReadDir(ordered) = %s, %s, want B, A", ordered[0].Display(), ordered[1].Display())
	}
	if Digest(packs) == Digest(ordered) {
		t.Errorf("Digest() ignores pack order")
	}

	if _, err := ReadDir(dir, []string{"missing.json"}); err == nil {
		t.Errorf("ReadDir(missing) error = nil, want error")
	}
}

func TestContentPack_Display(t *testing.T) {
	if got := (ContentPack{Name: "x.json"}).Display(); got != "x.json" {
		t.Errorf("Display() = %q, want x.json", got)
	}
	p := ContentPack{Name: "x.json", Document: map[string]any{"display": "Core"}}
	if got := p.Display(); got != "Core" {
		t.Errorf("Display() = %q, want Core", got)
	}
}
