// Package packs loads content packs: it decodes pack documents, checks their
// envelope, merges the entity categories across packs and collapses every
// block tree into a Registry the engine can resolve against.
package packs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

// ContentPack is one decoded pack document.
type ContentPack struct {
	// Name is the pack's file or store name; it orders packs.
	Name string
	// Digest is the hex sha256 of the encoded document.
	Digest string
	// Document is the decoded top-level mapping.
	Document map[string]any
}

// Display returns the pack's display name, falling back to Name.
func (p ContentPack) Display() string {
	if s, ok := p.Document["display"].(string); ok && s != "" {
		return s
	}
	return p.Name
}

const zstdExt = ".zst"

// IsPackFile reports whether name has an extension Decode understands.
func IsPackFile(name string) bool {
	switch codecExt(name) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// codecExt returns the document extension with any compression suffix removed.
func codecExt(name string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSuffix(name, zstdExt)))
}

// Decode decodes raw by the codec named in name's extension into a pack
// document. Integers are normalised to float64 so decoded YAML and JSON
// produce identical trees.
func Decode(name string, raw []byte) (map[string]any, error) {
	if strings.HasSuffix(name, zstdExt) {
		dec, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		if raw, err = io.ReadAll(dec); err != nil {
			return nil, fmt.Errorf("zstd decode %s: %w", name, err)
		}
	}

	var doc any
	switch ext := codecExt(name); ext {
	case ".json":
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("decode %s: unsupported extension %q", name, ext)
	}

	m, ok := normalize(doc).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode %s: document is not a mapping", name)
	}
	return m, nil
}

// normalize converts decoder output to the block value set: float64 numbers
// and string-keyed maps.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, el := range t {
			t[k] = normalize(el)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[fmt.Sprint(k)] = normalize(el)
		}
		return out
	case []any:
		for i, el := range t {
			t[i] = normalize(el)
		}
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}

// Load decodes raw into a ContentPack named name.
func Load(name string, raw []byte) (ContentPack, error) {
	doc, err := Decode(name, raw)
	if err != nil {
		return ContentPack{}, err
	}
	sum := sha256.Sum256(raw)
	return ContentPack{Name: name, Digest: hex.EncodeToString(sum[:]), Document: doc}, nil
}

// ReadDir reads packs from dir. With names given, exactly those files are
// read in that order; otherwise every pack file in dir is read in filename
// order.
func ReadDir(dir string, names []string) ([]ContentPack, error) {
	if len(names) == 0 {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read content dir: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && IsPackFile(e.Name()) {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
	}

	packs := make([]ContentPack, 0, len(names))
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read pack: %w", err)
		}
		p, err := Load(name, raw)
		if err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	return packs, nil
}

// Digest combines the pack names and digests into one hex digest identifying
// the pack set.
func Digest(packs []ContentPack) string {
	h := sha256.New()
	for _, p := range packs {
		io.WriteString(h, p.Name)
		h.Write([]byte{0})
		io.WriteString(h, p.Digest)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Compress writes a zstd-compressed copy of r to w.
func Compress(w io.Writer, r io.Reader) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, r); err != nil {
		enc.Close()
		return fmt.Errorf("zstd encode: %w", err)
	}
	return enc.Close()
}
