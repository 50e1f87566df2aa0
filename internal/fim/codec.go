package fim

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// wireMetadata and wireBaseline mirror the persisted JSON layout.
// Field names are part of the on-disk contract.
type wireMetadata struct {
	HashAlgorithm string `json:"hash_algorithm,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	Version       string `json:"version,omitempty"`
	Root          string `json:"root,omitempty"`
}

type wireBaseline struct {
	Metadata wireMetadata           `json:"metadata"`
	Files    map[string]*FileRecord `json:"files"`
}

// EncodeBaseline writes b in the current schema. Map keys are emitted in
// sorted order, so equal baselines encode to identical bytes.
func EncodeBaseline(w io.Writer, b *Baseline) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("invalid baseline: %w", err)
	}

	files := b.Files
	if files == nil {
		files = map[string]*FileRecord{}
	}
	wb := wireBaseline{
		Metadata: wireMetadata{
			HashAlgorithm: string(b.Algorithm),
			CreatedAt:     b.CreatedAt,
			Version:       b.Version,
			Root:          b.Root,
		},
		Files: files,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&wb); err != nil {
		return fmt.Errorf("encoding baseline: %w", err)
	}
	return nil
}

// DecodeBaseline reads either the current schema or the legacy flat
// path -> record map. Legacy input, and current input without a
// hash_algorithm, is treated as sha1 and flagged Legacy.
func DecodeBaseline(r io.Reader) (*Baseline, error) {
	var top map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&top); err != nil {
		return nil, fmt.Errorf("decoding baseline: %w", err)
	}

	rawMeta, hasMeta := top["metadata"]
	if !hasMeta {
		files := make(map[string]*FileRecord, len(top))
		for path, raw := range top {
			var rec FileRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return nil, fmt.Errorf("decoding legacy record %s: %w", path, err)
			}
			files[path] = &rec
		}
		return newLegacyBaseline(files), nil
	}

	var meta wireMetadata
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		return nil, fmt.Errorf("decoding baseline metadata: %w", err)
	}
	files := map[string]*FileRecord{}
	if rawFiles, ok := top["files"]; ok {
		if err := json.Unmarshal(rawFiles, &files); err != nil {
			return nil, fmt.Errorf("decoding baseline files: %w", err)
		}
	}
	for path, rec := range files {
		if rec == nil {
			return nil, fmt.Errorf("decoding baseline files: record %s is null", path)
		}
	}

	if meta.HashAlgorithm == "" {
		b := newLegacyBaseline(files)
		b.CreatedAt = meta.CreatedAt
		b.Version = meta.Version
		b.Root = meta.Root
		return b, nil
	}

	algo, err := ParseAlgorithm(meta.HashAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("decoding baseline metadata: %w", err)
	}

	b := &Baseline{
		Algorithm: algo,
		CreatedAt: meta.CreatedAt,
		Version:   meta.Version,
		Root:      meta.Root,
		Files:     files,
	}
	setRecordPaths(b.Files)
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("corrupt baseline: %w", err)
	}
	return b, nil
}

func newLegacyBaseline(files map[string]*FileRecord) *Baseline {
	setRecordPaths(files)
	return &Baseline{
		Algorithm: AlgorithmSHA1,
		Files:     files,
		Legacy:    true,
	}
}

func setRecordPaths(files map[string]*FileRecord) {
	for path, rec := range files {
		rec.Path = path
	}
}

// RelativeTo returns a copy of b whose keys are rewritten relative to root.
// Baselines written without a root key their records by the scanned path
// joined with the file path, either absolute or relative to the working
// directory. Keys outside root are kept as they are. When two keys map to
// the same relative path the first in sorted order wins.
// The second result is the number of keys rewritten.
func (b *Baseline) RelativeTo(root string) (*Baseline, int) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return b, 0
	}

	out := *b
	out.Files = make(map[string]*FileRecord, len(b.Files))
	moved := 0
	for _, key := range b.Paths() {
		newKey := key
		if rel, ok := relativeKey(absRoot, key); ok {
			newKey = rel
		}
		if _, dup := out.Files[newKey]; dup {
			continue
		}
		rec := *b.Files[key]
		rec.Path = newKey
		out.Files[newKey] = &rec
		if newKey != key {
			moved++
		}
	}
	return &out, moved
}

func relativeKey(absRoot, key string) (string, bool) {
	p := filepath.FromSlash(key)
	if !filepath.IsAbs(p) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", false
		}
		p = abs
	}
	rel, err := filepath.Rel(absRoot, filepath.Clean(p))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return norm.NFC.String(filepath.ToSlash(rel)), true
}
