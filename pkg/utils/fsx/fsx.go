// Package fsx holds the small filesystem and JSON helpers shared by the
// pipeline: durable JSON documents, content hashing, and workdir-relative
// path bookkeeping.
package fsx

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// NowUTC returns the current time as a second-precision RFC 3339 UTC
// timestamp, the format used everywhere in persisted documents.
func NowUTC() string {
	return time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)
}

// SHA256Bytes returns the hex sha256 digest of data.
func SHA256Bytes(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// SHA256File returns the hex sha256 digest of a file's content.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open file for hashing", goerr.V("path", path))
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", goerr.Wrap(err, "failed to hash file", goerr.V("path", path))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// EncodeJSON renders v as human-readable JSON: two-space indentation, no
// HTML escaping, trailing newline. Object keys come out sorted at every
// nesting level, which keeps persisted documents diffable. Struct fields
// would otherwise emit in declaration order, so the value is round-tripped
// through an untyped form first; UseNumber preserves integers exactly.
func EncodeJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode JSON document")
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to normalize JSON document")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, goerr.Wrap(err, "failed to encode JSON document")
	}
	return buf.Bytes(), nil
}

// SaveJSON writes v to path via EncodeJSON, creating parent directories.
func SaveJSON(path string, v any) error {
	payload, err := EncodeJSON(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create directory", goerr.V("path", path))
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return goerr.Wrap(err, "failed to write JSON document", goerr.V("path", path))
	}
	return nil
}

// LoadJSON decodes the JSON document at path into v. A missing file
// leaves v untouched and returns ok=false.
func LoadJSON(path string, v any) (bool, error) {
	payload, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, goerr.Wrap(err, "failed to read JSON document", goerr.V("path", path))
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return false, goerr.Wrap(err, "malformed JSON document",
			goerr.T(types.TagIntegrity), goerr.V("path", path))
	}
	return true, nil
}

// ToWorkdirRelative records path relative to workdir when possible so the
// state document stays valid if the working tree moves.
func ToWorkdirRelative(path, workdir string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	absWorkdir, err := filepath.Abs(workdir)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(absWorkdir, abs)
	if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return abs
	}
	return rel
}

// FromWorkdirRelative resolves a recorded path against workdir.
func FromWorkdirRelative(value, workdir string) string {
	if filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(workdir, value)
}

// ResolveWorkdir returns (and optionally creates) the per-edition working
// directory.
func ResolveWorkdir(base, edition string, create bool) (string, error) {
	target, err := filepath.Abs(filepath.Join(base, edition))
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve working directory", goerr.V("base", base))
	}
	if create {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return "", goerr.Wrap(err, "failed to create working directory", goerr.V("path", target))
		}
	}
	return target, nil
}
