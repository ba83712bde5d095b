package writer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"mspro-labs/refscrape/internal/models"
)

// Format controls how a mapping is rendered.
type Format struct {
	Indent    int  // spaces per level, 0 writes compact JSON
	ASCIIOnly bool // escape every non-ASCII character as \uXXXX
}

// Encode renders the mapping as a JSON object.
func Encode(m *models.Mapping, f Format) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if f.Indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", f.Indent))
	}
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	if f.ASCIIOnly {
		data = escapeNonASCII(data)
	}
	return data, nil
}

// escapeNonASCII rewrites runes above 0x7F as lowercase \uXXXX escapes, using a surrogate
// pair outside the Basic Multilingual Plane. The encoder only emits such runes inside
// string literals, so the result is still valid JSON.
func escapeNonASCII(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		if r > 0xFFFF {
			hi, lo := utf16.EncodeRune(r)
			out = fmt.Appendf(out, `\u%04x\u%04x`, hi, lo)
			continue
		}
		out = fmt.Appendf(out, `\u%04x`, r)
	}
	return out
}

// WriteJSON replaces the file at path with the encoded mapping.
// The content goes to a temporary file first, so readers never see a partial write.
func WriteJSON(path string, m *models.Mapping, f Format) error {
	data, err := Encode(m, f)
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
