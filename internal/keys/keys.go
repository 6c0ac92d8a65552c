// Package keys finds NFe access keys in saved HTML pages and moves them in
// and out of the newline-separated keys file the batch tool reads.
package keys

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"

	"frota/pkg/domain"
	pkgstrings "frota/pkg/platform/strings"
)

// DefaultOutputFile is where extracted keys are written.
const DefaultOutputFile = "chaves_de_acesso.txt"

var keyPattern = regexp.MustCompile(`\b\d{44}\b`)

// Scan returns every 44-digit run delimited by word boundaries in content,
// in document order, duplicates included.
func Scan(content []byte) []string {
	matches := keyPattern.FindAll(content, -1)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = string(m)
	}
	return out
}

// Extraction is the result of scanning one document.
type Extraction struct {
	Keys   []string
	Report pkgstrings.DedupeReport
}

// Extract scans content and keeps the first occurrence of each key.
func Extract(content []byte) Extraction {
	unique, report := pkgstrings.DedupeOrdered(Scan(content))
	return Extraction{Keys: unique, Report: report}
}

// Read parses a keys file: one key per line, surrounding whitespace and blank
// lines ignored, duplicates dropped. Lines that are not valid access keys are
// kept so the lookup reports them per key.
func Read(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read keys: %w", err)
	}
	return pkgstrings.DedupeAndTrim(lines), nil
}

// ReadFile opens path and parses it with Read.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keys file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Write emits one key per line.
func Write(w io.Writer, keys []string) error {
	bw := bufio.NewWriter(w)
	for _, k := range keys {
		if _, err := bw.WriteString(k + "\n"); err != nil {
			return fmt.Errorf("write keys: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write keys: %w", err)
	}
	return nil
}

// WriteFile creates or truncates path and writes keys to it.
func WriteFile(path string, keys []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create keys file: %w", err)
	}
	if err := Write(f, keys); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Invalid returns the entries of keys that are not well-formed access keys.
func Invalid(keys []string) []string {
	var bad []string
	for _, k := range keys {
		if _, err := domain.ParseAccessKey(k); err != nil {
			bad = append(bad, k)
		}
	}
	return bad
}
