// Package horosafe holds the input guards shared by the engine, the entity
// model and the configuration loader: identifier validation for type tags
// and attribute names, path confinement for configured files, and bounded
// reads for snapshot documents.
package horosafe

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// MaxIdentLen bounds type tags and attribute names.
const MaxIdentLen = 256

// ErrPathTraversal is returned when a configured path escapes its base.
var ErrPathTraversal = errors.New("horosafe: path traversal detected")

// ErrTooLarge is returned by ReadLimited when the input exceeds the limit.
var ErrTooLarge = errors.New("horosafe: input exceeds size limit")

// ValidateIdentifier rejects identifiers that could not round-trip as a
// snapshot key segment or record field name. Allows ASCII letters, digits,
// underscore and hyphen. Dots are refused: they separate the type tag from
// the id in snapshot keys.
func ValidateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("horosafe: identifier must not be empty")
	}
	if len(s) > MaxIdentLen {
		return fmt.Errorf("horosafe: identifier too long (max %d)", MaxIdentLen)
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("horosafe: invalid character %q in identifier %q", r, s)
		}
	}
	return nil
}

// SafePath joins base and rel and verifies the result stays under base.
// Absolute rel values are rejected too.
func SafePath(base, rel string) (string, error) {
	if filepath.IsAbs(rel) || strings.Contains(rel, "..") {
		return "", ErrPathTraversal
	}
	root := filepath.Clean(base)
	joined := filepath.Join(root, filepath.Clean("/"+rel))
	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return joined, nil
}

// ReadLimited reads all of r, failing with ErrTooLarge once more than
// maxBytes are available. maxBytes <= 0 disables the limit.
func ReadLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, maxBytes)
	}
	return data, nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-'
}
