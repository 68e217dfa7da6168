package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FilePath is a validated, non-empty path guaranteed not to escape a
// configured sandbox root (§3.2).
type FilePath struct {
	abs string
}

// NewFilePath validates path against sandboxRoot: path must be non-empty
// and, once cleaned and made absolute, must lie within sandboxRoot.
func NewFilePath(path, sandboxRoot string) (FilePath, error) {
	if path == "" {
		return FilePath{}, fmt.Errorf("path must not be empty")
	}
	rootAbs, err := filepath.Abs(filepath.Clean(sandboxRoot))
	if err != nil {
		return FilePath{}, fmt.Errorf("resolving sandbox root: %w", err)
	}
	pathAbs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return FilePath{}, fmt.Errorf("resolving path: %w", err)
	}
	if pathAbs != rootAbs && !strings.HasPrefix(pathAbs, rootAbs+string(filepath.Separator)) {
		return FilePath{}, fmt.Errorf("path %q escapes sandbox root %q", path, sandboxRoot)
	}
	return FilePath{abs: pathAbs}, nil
}

func (p FilePath) String() string { return p.abs }
