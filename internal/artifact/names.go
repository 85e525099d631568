package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxNameLen bounds names produced by SafeName.
const maxNameLen = 128

// SafeName turns an arbitrary label, such as an array name, into a file name
// component. Runs of characters other than ASCII letters, digits, '.', '_'
// and '-' become a single underscore.
func SafeName(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxNameLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unnamed"
	}
	return out
}

// withinRoot reports an error if p, after resolving symlinks on its longest
// existing prefix, lies outside root.
func withinRoot(p, root string) error {
	absPath, err := filepath.Abs(p)
	if err != nil {
		return err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	canonRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return fmt.Errorf("resolve output directory: %w", err)
	}

	canon := absPath
	for dir := absPath; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, absPath)
			canon = filepath.Join(resolved, rest)
			break
		}
		if filepath.Dir(dir) == dir {
			break
		}
	}

	rel, err := filepath.Rel(canonRoot, canon)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s resolves outside %s", p, root)
	}
	return nil
}
