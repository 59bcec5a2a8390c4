package builder

import (
	"os"
	"path/filepath"
	"strings"
)

// Get all markdown files directly inside the posts directory, sorted by name.
func (b *Builder) getPostFiles() ([]string, error) {
	entries, err := os.ReadDir(b.cfg.PostsDir)
	if err != nil {
		return nil, err
	}

	paths := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue // not a post. ignore.
		}
		path := filepath.Join(b.cfg.PostsDir, entry.Name())
		paths = append(paths, path)
		b.log.Debug().Str("path", path).Msg("Found file")
	}
	return paths, nil
}

// Writes data next to path and renames it into place, so readers never
// observe a partially written page.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
