// Package artifact stores evidence screenshots on disk as {dir}/{name}.png.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

const ContentType = "image/png"

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ErrNotFound is returned when no artifact has the requested name.
var ErrNotFound = errors.New("artifact not found")

// ErrInvalidName is returned for names that are not safe file names.
var ErrInvalidName = errors.New("invalid artifact name")

// Artifact describes one stored evidence file.
type Artifact struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Store manages evidence files on disk.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact store: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the evidence directory.
func (s *Store) Dir() string { return s.dir }

// ValidateName rejects names that are not safe single path components.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Path returns where the artifact named name lives, whether or not it exists.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".png")
}

// Save writes png as {dir}/{name}.png, replacing any earlier artifact of the same name.
func (s *Store) Save(name string, png []byte) (Artifact, error) {
	if err := ValidateName(name); err != nil {
		return Artifact{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+name+"-*.tmp")
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact store: create temp: %w", err)
	}
	if _, err := tmp.Write(png); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return Artifact{}, fmt.Errorf("artifact store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return Artifact{}, fmt.Errorf("artifact store: close: %w", err)
	}

	path := s.Path(name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return Artifact{}, fmt.Errorf("artifact store: rename: %w", err)
	}
	return Artifact{
		Name:      name,
		Path:      path,
		SizeBytes: int64(len(png)),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Get returns metadata for the artifact named name.
func (s *Store) Get(name string) (Artifact, error) {
	if err := ValidateName(name); err != nil {
		return Artifact{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.Path(name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Artifact{}, fmt.Errorf("artifact store: stat: %w", err)
	}
	return Artifact{Name: name, Path: path, SizeBytes: info.Size(), CreatedAt: info.ModTime().UTC()}, nil
}

// List returns all artifacts sorted by modification time (newest first).
func (s *Store) List() ([]Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.png"))
	if err != nil {
		return nil, fmt.Errorf("artifact store: glob: %w", err)
	}

	out := make([]Artifact, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		out = append(out, Artifact{
			Name:      strings.TrimSuffix(filepath.Base(path), ".png"),
			Path:      path,
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Read returns the raw PNG bytes of the artifact named name.
func (s *Store) Read(name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("artifact store: read: %w", err)
	}
	return data, nil
}

// Delete removes the artifact named name.
func (s *Store) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("artifact store: remove: %w", err)
	}
	return nil
}
