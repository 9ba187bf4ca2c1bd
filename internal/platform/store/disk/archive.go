// Package disk implements a bounded, ordered, on disk media archive
package disk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"facewarden/internal/platform/logger"
)

// Config configures one archive directory
type Config struct {
	Dir      string
	Capacity int
	BaseURL  string
}

// Entry describes one archived file
type Entry struct {
	Name string
	Size int64
	At   time.Time
}

// Archive is a capacity bounded directory of media files
// once full, each insert evicts the oldest file before returning
type Archive struct {
	dir     string
	cap     int
	baseURL string
	log     logger.Logger

	mu      sync.Mutex
	entries []Entry // oldest first
}

// Open creates the directory if needed, indexes whatever is already
// there oldest first, and trims anything over capacity
func Open(cfg Config, log logger.Logger) (*Archive, error) {
	if cfg.Dir == "" {
		return nil, errors.New("archive dir required")
	}
	if cfg.Capacity < 1 {
		return nil, fmt.Errorf("archive capacity must be positive, got %d", cfg.Capacity)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	a := &Archive{
		dir:     cfg.Dir,
		cap:     cfg.Capacity,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		log:     log,
	}
	if err := a.scan(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	for len(a.entries) > a.cap {
		a.evictOldestLocked()
	}
	a.mu.Unlock()

	return a, nil
}

// scan rebuilds the index from the directory contents
func (a *Archive) scan() error {
	dirents, err := os.ReadDir(a.dir)
	if err != nil {
		return err
	}

	entries := make([]Entry, 0, len(dirents))
	for _, de := range dirents {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue // raced with an external delete
		}
		entries = append(entries, Entry{
			Name: de.Name(),
			Size: info.Size(),
			At:   info.ModTime().UTC(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].At.Equal(entries[j].At) {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].At.Before(entries[j].At)
	})

	a.mu.Lock()
	a.entries = entries
	a.mu.Unlock()
	return nil
}

// Put writes data under name and records it as the newest entry
// eviction of the oldest entry happens synchronously when at capacity
func (a *Archive) Put(ctx context.Context, name string, data []byte) (Entry, error) {
	if err := validName(name); err != nil {
		return Entry{}, err
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	// write first so a failed write leaves the archive exactly as it was,
	// nothing evicted, the error path only loses the new frame
	if err := os.WriteFile(filepath.Join(a.dir, name), data, 0o644); err != nil {
		return Entry{}, err
	}

	e := Entry{Name: name, Size: int64(len(data)), At: time.Now().UTC()}

	// append and evict as one critical section, the capacity bound must
	// hold with several writers inside Put at once
	a.mu.Lock()
	defer a.mu.Unlock()
	if i := a.indexLocked(name); i >= 0 {
		// same name again, replace in place instead of evicting
		a.entries = append(a.entries[:i], a.entries[i+1:]...)
	}
	a.entries = append(a.entries, e)
	for len(a.entries) > a.cap {
		a.evictOldestLocked()
	}
	return e, nil
}

// ReadFile returns the contents of one archived file
func (a *Archive) ReadFile(name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(a.dir, name))
}

// List returns a newest first snapshot of the index
func (a *Archive) List() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Entry, len(a.entries))
	for i, e := range a.entries {
		out[len(a.entries)-1-i] = e
	}
	return out
}

// Len reports how many files the archive currently holds
func (a *Archive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// URLFor builds the public URL for name, empty when no base is set
func (a *Archive) URLFor(name string) string {
	if a.baseURL == "" {
		return ""
	}
	return a.baseURL + "/" + name
}

// Remove deletes one file and drops it from the index
// removing a name that is already gone is not an error
func (a *Archive) Remove(name string) error {
	if err := validName(name); err != nil {
		return err
	}

	a.mu.Lock()
	if i := a.indexLocked(name); i >= 0 {
		a.entries = append(a.entries[:i], a.entries[i+1:]...)
	}
	a.mu.Unlock()

	if err := os.Remove(filepath.Join(a.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Probe proves the directory is still present and writable
func (a *Archive) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.CreateTemp(a.dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Remove(name)
}

// Dir returns the archive directory
func (a *Archive) Dir() string { return a.dir }

func (a *Archive) indexLocked(name string) int {
	for i := range a.entries {
		if a.entries[i].Name == name {
			return i
		}
	}
	return -1
}

func (a *Archive) evictOldestLocked() {
	if len(a.entries) == 0 {
		return
	}
	victim := a.entries[0]
	a.entries = a.entries[1:]
	if err := os.Remove(filepath.Join(a.dir, victim.Name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		a.log.Warn().Err(err).Str("file", victim.Name).Msg("evict failed, dropping from index anyway")
		return
	}
	a.log.Debug().Str("file", victim.Name).Msg("evicted oldest")
}

// validName rejects anything that is not a bare filename
func validName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid archive name %q", name)
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("invalid archive name %q", name)
	}
	return nil
}
