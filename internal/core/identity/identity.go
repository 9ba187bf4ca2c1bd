// Package identity loads and matches enrolled face embeddings.
// The database is a JSON object of name -> list of embedding vectors as
// produced by the enrollment tooling. Any consistent vector dimension is
// accepted, 128 by convention
package identity

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync/atomic"
)

// Store holds the enrolled identities and answers nearest match queries.
// Reads are lock free, Reload swaps the whole snapshot atomically so a
// detection cycle always sees one consistent database
type Store struct {
	path string
	snap atomic.Pointer[snapshot]
}

// snapshot is one immutable validated view of the database
type snapshot struct {
	names   []string // sorted, fixes tie-break order
	vectors map[string][][]float64
	dim     int
	total   int
}

// Match is the outcome of a nearest neighbor query
type Match struct {
	// Name is the matched identity, empty when nothing is within tolerance
	Name string

	// Distance is the smallest euclidean distance found, +Inf on an empty store
	Distance float64
}

// Known reports whether the query resolved to an enrolled identity
func (m Match) Known() bool { return m.Name != "" }

// Confidence derives a 0..1 score from the distance, 1 - distance clamped
func (m Match) Confidence() float64 {
	c := 1 - m.Distance
	if c < 0 || math.IsNaN(c) {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Open loads the database at path and remembers it for later reloads
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	snap, err := load(path)
	if err != nil {
		return nil, err
	}
	s.snap.Store(snap)
	return s, nil
}

// Reload re-reads the database from disk and swaps it in atomically
// on error the previous snapshot keeps serving
func (s *Store) Reload() error {
	snap, err := load(s.path)
	if err != nil {
		return err
	}
	s.snap.Store(snap)
	return nil
}

// Path returns the database file location
func (s *Store) Path() string { return s.path }

// load parses and validates one database file
func load(path string) (*snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read %s: %w", path, err)
	}

	var raw map[string][][]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("identity: parse %s: %w", path, err)
	}

	snap := &snapshot{vectors: make(map[string][][]float64, len(raw))}
	for name, vecs := range raw {
		if name == "" {
			return nil, fmt.Errorf("identity: empty name in %s", path)
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("identity: %q has no embeddings", name)
		}
		for i, v := range vecs {
			if len(v) == 0 {
				return nil, fmt.Errorf("identity: %q embedding %d is empty", name, i)
			}
			if snap.dim == 0 {
				snap.dim = len(v)
			}
			if len(v) != snap.dim {
				return nil, fmt.Errorf("identity: %q embedding %d has dimension %d, want %d",
					name, i, len(v), snap.dim)
			}
		}
		snap.vectors[name] = vecs
		snap.names = append(snap.names, name)
		snap.total += len(vecs)
	}

	sort.Strings(snap.names)
	return snap, nil
}

// Match returns the nearest enrolled identity within tolerance.
// Ties on distance resolve to the lexicographically smallest name. A query
// whose dimension does not match the database resolves to unknown
func (s *Store) Match(embedding []float64, tolerance float64) Match {
	best := Match{Distance: math.Inf(1)}

	snap := s.snap.Load()
	if snap == nil || snap.dim == 0 || len(embedding) != snap.dim {
		return best
	}

	// names are sorted, strict less keeps the first equal minimum
	for _, name := range snap.names {
		for _, v := range snap.vectors[name] {
			if d := euclidean(embedding, v); d < best.Distance {
				best.Distance = d
				best.Name = name
			}
		}
	}

	if !(best.Distance <= tolerance) {
		best.Name = ""
	}
	return best
}

// Names returns the enrolled identity names, sorted
func (s *Store) Names() []string {
	snap := s.snap.Load()
	if snap == nil {
		return nil
	}
	out := make([]string, len(snap.names))
	copy(out, snap.names)
	return out
}

// Counts returns name to embedding count for every enrolled identity
func (s *Store) Counts() map[string]int {
	snap := s.snap.Load()
	if snap == nil {
		return map[string]int{}
	}
	out := make(map[string]int, len(snap.names))
	for _, name := range snap.names {
		out[name] = len(snap.vectors[name])
	}
	return out
}

// Len reports how many identities are enrolled
func (s *Store) Len() int {
	snap := s.snap.Load()
	if snap == nil {
		return 0
	}
	return len(snap.names)
}

// Embeddings reports the total number of stored vectors
func (s *Store) Embeddings() int {
	snap := s.snap.Load()
	if snap == nil {
		return 0
	}
	return snap.total
}

// Dim reports the embedding dimension, 0 when nothing is enrolled
func (s *Store) Dim() int {
	snap := s.snap.Load()
	if snap == nil {
		return 0
	}
	return snap.dim
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
