// Command facewarden-idpack assembles the enrolled identity database from
// per-person enrollment fragments, or validates an already packed one.
//
// A fragment is one JSON file with a name and its embedding vectors, as
// written by the enrollment tooling one capture session at a time. The packer
// merges fragments by name, drops exact duplicate vectors, enforces one
// embedding dimension across the whole database, and writes the flat
// name -> vectors object the agent loads at startup.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"facewarden/internal/core/identity"
)

type fragmentFile struct {
	Name       string      `json:"name"`
	Embeddings [][]float64 `json:"embeddings"`
}

func readJSON[T any](path string, into *T) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, into); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func must(err error) {
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func findFragmentFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(path), ".json") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func hasFragments(dir string) bool {
	files, err := findFragmentFiles(dir)
	return err == nil && len(files) > 0
}

// resolveRoot tries, in order: flag, env, common locations.
// Returns the chosen root and an ordered list of attempts (for error messages)
func resolveRoot(flagRoot string) (string, []string, error) {
	var attempts []string
	try := func(p string) bool {
		if p == "" {
			return false
		}
		attempts = append(attempts, p)
		return hasFragments(p)
	}

	if try(flagRoot) {
		return flagRoot, attempts, nil
	}
	if env := strings.TrimSpace(os.Getenv("FACEWARDEN_ENROLL_ROOT")); env != "" {
		if try(env) {
			return env, attempts, nil
		}
	}
	candidates := []string{
		"./enroll",
		"./data/enroll",
		"/data/enroll",
	}
	for _, c := range candidates {
		if try(c) {
			return c, attempts, nil
		}
	}
	return "", attempts, errors.New("no enrollment fragments found in any known location")
}

func assemble(root string) (map[string][][]float64, error) {
	paths, err := findFragmentFiles(root)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New("no fragment files found under " + root)
	}
	sort.Strings(paths)

	db := make(map[string][][]float64)
	seen := make(map[string]map[string]bool) // name -> encoded vector
	dim := 0

	for _, p := range paths {
		var fr fragmentFile
		if err := readJSON(p, &fr); err != nil {
			return nil, err
		}
		name := strings.TrimSpace(fr.Name)
		if name == "" {
			return nil, fmt.Errorf("fragment missing name: %s", p)
		}
		if len(fr.Embeddings) == 0 {
			return nil, fmt.Errorf("fragment %s has no embeddings for %q", p, name)
		}
		if seen[name] == nil {
			seen[name] = make(map[string]bool)
		}
		for i, vec := range fr.Embeddings {
			if len(vec) == 0 {
				return nil, fmt.Errorf("fragment %s: %q embedding %d is empty", p, name, i)
			}
			if dim == 0 {
				dim = len(vec)
			}
			if len(vec) != dim {
				return nil, fmt.Errorf("fragment %s: %q embedding %d has dimension %d, want %d",
					p, name, i, len(vec), dim)
			}
			key, err := json.Marshal(vec)
			if err != nil {
				return nil, err
			}
			if seen[name][string(key)] {
				_, _ = fmt.Fprintf(os.Stderr, "warning: duplicate embedding for %q in %s skipped\n", name, p)
				continue
			}
			seen[name][string(key)] = true
			db[name] = append(db[name], vec)
		}
	}
	return db, nil
}

func summarize(w *os.File, db map[string][][]float64) {
	names := make([]string, 0, len(db))
	total := 0
	dim := 0
	for name, vecs := range db {
		names = append(names, name)
		total += len(vecs)
		if len(vecs) > 0 {
			dim = len(vecs[0])
		}
	}
	sort.Strings(names)
	_, _ = fmt.Fprintf(w, "%d identities, %d embeddings, dimension %d\n", len(names), total, dim)
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "  %-24s %d\n", name, len(db[name]))
	}
}

// check loads the database through the same loader the agent uses, so
// whatever passes here passes at startup
func check(path string) {
	ids, err := identity.Open(path)
	must(err)
	counts := ids.Counts()
	fmt.Printf("%d identities, %d embeddings, dimension %d\n", ids.Len(), ids.Embeddings(), ids.Dim())
	for _, name := range ids.Names() {
		fmt.Printf("  %-24s %d\n", name, counts[name])
	}
}

func main() {
	var (
		flagRoot = flag.String("root", "", "path to the enrollment fragment directory. If empty, auto-discover")
		out      = flag.String("out", "./data/identities.json", "output path or '-' for stdout")
		checkDB  = flag.String("check", "", "validate a packed database instead of assembling one")
		pretty   = flag.Bool("pretty", true, "pretty-print JSON")
		verbose  = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	if *checkDB != "" {
		check(*checkDB)
		return
	}

	ecRoot, attempts, err := resolveRoot(strings.TrimSpace(*flagRoot))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to locate enrollment fragments (looked in):\n")
		for _, a := range attempts {
			_, _ = fmt.Fprintf(os.Stderr, "  - %s\n", a)
		}
		_, _ = fmt.Fprintf(os.Stderr, "hint: point -root at the fragment directory or set FACEWARDEN_ENROLL_ROOT\n")
		must(err)
	}
	if *verbose {
		_, _ = fmt.Fprintf(os.Stderr, "using enrollment root: %s\n", ecRoot)
	}

	db, err := assemble(ecRoot)
	must(err)

	var enc []byte
	if *pretty {
		enc, err = json.MarshalIndent(db, "", "  ")
	} else {
		enc, err = json.Marshal(db)
	}
	must(err)

	if *out == "-" {
		if _, err := os.Stdout.Write(enc); err != nil {
			must(err)
		}
		if _, err := os.Stdout.WriteString("\n"); err != nil {
			must(err)
		}
		return
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		must(err)
	}
	must(os.WriteFile(*out, enc, 0o644))
	if *verbose {
		summarize(os.Stderr, db)
		_, _ = fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", *out, len(enc))
	}
}
