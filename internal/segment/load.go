package segment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoSegments indicates an exercise whose segment list is empty after
// validation — nothing to practice.
var ErrNoSegments = errors.New("segment: exercise has no usable segments")

// Load parses one exercise from JSON. Malformed segments (see
// [Segment.Validate]) are dropped with a warning rather than failing the
// whole exercise; an exercise left with zero usable segments is an error.
// Surviving segments are sorted by Order.
func Load(r io.Reader) (*Exercise, error) {
	var ex Exercise
	dec := json.NewDecoder(r)
	if err := dec.Decode(&ex); err != nil {
		return nil, fmt.Errorf("segment: parse exercise: %w", err)
	}
	if ex.Slug == "" {
		return nil, fmt.Errorf("segment: exercise is missing a slug")
	}

	kept := ex.Segments[:0]
	for _, s := range ex.Segments {
		if err := s.Validate(); err != nil {
			slog.Warn("segment: dropping malformed segment",
				"exercise", ex.Slug,
				"order", s.Order,
				"err", err,
			)
			continue
		}
		kept = append(kept, s)
	}
	ex.Segments = kept

	if len(ex.Segments) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSegments, ex.Slug)
	}

	sort.SliceStable(ex.Segments, func(i, j int) bool {
		return ex.Segments[i].Order < ex.Segments[j].Order
	})
	return &ex, nil
}

// LoadFile loads one exercise from a JSON file on disk.
func LoadFile(path string) (*Exercise, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("segment: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Library is the read-only collection of exercises available to the server,
// loaded once at startup.
type Library struct {
	exercises map[string]*Exercise
	order     []string
}

// LoadDir loads every *.json exercise under dir into a [Library].
// Files that fail to load are skipped with a warning; a directory yielding
// no exercises at all is an error.
func LoadDir(dir string) (*Library, error) {
	lib := &Library{exercises: make(map[string]*Exercise)}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		ex, err := LoadFile(path)
		if err != nil {
			slog.Warn("segment: skipping exercise file", "path", path, "err", err)
			return nil
		}
		if _, dup := lib.exercises[ex.Slug]; dup {
			slog.Warn("segment: duplicate exercise slug, keeping first", "slug", ex.Slug, "path", path)
			return nil
		}
		lib.exercises[ex.Slug] = ex
		lib.order = append(lib.order, ex.Slug)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("segment: scan %s: %w", dir, err)
	}
	if len(lib.exercises) == 0 {
		return nil, fmt.Errorf("segment: no exercises found under %s", dir)
	}
	sort.Strings(lib.order)
	return lib, nil
}

// NewLibrary builds a library from already-loaded exercises. Later
// duplicates of a slug are ignored.
func NewLibrary(exercises ...*Exercise) *Library {
	lib := &Library{exercises: make(map[string]*Exercise, len(exercises))}
	for _, ex := range exercises {
		if _, dup := lib.exercises[ex.Slug]; dup {
			continue
		}
		lib.exercises[ex.Slug] = ex
		lib.order = append(lib.order, ex.Slug)
	}
	sort.Strings(lib.order)
	return lib
}

// Get returns the exercise with the given slug, or nil.
func (l *Library) Get(slug string) *Exercise {
	return l.exercises[slug]
}

// Slugs returns the sorted slugs of all loaded exercises.
func (l *Library) Slugs() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Len returns the number of loaded exercises.
func (l *Library) Len() int {
	return len(l.exercises)
}
