// Package discovery locates the SQLite file to serve as the target
// database, either in a local directory or in an object storage bucket.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/koustreak/tabula/internal/errs"
)

// Extensions are the file suffixes recognised as SQLite databases.
var Extensions = []string{".db", ".sqlite", ".sqlite3"}

// Candidate is one database file a source can provide.
type Candidate struct {
	Name     string    `json:"name"`
	Location string    `json:"location"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Source lists candidate database files and makes one available locally.
type Source interface {
	// Candidates returns every database file the source can see.
	Candidates(ctx context.Context) ([]Candidate, error)

	// Fetch returns a local filesystem path for the named candidate.
	Fetch(ctx context.Context, name string) (string, error)
}

// Result is the outcome of Discover.
type Result struct {
	Selected   Candidate   `json:"selected"`
	Path       string      `json:"path"`
	Candidates []Candidate `json:"candidates"`
	Multiple   bool        `json:"multiple"`
}

// Discover picks the most recently modified candidate of src and fetches it.
// Ties on modification time go to the lexically smallest name.
func Discover(ctx context.Context, src Source) (*Result, error) {
	cands, err := src.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, errs.New(errs.ErrKindNotFound, "no database files found")
	}

	sort.Slice(cands, func(i, j int) bool {
		if !cands[i].Modified.Equal(cands[j].Modified) {
			return cands[i].Modified.After(cands[j].Modified)
		}
		return cands[i].Name < cands[j].Name
	})

	path, err := src.Fetch(ctx, cands[0].Name)
	if err != nil {
		return nil, err
	}
	return &Result{
		Selected:   cands[0],
		Path:       path,
		Candidates: cands,
		Multiple:   len(cands) > 1,
	}, nil
}

// Available returns the candidate names of src, sorted.
func Available(ctx context.Context, src Source) ([]string, error) {
	cands, err := src.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.Name
	}
	sort.Strings(names)
	return names, nil
}

// find returns the candidate called name.
func find(cands []Candidate, name string) (Candidate, error) {
	for _, c := range cands {
		if c.Name == name {
			return c, nil
		}
	}
	return Candidate{}, errs.New(errs.ErrKindNotFound, fmt.Sprintf("database %q not found", name))
}
