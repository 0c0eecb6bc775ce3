package discovery

import (
	"context"
	"os"
	"path/filepath"

	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/filestore"
)

// Local finds database files directly inside a directory.
type Local struct {
	Dir string

	// Exclude holds paths never offered as targets, such as the system store.
	Exclude []string
}

// NewLocal returns a source over dir that skips the files in exclude.
func NewLocal(dir string, exclude ...string) *Local {
	return &Local{Dir: dir, Exclude: exclude}
}

func (l *Local) Candidates(_ context.Context) ([]Candidate, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "cannot read data directory", err)
	}

	skip := make(map[string]bool, len(l.Exclude))
	for _, p := range l.Exclude {
		if abs, err := filepath.Abs(p); err == nil {
			skip[abs] = true
		}
	}

	match := filestore.ListOptions{Suffixes: Extensions}
	var out []Candidate
	for _, e := range entries {
		if e.IsDir() || !match.Match(e.Name()) {
			continue
		}
		full := filepath.Join(l.Dir, e.Name())
		if abs, err := filepath.Abs(full); err == nil && skip[abs] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Candidate{
			Name:     e.Name(),
			Location: full,
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	return out, nil
}

// Fetch returns the path of the named file; nothing is copied.
func (l *Local) Fetch(ctx context.Context, name string) (string, error) {
	cands, err := l.Candidates(ctx)
	if err != nil {
		return "", err
	}
	c, err := find(cands, name)
	if err != nil {
		return "", err
	}
	return c.Location, nil
}
