// Package app wires configuration, the target database, the metadata cache
// and the CRUD engine into one running session that can be swapped for
// another target at runtime.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/koustreak/tabula/internal/config"
	"github.com/koustreak/tabula/internal/crud"
	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/database/mysql"
	"github.com/koustreak/tabula/internal/database/postgres"
	"github.com/koustreak/tabula/internal/database/sqlite"
	"github.com/koustreak/tabula/internal/discovery"
	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/filestore/minio"
	"github.com/koustreak/tabula/internal/logger"
	"github.com/koustreak/tabula/internal/metacache"
	"github.com/koustreak/tabula/internal/schema"
)

// Session is everything bound to one target database.
type Session struct {
	Name   string
	DB     database.DB
	Cache  *metacache.Cache
	Engine *crud.Engine
}

// App owns the system store and the current session.
type App struct {
	cfg    *config.Config
	log    *logger.Logger
	store  *metacache.Store
	source discovery.Source

	mu      sync.RWMutex
	session *Session
}

// Open builds the application from cfg. The metadata cache is restored
// from the system store and refreshed from the target when
// cache.refresh_on_start is set or nothing was stored.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}

	if dir := filepath.Dir(cfg.System.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating system store directory: %w", err)
		}
	}
	store, err := metacache.OpenStore(ctx, cfg.System.Path)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log, store: store}
	if err := a.init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	target := a.cfg.Target
	name := string(target.Driver)

	if a.cfg.UsesDiscovery() {
		src, err := a.newSource(ctx)
		if err != nil {
			return err
		}
		a.source = src

		res, err := discovery.Discover(ctx, src)
		if err != nil {
			return err
		}
		if res.Multiple {
			a.log.With().Int("candidates", len(res.Candidates)).Str("selected", res.Selected.Name).Logger().
				Warn("multiple databases found; serving the most recently modified")
		}
		target.DSN = res.Path
		name = res.Selected.Name
	}

	s, err := a.openSession(ctx, name, target)
	if err != nil {
		return err
	}

	if err := s.Cache.Load(ctx); err != nil {
		s.DB.Close()
		return err
	}
	if a.cfg.Cache.RefreshOnStart || len(s.Cache.ListTables()) == 0 {
		if err := s.Cache.RefreshAll(ctx); err != nil {
			s.DB.Close()
			return err
		}
		a.log.With().Str("target", name).Int("tables", len(s.Cache.ListTables())).Logger().Info("metadata refreshed")
	}

	a.session = s
	return nil
}

func (a *App) newSource(ctx context.Context) (discovery.Source, error) {
	d := a.cfg.Discovery
	switch d.Source {
	case config.SourceMinIO:
		store, err := minio.New(ctx, &d.MinIO)
		if err != nil {
			return nil, err
		}
		return discovery.NewRemote(store, d.MinIO.Bucket, d.MinIO.Prefix, d.Dir), nil
	default:
		return discovery.NewLocal(d.Dir, a.cfg.System.Path), nil
	}
}

// openSession connects to target and builds a session with an empty cache.
func (a *App) openSession(ctx context.Context, name string, target database.Config) (*Session, error) {
	db, err := Connect(ctx, &target)
	if err != nil {
		return nil, err
	}
	intro, err := schema.New(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	cache := metacache.New(intro, a.store)
	engine := crud.New(db, cache,
		crud.WithMaxPageSize(a.cfg.Server.MaxPageSize),
		crud.WithQueryTimeout(target.QueryTimeout),
	)
	return &Session{Name: name, DB: db, Cache: cache, Engine: engine}, nil
}

// Connect opens the driver named by cfg.Driver.
func Connect(ctx context.Context, cfg *database.Config) (database.DB, error) {
	var (
		db  database.DB
		err error
	)
	switch cfg.Driver {
	case database.DriverSQLite:
		db, err = sqlite.New(ctx, cfg)
	case database.DriverPostgres:
		db, err = postgres.New(ctx, cfg)
	case database.DriverMySQL:
		db, err = mysql.New(ctx, cfg)
	default:
		return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unsupported database driver %q", cfg.Driver))
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

// View runs fn against the current session. A concurrent SwitchTarget
// waits until fn returns.
func (a *App) View(fn func(s *Session) error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return fn(a.session)
}

// Current returns the session in use at the time of the call.
func (a *App) Current() *Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

// Available lists the databases SwitchTarget accepts. Without discovery
// only the configured target is listed.
func (a *App) Available(ctx context.Context) ([]string, error) {
	if a.source == nil {
		return []string{a.Current().Name}, nil
	}
	return discovery.Available(ctx, a.source)
}

// SwitchTarget replaces the current session with one over the named
// database. The new target is opened first, so a failure to open it
// leaves the current session untouched. Once it is open the old cache is
// invalidated, the old connection closed and the new cache rebuilt.
func (a *App) SwitchTarget(ctx context.Context, name string) error {
	if a.source == nil {
		return errs.New(errs.ErrKindInvalidInput, "target switching requires discovery; target.dsn is fixed")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	path, err := a.source.Fetch(ctx, name)
	if err != nil {
		return err
	}
	target := a.cfg.Target
	target.DSN = path

	next, err := a.openSession(ctx, name, target)
	if err != nil {
		return err
	}

	old := a.session
	if err := old.Cache.InvalidateAll(ctx); err != nil {
		next.DB.Close()
		return err
	}
	old.DB.Close()
	a.session = next

	log := a.log.With().Str("from", old.Name).Str("to", name).Logger()
	if err := next.Cache.RefreshAll(ctx); err != nil {
		log.ErrorWith("target switched but metadata refresh failed", err, nil)
		return err
	}
	log.Info("target switched")
	return nil
}

// Close releases the target connection and the system store.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		a.session.DB.Close()
		a.session = nil
	}
	return a.store.Close()
}
