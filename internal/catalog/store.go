package catalog

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is one catalog revision as held by the Store.
type Snapshot struct {
	Catalog  Catalog
	Revision uint64
	SetAt    time.Time
}

type systemCache struct {
	system   *System
	revision uint64
}

// Store provides thread-safe access to the current catalog and caches its
// preprocessed System per revision. Searches take a System once and keep it;
// a later Set does not affect them.
type Store struct {
	current  atomic.Pointer[Snapshot]
	revision atomic.Uint64
	logger   *slog.Logger

	system   atomic.Pointer[systemCache]
	systemMu sync.Mutex // serializes System rebuilds
}

// NewStore creates an empty Store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger}
}

// Get returns the current catalog snapshot, or nil if none has been set.
func (s *Store) Get() *Snapshot {
	return s.current.Load()
}

// Set validates c and makes it the current catalog under a new revision.
func (s *Store) Set(c Catalog) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	rev := s.revision.Add(1)
	s.current.Store(&Snapshot{Catalog: c, Revision: rev, SetAt: time.Now()})
	s.logger.Info("catalog updated",
		"revision", rev,
		"stars", len(c.Stars),
		"planets", len(c.Planets),
	)
	return nil
}

// Revision returns the current revision, 0 when no catalog is loaded.
func (s *Store) Revision() uint64 {
	snap := s.current.Load()
	if snap == nil {
		return 0
	}
	return snap.Revision
}

// AgeSeconds returns seconds since the catalog was last set, or -1 if none.
func (s *Store) AgeSeconds() float64 {
	snap := s.current.Load()
	if snap == nil {
		return -1
	}
	return time.Since(snap.SetAt).Seconds()
}

// System returns the preprocessed System for the current revision, building
// it on first use after each Set (double-checked locking).
func (s *Store) System() (*System, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNoCatalog
	}

	if c := s.system.Load(); c != nil && c.revision == snap.Revision {
		return c.system, nil
	}

	s.systemMu.Lock()
	defer s.systemMu.Unlock()

	if c := s.system.Load(); c != nil && c.revision == snap.Revision {
		return c.system, nil
	}

	sys, err := Preprocess(snap.Catalog)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("system rebuilt",
		"revision", snap.Revision,
		"bodies", len(sys.Bodies),
		"suns", len(sys.Suns),
		"observer_present", sys.Observer >= 0,
	)
	s.system.Store(&systemCache{system: sys, revision: snap.Revision})
	return sys, nil
}
