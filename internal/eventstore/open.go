package eventstore

import (
	"context"
	"fmt"
	"log/slog"
)

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendNone     = "none"
)

// Open returns the named backend and a function releasing it. BackendNone
// returns a nil Store.
func Open(ctx context.Context, backend, path, databaseURL string, logger *slog.Logger) (Store, func(), error) {
	noop := func() {}
	switch backend {
	case BackendFile, "":
		if path == "" {
			return nil, noop, fmt.Errorf("file event store needs a path")
		}
		return NewFileStore(path, 5, logger), noop, nil
	case BackendPostgres:
		if databaseURL == "" {
			return nil, noop, fmt.Errorf("postgres event store needs a database URL")
		}
		s, err := OpenPostgres(ctx, databaseURL)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case BackendMemory:
		return NewMemoryStore(), noop, nil
	case BackendNone:
		return nil, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown event store backend %q", backend)
}
