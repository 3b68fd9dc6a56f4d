package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FileStore keeps the occurrence table in a single JSON file. Writes go to a
// temporary file in the same directory and are renamed into place.
type FileStore struct {
	path       string
	maxBackups int
	logger     *slog.Logger

	mu sync.Mutex
}

// NewFileStore creates a FileStore backed by path. Unreadable files are moved
// aside and at most maxBackups of them are kept.
func NewFileStore(path string, maxBackups int, logger *slog.Logger) *FileStore {
	if maxBackups <= 0 {
		maxBackups = 5
	}
	return &FileStore{
		path:       path,
		maxBackups: maxBackups,
		logger:     logger,
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the table. A missing file is an empty table. A file that cannot
// be parsed is logged, moved aside, and treated as empty.
func (s *FileStore) Load(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *FileStore) load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading event store: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("event store unreadable, starting empty",
			"path", s.path,
			"error", err,
		)
		s.quarantine()
		return nil, nil
	}
	return Normalize(records), nil
}

// Append adds r unless (name, hours) is already stored, then rewrites the file.
func (s *FileStore) Append(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	return s.write(Normalize(append(records, r)))
}

// Save replaces the table with records.
func (s *FileStore) Save(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(Normalize(records))
}

func (s *FileStore) write(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding event store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating event store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing event store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing event store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing event store: %w", err)
	}
	return nil
}

// quarantine renames an unreadable file to <path>.corrupt-<unix> and prunes
// old copies. Failures are logged only; the next write replaces the file.
func (s *FileStore) quarantine() {
	backup := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().UnixNano())
	if err := os.Rename(s.path, backup); err != nil {
		s.logger.Warn("moving unreadable event store aside", "path", s.path, "error", err)
		return
	}
	if err := s.prune(); err != nil {
		s.logger.Warn("pruning event store backups", "error", err)
	}
}

type backupFile struct {
	name string
	ts   int64
}

func (s *FileStore) listBackups() ([]backupFile, error) {
	dir := filepath.Dir(s.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing event store dir: %w", err)
	}

	prefix := filepath.Base(s.path) + ".corrupt-"
	var files []backupFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimPrefix(e.Name(), prefix), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, backupFile{name: e.Name(), ts: ts})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts < files[j].ts
	})
	return files, nil
}

func (s *FileStore) prune() error {
	files, err := s.listBackups()
	if err != nil {
		return err
	}
	if len(files) <= s.maxBackups {
		return nil
	}

	dir := filepath.Dir(s.path)
	for _, f := range files[:len(files)-s.maxBackups] {
		if err := os.Remove(filepath.Join(dir, f.name)); err != nil {
			return fmt.Errorf("pruning backup %s: %w", f.name, err)
		}
	}
	return nil
}
