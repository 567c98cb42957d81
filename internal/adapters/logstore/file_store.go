package logstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nordic-dev-net/hydrophonitor-gps/internal/domain"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/ports"
)

// ErrCorruptLog means the log file exists and is non-empty but does not hold
// a valid observation log.
var ErrCorruptLog = errors.New("logstore: corrupt observation log")

// FileNameLayout is the UTC timestamp layout used to name session files.
const FileNameLayout = "2006-01-02T15-04-05"

// FileName returns the log file name for a session started at t.
func FileName(t time.Time) string {
	return t.UTC().Format(FileNameLayout) + "_GPS_data.json"
}

// Load reads the whole log at path. A zero-length file is an empty log;
// anything else must decode completely.
func Load(path string) (*domain.Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("logstore read %s: %w", path, err)
	}
	return Decode(data)
}

// Decode parses the serialized form of a log.
func Decode(data []byte) (*domain.Log, error) {
	if len(data) == 0 {
		return domain.NewLog(), nil
	}
	var log domain.Log
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptLog, err)
	}
	return &log, nil
}

// Encode serializes the whole log.
func Encode(log *domain.Log) ([]byte, error) {
	if log == nil {
		log = domain.NewLog()
	}
	data, err := json.Marshal(log)
	if err != nil {
		return nil, fmt.Errorf("logstore encode: %w", err)
	}
	return data, nil
}

// Persist replaces the file at path with the serialized log. The bytes go to
// a temporary file in the same directory which is synced and renamed over
// path, so readers see either the previous log or the new one.
func Persist(log *domain.Log, path string) error {
	data, err := Encode(log)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// Create makes a new, empty log file at path. It refuses to replace an
// existing file.
func Create(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("logstore create dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logstore create %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("logstore create %s: %w", path, err)
	}
	return Persist(domain.NewLog(), path)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("logstore temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("logstore write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("logstore sync: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("logstore chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("logstore close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("logstore rename into %s: %w", path, err)
	}
	success = true

	// Make the rename itself durable across power loss.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}

// FileStore binds the log functions to a single session file and keeps
// bookkeeping for metrics.
type FileStore struct {
	mu          sync.Mutex
	path        string
	pending     bool
	entries     int
	sizeBytes   int64
	lastPersist time.Time
}

// Open returns a store for an existing log file.
func Open(path string) (*FileStore, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("logstore open: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("logstore open: %s is a directory", path)
	}
	return &FileStore{path: path, sizeBytes: stat.Size()}, nil
}

// CreateSession creates a fresh log file for a session started at t inside
// dir and opens it.
func CreateSession(dir string, t time.Time) (*FileStore, error) {
	path := filepath.Join(dir, FileName(t))
	if err := Create(path); err != nil {
		return nil, err
	}
	return Open(path)
}

// NewSession returns a store for a session started at t inside dir whose
// file is only created by the first Load, so a session that never gets past
// connecting leaves nothing behind.
func NewSession(dir string, t time.Time) *FileStore {
	return &FileStore{path: filepath.Join(dir, FileName(t)), pending: true}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load() (*domain.Log, error) {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if pending {
		if err := Create(s.path); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.pending = false
		s.sizeBytes = int64(len("[]"))
		s.mu.Unlock()
	}

	log, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.entries = log.Len()
	s.mu.Unlock()
	return log, nil
}

func (s *FileStore) Persist(log *domain.Log) error {
	data, err := Encode(log)
	if err != nil {
		return err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.mu.Lock()
	s.entries = log.Len()
	s.sizeBytes = int64(len(data))
	s.lastPersist = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *FileStore) Stats() ports.StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ports.StoreStats{
		Entries:     s.entries,
		SizeBytes:   s.sizeBytes,
		LastPersist: s.lastPersist,
	}
}

var _ ports.LogStore = (*FileStore)(nil)
