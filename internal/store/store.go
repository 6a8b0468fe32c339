package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Document names. Each maps to one JSON file under the data directory.
const (
	Tasks                = "tasks"
	Subscribers          = "subscribers"
	PendingSubscriptions = "pending_subscriptions"
	UnsubscribeTokens    = "unsubscribe_tokens"
)

const (
	dataFilePerm = 0o644
	dataDirPerm  = 0o755
)

// Store persists named JSON documents with whole-document read/replace
// semantics. Every mutation is read-modify-write of the full document; the
// per-document lock only serializes writes, it does not make a read-write
// pair transactional. Two concurrent mutators of the same document can still
// lose one update (last write wins). That is a documented limitation carried
// over from the original flat-file design, not an oversight.
type Store struct {
	dir    string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store: data directory is empty")
	}
	if err := os.MkdirAll(dir, dataDirPerm); err != nil {
		return nil, err
	}
	return &Store{
		dir:    dir,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Path returns the file backing a named document.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *Store) lock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// Read fills out with the parsed document. A missing file, an empty file, a
// read error or malformed JSON all leave out untouched, so the caller's zero
// value serves as the empty default. Problems are logged, never returned.
func (s *Store) Read(name string, out any) {
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("store: read failed", zap.String("document", name), zap.Error(err))
		}
		return
	}
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Error("store: malformed document, treating as empty",
			zap.String("document", name), zap.Error(err))
	}
}

// Write serializes doc and replaces the whole document atomically: the bytes
// go to a temp file in the same directory which is then renamed over the
// target, with the document lock held for the duration. Failure is logged
// and reported as false.
func (s *Store) Write(name string, doc any) bool {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		s.logger.Error("store: marshal failed", zap.String("document", name), zap.Error(err))
		return false
	}

	l := s.lock(name)
	l.Lock()
	defer l.Unlock()

	target := s.Path(name)
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		s.logger.Error("store: temp file failed", zap.String("document", name), zap.Error(err))
		return false
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		s.logger.Error("store: write failed", zap.String("document", name), zap.Error(err))
		return false
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		s.logger.Error("store: close failed", zap.String("document", name), zap.Error(err))
		return false
	}
	if err := os.Chmod(tmpName, dataFilePerm); err != nil {
		os.Remove(tmpName)
		s.logger.Error("store: chmod failed", zap.String("document", name), zap.Error(err))
		return false
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		s.logger.Error("store: replace failed", zap.String("document", name), zap.Error(err))
		return false
	}
	return true
}

// EnsureDefaults seeds absent documents with their empty shape so that first
// requests find well-formed files.
func (s *Store) EnsureDefaults() error {
	defaults := map[string]string{
		Tasks:                "[]",
		Subscribers:          "[]",
		PendingSubscriptions: "{}",
		UnsubscribeTokens:    "{}",
	}
	for name, shape := range defaults {
		path := s.Path(name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return err
		}
		if err := os.WriteFile(path, []byte(shape), dataFilePerm); err != nil {
			return err
		}
	}
	return nil
}
