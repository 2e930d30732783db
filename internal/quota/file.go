package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/spigell/job-rotator/internal/logger"
)

const (
	quotaFileName  = "quota.json"
	lockRetryDelay = 50 * time.Millisecond
)

// FileStore keeps all platform records in a single JSON document. Writes go
// to a temporary file in the same directory and are renamed over the
// document, so a crash never leaves a half-written record behind. An
// advisory file lock serialises writers from different processes.
type FileStore struct {
	path   string
	lock   *flock.Flock
	now    func() time.Time
	logger *zap.Logger
}

// NewFileStore creates the state directory if needed and returns a store
// backed by <dir>/quota.json.
func NewFileStore(dir string, now func() time.Time, log *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	path := filepath.Join(dir, quotaFileName)

	return &FileStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		now:    clockOrNow(now),
		logger: logger.OrNop(log),
	}, nil
}

// Path returns the location of the quota document.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context, platform string) State {
	fresh := Fresh(s.now())

	locked, err := s.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		s.logger.Warn("reading quota without lock", zap.String("platform", platform), zap.Error(err))
	} else {
		defer s.lock.Unlock()
	}

	doc, err := s.readDocument()
	if err != nil {
		s.logger.Warn("quota document is unreadable, starting from zero",
			zap.String("platform", platform),
			zap.String("path", s.path),
			zap.Error(err),
		)
		return fresh
	}

	raw, ok := doc[platform]
	if !ok {
		return fresh
	}

	st, err := decodeState(raw, s.now().Location())
	if err != nil {
		s.logger.Warn("quota record is corrupt, starting from zero",
			zap.String("platform", platform),
			zap.Error(err),
		)
		return fresh
	}

	return st
}

func (s *FileStore) Save(ctx context.Context, platform string, st State) error {
	data, err := encodeState(st)
	if err != nil {
		return fmt.Errorf("save %s quota: %w", platform, err)
	}

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock quota document: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock quota document: not acquired")
	}
	defer s.lock.Unlock()

	doc, err := s.readDocument()
	if err != nil {
		// The previous document cannot be parsed; other platforms start over.
		s.logger.Warn("replacing unreadable quota document", zap.String("path", s.path), zap.Error(err))
		doc = map[string]json.RawMessage{}
	}
	doc[platform] = data

	return s.writeDocument(doc)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) readDocument() (map[string]json.RawMessage, error) {
	doc := map[string]json.RawMessage{}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *FileStore) writeDocument(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal quota document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), quotaFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp quota file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp quota file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp quota file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp quota file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace quota document: %w", err)
	}
	return nil
}
