package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-rotator/internal/logger"
	"github.com/spigell/job-rotator/internal/platform"
)

// CSVStore appends records to a CSV file. Existing rows are never rewritten.
type CSVStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

func NewCSVStore(path string, log *zap.Logger) (*CSVStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &CSVStore{path: path, logger: logger.OrNop(log)}, nil
}

func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) Append(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat history: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Columns); err != nil {
			return fmt.Errorf("write history header: %w", err)
		}
	}
	if err := w.Write(r.row()); err != nil {
		return fmt.Errorf("write history record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush history: %w", err)
	}
	return f.Sync()
}

// Load reads every record. Columns are matched by header name, so files
// written before platform and runId existed still load. Malformed rows, such
// as a line torn by a crash during Append, are skipped with a warning.
func (s *CSVStore) Load(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	if _, ok := index["jobId"]; !ok {
		return nil, fmt.Errorf("history header has no jobId column")
	}
	if _, ok := index["outcome"]; !ok {
		return nil, fmt.Errorf("history header has no outcome column")
	}

	var records []Record
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			s.skip(parseErr.StartLine, err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read history: %w", err)
		}

		rec, err := parseRow(index, row)
		if err != nil {
			line, _ := r.FieldPos(0)
			s.skip(line, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *CSVStore) skip(line int, err error) {
	s.logger.Warn("skipping malformed history row",
		zap.String("path", s.path),
		zap.Int("line", line),
		zap.Error(err),
	)
}

func parseRow(index map[string]int, row []string) (Record, error) {
	get := func(name string) string {
		if i, ok := index[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	rec := Record{
		JobID:              get("jobId"),
		Title:              get("title"),
		Company:            get("company"),
		Location:           get("location"),
		WorkStyle:          get("workStyle"),
		Description:        get("description"),
		ExperienceRequired: get("experienceRequired"),
		HRName:             get("hrName"),
		HRLink:             get("hrLink"),
		ResumeUsed:         get("resumeUsed"),
		DatePosted:         get("datePosted"),
		DateActed:          get("dateActed"),
		JobLink:            get("jobLink"),
		ExternalLink:       get("externalLink"),
		Outcome:            platform.Outcome(get("outcome")),
		Reason:             get("reason"),
		Platform:           get("platform"),
		RunID:              get("runId"),
	}
	if rec.JobID == "" {
		return Record{}, errors.New("empty jobId")
	}
	if !rec.Outcome.Valid() {
		return Record{}, fmt.Errorf("unknown outcome %q", rec.Outcome)
	}
	if ts := get("timestamp"); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return Record{}, err
		}
		rec.Timestamp = t
	}
	return rec, nil
}

func (s *CSVStore) Close() error { return nil }
