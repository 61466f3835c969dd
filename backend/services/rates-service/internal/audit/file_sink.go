// Package audit appends committed field changes to a daily JSON lines file.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ratesapi/backend/services/rates-service/internal/changeset"
)

// FileSink writes one line per entry to <dir>/<YYYY-MM-DD>.log, dated in UTC.
type FileSink struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// NewFileSink returns sink rooted at dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir, now: time.Now}
}

// Path returns the log file used for entries appended at the given time.
func (s *FileSink) Path(at time.Time) string {
	return filepath.Join(s.dir, at.UTC().Format("2006-01-02")+".log")
}

// Name implements the post-commit hook contract.
func (s *FileSink) Name() string {
	return "audit"
}

// AfterCommit appends entries.
func (s *FileSink) AfterCommit(_ context.Context, entries []changeset.Entry) error {
	return s.Append(entries)
}

// Append writes all entries in a single write call.
func (s *FileSink) Append(entries []changeset.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("audit: encode entry: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("audit: create dir: %w", err)
	}
	f, err := os.OpenFile(s.Path(s.now()), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open log: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("audit: write log: %w", err)
	}
	return f.Close()
}
