package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ratesapi/backend/services/rates-service/internal/changeset"
)

func TestAppendWritesOneLinePerEntry(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	sink := NewFileSink(dir)
	fixed := time.Date(2024, 5, 1, 23, 30, 0, 0, time.FixedZone("CST", -6*3600))
	sink.now = func() time.Time { return fixed }

	entries := []changeset.Entry{
		{Timestamp: fixed.UTC(), User: "Ana", RateID: "R-7", SPL: "N", Field: "Rate", From: json.Number("10"), To: json.Number("12")},
		{Timestamp: fixed.UTC(), User: "Ana", RateID: "R-7", SPL: "N", Field: "SPL", From: "N", To: "Y"},
	}
	if err := sink.Append(entries); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := sink.Append(entries[:1]); err != nil {
		t.Fatalf("second append: %v", err)
	}

	path := filepath.Join(dir, "2024-05-02.log")
	if sink.Path(fixed) != path {
		t.Fatalf("expected UTC dated path %s, got %s", path, sink.Path(fixed))
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line is not json: %v", err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0]["field"] != "Rate" || lines[0]["to"] != float64(12) || lines[0]["user"] != "Ana" {
		t.Fatalf("unexpected first line: %v", lines[0])
	}
	if lines[1]["rate_id"] != "R-7" || lines[1]["spl"] != "N" {
		t.Fatalf("unexpected second line: %v", lines[1])
	}
}

func TestAppendNothingCreatesNoFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	sink := NewFileSink(dir)

	if err := sink.Append(nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected no log dir, got %v", err)
	}
}

func TestAppendFailsWhenDirIsAFile(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "logs")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	sink := NewFileSink(blocker)
	if err := sink.Append([]changeset.Entry{{Field: "Rate"}}); err == nil {
		t.Fatalf("expected error when log dir is a file")
	}
}
