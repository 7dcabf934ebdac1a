package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunRecord captures the outcome of one paginated fetch for audit.
type RunRecord struct {
	Timestamp  time.Time         `json:"timestamp"`
	RunID      string            `json:"run_id"`
	Sequence   int               `json:"sequence"`
	Resource   string            `json:"resource"`
	Filters    map[string]string `json:"filters,omitempty"`
	State      string            `json:"state"`
	Reason     string            `json:"reason,omitempty"`
	Pages      int               `json:"pages"`
	Records    int               `json:"records"`
	Archived   int               `json:"archived,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	Error      string            `json:"error,omitempty"`
}

// Writer persists run records to a directory as JSON files (journal style).
type Writer struct {
	dir   string
	mu    sync.Mutex
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "journal"
	}
	_ = os.MkdirAll(dir, 0o755)
	return &Writer{dir: dir, nowFn: time.Now}
}

// Dir returns the target directory.
func (w *Writer) Dir() string { return w.dir }

// WriteRun writes a run record to a timestamped JSON file and returns its path.
func (w *Writer) WriteRun(rec *RunRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	w.mu.Lock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	w.seq++
	rec.Sequence = w.seq
	w.mu.Unlock()

	name := fmt.Sprintf("run_%s_%s_%05d.json", rec.Timestamp.UTC().Format("20060102_150405"), safeName(rec.Resource), rec.Sequence)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("journal: write %s: %w", path, err)
	}
	return path, nil
}

func safeName(s string) string {
	if s == "" {
		return "unknown"
	}
	out := []rune(s)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
