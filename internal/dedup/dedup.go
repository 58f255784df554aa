package dedup

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Record is one processed message as persisted on disk.
type Record struct {
	ID          string    `json:"id"`
	ProcessedAt time.Time `json:"processed_at"`
	Attachments []string  `json:"attachments,omitempty"`
}

// Tracker records processed message IDs so a restart does not download or
// print the same message twice. Records are appended to a JSONL file.
type Tracker struct {
	mu   sync.Mutex
	ids  map[string]struct{}
	file string
	now  func() time.Time
}

// NewTracker loads (or creates) a tracker backed by filePath. Lines that are
// not JSON objects are read as bare IDs.
func NewTracker(filePath string) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("create dedup dir: %w", err)
	}

	t := &Tracker{
		ids:  make(map[string]struct{}),
		file: filePath,
		now:  time.Now,
	}

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("open dedup file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "{") {
			t.ids[line] = struct{}{}
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("parse dedup record: %w", err)
		}
		if rec.ID != "" {
			t.ids[rec.ID] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dedup file: %w", err)
	}

	return t, nil
}

// Seen returns a snapshot of all processed IDs.
func (t *Tracker) Seen() map[string]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make(map[string]struct{}, len(t.ids))
	for k := range t.ids {
		cp[k] = struct{}{}
	}
	return cp
}

// MarkProcessed records id together with the attachment files it produced.
// Marking an ID twice is a no-op.
func (t *Tracker) MarkProcessed(id string, attachments []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.ids[id]; exists {
		return nil
	}

	line, err := json.Marshal(Record{ID: id, ProcessedAt: t.now().UTC(), Attachments: attachments})
	if err != nil {
		return fmt.Errorf("encode dedup record: %w", err)
	}

	f, err := os.OpenFile(t.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open dedup file for append: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write dedup record: %w", err)
	}
	t.ids[id] = struct{}{}
	return nil
}

// Count returns the number of processed IDs.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ids)
}
