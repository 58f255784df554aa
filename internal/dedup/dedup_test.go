package dedup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestTracker_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "school.jsonl")

	tr, err := NewTracker(path)
	if err != nil {
		t.Fatalf("NewTracker() error = %v", err)
	}
	fixed := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return fixed }

	if err := tr.MarkProcessed("m1", []string{"hw.pdf"}); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if err := tr.MarkProcessed("m2", nil); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if err := tr.MarkProcessed("m1", []string{"other.pdf"}); err != nil {
		t.Fatalf("MarkProcessed() duplicate error = %v", err)
	}
	if tr.Count() != 2 {
		t.Errorf("Count() = %d, want 2", tr.Count())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("file has %d lines, want 2:\n%s", len(lines), data)
	}
	var rec Record
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal first record: %v", err)
	}
	if rec.ID != "m1" || !rec.ProcessedAt.Equal(fixed) || len(rec.Attachments) != 1 || rec.Attachments[0] != "hw.pdf" {
		t.Errorf("first record = %+v", rec)
	}

	reloaded, err := NewTracker(path)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	seen := reloaded.Seen()
	for _, id := range []string{"m1", "m2"} {
		if _, ok := seen[id]; !ok {
			t.Errorf("reloaded tracker missing %s", id)
		}
	}
}

func TestTracker_ReadsBareIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	content := "legacy-1\n\n{\"id\":\"m3\",\"processed_at\":\"2024-03-01T08:00:00Z\"}\nlegacy-2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tr, err := NewTracker(path)
	if err != nil {
		t.Fatalf("NewTracker() error = %v", err)
	}
	if tr.Count() != 3 {
		t.Errorf("Count() = %d, want 3", tr.Count())
	}
}

func TestTracker_CorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.jsonl")
	if err := os.WriteFile(path, []byte("{\"id\":\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewTracker(path); err == nil {
		t.Error("NewTracker() should fail on a truncated record")
	}
}

func TestTracker_SeenIsSnapshot(t *testing.T) {
	tr, err := NewTracker(filepath.Join(t.TempDir(), "ids.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	snap := tr.Seen()
	if err := tr.MarkProcessed("later", nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := snap["later"]; ok {
		t.Error("snapshot changed after MarkProcessed")
	}
}

func TestTracker_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.jsonl")
	tr, err := NewTracker(path)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := tr.MarkProcessed(string(rune('a'+i%10)), nil); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	if tr.Count() != 10 {
		t.Errorf("Count() = %d, want 10", tr.Count())
	}
	reloaded, err := NewTracker(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Count() != 10 {
		t.Errorf("reloaded Count() = %d, want 10", reloaded.Count())
	}
}
