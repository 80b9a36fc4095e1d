package feeds

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// journalEntry is one enqueued raw article as written to the on-disk queue.
// Entries are idempotent on replay: the url_hash unique constraint turns a
// duplicate insert into a no-op.
type journalEntry struct {
	FeedID      int64  `json:"feed_id"`
	URL         string `json:"url"`
	URLHash     string `json:"url_hash"`
	GUID        string `json:"guid,omitempty"`
	Domain      string `json:"domain,omitempty"`
	Title       string `json:"title,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Language    string `json:"language,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// Journal is the poller's crash-safe bookkeeping directory. A poll batch is
// written before the database inserts and removed after they commit; a batch
// file left behind by a crash is replayed on the next run.
type Journal struct {
	dir string
}

// NewJournal creates the queue directory if needed.
func NewJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}
	return &Journal{dir: dir}, nil
}

// Write persists a poll batch and returns its token for Remove.
func (j *Journal) Write(entries []journalEntry) (string, error) {
	name := "batch-" + uuid.NewString() + ".json"
	path := filepath.Join(j.dir, name)
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write journal batch: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("commit journal batch: %w", err)
	}
	return name, nil
}

// Remove deletes a committed batch.
func (j *Journal) Remove(name string) error {
	return os.Remove(filepath.Join(j.dir, name))
}

// Pending lists batch files left behind by a previous run.
func (j *Journal) Pending() ([]string, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "batch-") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Load reads one pending batch.
func (j *Journal) Load(name string) ([]journalEntry, error) {
	data, err := os.ReadFile(filepath.Join(j.dir, name))
	if err != nil {
		return nil, err
	}
	var entries []journalEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode journal batch %s: %w", name, err)
	}
	return entries, nil
}
