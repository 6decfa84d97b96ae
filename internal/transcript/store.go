// Package transcript persists dated plain-text terminal captures with
// the same secret redaction as the command log.
package transcript

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cmux/internal/cmdlog"
)

// Store writes transcripts under {dir}/YYYY-MM-DD/ and sweeps old days
// away. Its lock serializes writes.
type Store struct {
	mu            sync.Mutex
	dir           string
	retentionDays int
	now           func() time.Time
}

// NewStore creates a transcript store rooted at dir.
func NewStore(dir string, retentionDays int) *Store {
	return &Store{
		dir:           dir,
		retentionDays: cmdlog.NormalizeRetention(retentionDays),
		now:           time.Now,
	}
}

// Save writes one transcript file named
// HHmmss_{reason}_{ws8}_{sf8}_{pn8}.log with a #-comment header and the
// sanitised body, returning the file path.
func (s *Store) Save(reason, workspaceID, surfaceID, paneID, workingDirectory, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	dayDir := filepath.Join(s.dir, now.Format("2006-01-02"))
	if err := os.MkdirAll(dayDir, 0o700); err != nil {
		return "", fmt.Errorf("create transcript dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s_%s_%s.log",
		now.Format("150405"),
		safeSegment(reason),
		idPrefix(workspaceID),
		idPrefix(surfaceID),
		idPrefix(paneID),
	)
	path := filepath.Join(dayDir, name)

	var sb strings.Builder
	sb.WriteString("# capturedAt: " + now.UTC().Format(time.RFC3339) + "\n")
	sb.WriteString("# workspace: " + workspaceID + "\n")
	sb.WriteString("# surface: " + surfaceID + "\n")
	sb.WriteString("# pane: " + paneID + "\n")
	sb.WriteString("# reason: " + reason + "\n")
	sb.WriteString("# workingDirectory: " + workingDirectory + "\n")
	sb.WriteString("\n")
	sb.WriteString(cmdlog.SanitizeText(body))
	sb.WriteString("\n")

	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

// Sweep removes dated directories older than the retention cutoff,
// including any stray files inside them. Empty dated directories are
// removed regardless of age.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}

	var cutoff time.Time
	if s.retentionDays > 0 {
		cutoff = dayStart(s.now()).AddDate(0, 0, -(s.retentionDays - 1))
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		day, err := time.Parse("2006-01-02", e.Name())
		if err != nil {
			continue
		}
		dayDir := filepath.Join(s.dir, e.Name())
		if s.retentionDays > 0 && day.Before(cutoff) {
			if err := os.RemoveAll(dayDir); err != nil {
				log.Printf("transcripts: remove %s: %v", dayDir, err)
			}
			continue
		}
		// Drop empty dated directories left behind by earlier sweeps.
		if files, err := os.ReadDir(dayDir); err == nil && len(files) == 0 {
			os.Remove(dayDir)
		}
	}
}

// idPrefix shortens an identifier to its first 8 characters for the
// file name.
func idPrefix(id string) string {
	id = safeSegment(id)
	if id == "" {
		return "none"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// safeSegment strips characters that cannot appear in a file name
// segment.
func safeSegment(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
