// Package summary renders a message body and its media links into a Word
// document saved next to the message's attachments.
package summary

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/priscillayouziqian/gmail-attachment-printer/internal/store"
)

const maxNameRunes = 50

var (
	replyPrefix  = regexp.MustCompile(`(?i)^(?:Fwd|FW|Re|转发|回复)[:：]\s*`)
	unsafeInName = regexp.MustCompile(`[\\/?%*:|"<>]`)
)

// Generate writes "<subject>_summary.docx" into dir. Nothing is written when
// links or body is empty, and an existing document is left untouched; ok
// reports whether a document is present afterwards.
func Generate(dir, subject, body string, links []string) (saved store.Saved, ok bool, err error) {
	if len(links) == 0 || body == "" {
		return store.Saved{}, false, nil
	}

	name := Filename(subject)
	path := filepath.Join(dir, name)
	saved = store.Saved{Name: name, LocalPath: path, Type: store.FileType(name)}

	if _, err := os.Stat(path); err == nil {
		saved.Skipped = true
		return saved, true, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return store.Saved{}, false, fmt.Errorf("stat %s: %w", name, err)
	}

	data, err := Render(body)
	if err != nil {
		return store.Saved{}, false, fmt.Errorf("render %s: %w", name, err)
	}
	if err := store.WriteFile(path, data); err != nil {
		return store.Saved{}, false, err
	}
	return saved, true, nil
}

// Filename derives the summary file name from a subject: reply and forward
// prefixes are dropped, characters unsafe in file names become "-", and the
// result is cut to 50 characters.
func Filename(subject string) string {
	clean := replyPrefix.ReplaceAllString(subject, "")
	clean = unsafeInName.ReplaceAllString(clean, "-")
	if runes := []rune(clean); len(runes) > maxNameRunes {
		clean = string(runes[:maxNameRunes])
	}
	if strings.TrimSpace(clean) == "" {
		clean = "untitled"
	}
	return clean + "_summary.docx"
}
