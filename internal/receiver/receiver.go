package receiver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/priscillayouziqian/gmail-attachment-printer/internal/extract"
)

// Email is a fetched message reduced to what the pipeline consumes.
type Email struct {
	ID          string    // provider message ID, Message-ID header, or a derived fallback
	From        string    // decoded header values, passed through unmodified
	Subject     string
	Date        time.Time // zero when the Date header is missing or unparseable
	Parts       []extract.PartNode
	Attachments []Attachment
}

// Attachment references a file attached to an Email. Data is populated when
// the content arrived with the message; otherwise ID names it for a later
// Receiver.Attachment call.
type Attachment struct {
	Filename string
	MIMEType string
	ID       string
	Data     []byte
}

// FetchOptions narrows what a Fetch returns.
type FetchOptions struct {
	SeenIDs           map[string]struct{}
	ProcessDays       int
	From              string // substring of the From header; empty matches everything
	MaxResults        int    // 0 means unlimited
	RequireAttachment bool
}

// Receiver fetches emails from a mail account.
type Receiver interface {
	// Fetch returns unseen emails from approximately the last
	// opts.ProcessDays days.
	Fetch(ctx context.Context, opts FetchOptions) ([]Email, error)

	// Attachment returns the content of att, downloading it if needed.
	Attachment(ctx context.Context, email Email, att Attachment) ([]byte, error)

	// Close releases any resources held by the receiver.
	Close() error
}

func (o FetchOptions) seen(id string) bool {
	_, ok := o.SeenIDs[id]
	return ok
}

// accepts applies the filters that protocols without server-side search
// evaluate locally.
func (o FetchOptions) accepts(e Email, now time.Time) bool {
	if o.seen(e.ID) {
		return false
	}
	if o.ProcessDays > 0 && !e.Date.IsZero() && e.Date.Before(now.AddDate(0, 0, -o.ProcessDays)) {
		return false
	}
	if o.From != "" && !strings.Contains(strings.ToLower(e.From), strings.ToLower(o.From)) {
		return false
	}
	if o.RequireAttachment && len(e.Attachments) == 0 {
		return false
	}
	return true
}

// limit keeps the most recent max emails of a chronologically ordered list.
func limit(emails []Email, max int) []Email {
	if max > 0 && len(emails) > max {
		return emails[len(emails)-max:]
	}
	return emails
}

// inlineAttachment serves attachments whose content came with the message.
func inlineAttachment(att Attachment) ([]byte, error) {
	if att.Data == nil {
		return nil, errNoContent(att.Filename)
	}
	return att.Data, nil
}

type errNoContent string

func (e errNoContent) Error() string {
	return fmt.Sprintf("attachment %q has no content", string(e))
}
