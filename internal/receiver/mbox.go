package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	mboxlib "github.com/emersion/go-mbox"
)

// MboxReceiver reads emails from a local mbox archive, such as a Google
// Takeout export.
type MboxReceiver struct {
	path   string
	logger *slog.Logger
}

// NewMbox creates a receiver for the archive at path.
func NewMbox(path string, logger *slog.Logger) *MboxReceiver {
	return &MboxReceiver{path: path, logger: logger}
}

func (r *MboxReceiver) Fetch(ctx context.Context, opts FetchOptions) ([]Email, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	emails, err := r.read(ctx, mboxlib.NewReader(file), opts, time.Now())
	if err != nil {
		return nil, err
	}
	r.logger.Info("filtered emails", "path", r.path, "new", len(emails))
	return emails, nil
}

func (r *MboxReceiver) read(ctx context.Context, reader *mboxlib.Reader, opts FetchOptions, now time.Time) ([]Email, error) {
	var emails []Email
	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msgReader, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mbox message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return nil, fmt.Errorf("mbox message %d read: %w", idx, err)
		}

		email, err := ParseRaw("", raw)
		if err != nil {
			r.logger.Warn("unparseable message, skipping", "index", idx, "error", err)
			continue
		}
		if !opts.accepts(email, now) {
			continue
		}
		emails = append(emails, email)
	}

	// Archives are not guaranteed to be chronological.
	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].Date.Before(emails[j].Date)
	})
	return limit(emails, opts.MaxResults), nil
}

func (r *MboxReceiver) Attachment(_ context.Context, _ Email, att Attachment) ([]byte, error) {
	return inlineAttachment(att)
}

func (r *MboxReceiver) Close() error {
	return nil
}
