package receiver

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAPReceiver fetches emails over IMAP/IMAPS.
type IMAPReceiver struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
	folder   string
	logger   *slog.Logger
}

// NewIMAP creates a new IMAP receiver.
func NewIMAP(host string, port int, username, password string, useTLS bool, folder string, logger *slog.Logger) *IMAPReceiver {
	if folder == "" {
		folder = "INBOX"
	}
	return &IMAPReceiver{
		host:     host,
		port:     port,
		username: username,
		password: password,
		useTLS:   useTLS,
		folder:   folder,
		logger:   logger,
	}
}

func (r *IMAPReceiver) Fetch(ctx context.Context, opts FetchOptions) ([]Email, error) {
	addr := net.JoinHostPort(r.host, fmt.Sprintf("%d", r.port))

	var client *imapclient.Client
	var err error

	if r.useTLS {
		client, err = imapclient.DialTLS(addr, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: r.host},
		})
	} else {
		client, err = imapclient.DialInsecure(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("imap connect %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Login(r.username, r.password).Wait(); err != nil {
		return nil, fmt.Errorf("imap login %s: %w", r.username, err)
	}
	defer client.Logout()

	if _, err := client.Select(r.folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", r.folder, err)
	}

	searchData, err := client.Search(searchCriteria(opts, time.Now()), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}

	seqNums := searchData.AllSeqNums()
	if len(seqNums) == 0 {
		r.logger.Info("no messages found in date range", "folder", r.folder)
		return nil, nil
	}
	r.logger.Info("found messages in date range", "count", len(seqNums))

	fetchOptions := &imap.FetchOptions{
		Envelope: true,
		BodySection: []*imap.FetchItemBodySection{
			{Peek: true},
		},
	}
	buffers, err := client.Fetch(imap.SeqSetNum(seqNums...), fetchOptions).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}

	var emails []Email
	for _, buf := range buffers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var msgID string
		if buf.Envelope != nil {
			msgID = buf.Envelope.MessageID
		}
		if msgID == "" {
			msgID = fmt.Sprintf("imap-%d-%s", buf.SeqNum, r.username)
		}
		if opts.seen(msgID) {
			continue
		}

		content := buf.FindBodySection(bodySection)
		if len(content) == 0 {
			r.logger.Warn("empty body, skipping", "msg_id", msgID)
			continue
		}

		email, err := ParseRaw(msgID, content)
		if err != nil {
			r.logger.Warn("unparseable message, skipping", "msg_id", msgID, "error", err)
			continue
		}
		if email.Date.IsZero() && buf.Envelope != nil {
			email.Date = buf.Envelope.Date
		}
		if !opts.accepts(email, time.Now()) {
			continue
		}
		emails = append(emails, email)
	}

	emails = limit(emails, opts.MaxResults)
	r.logger.Info("filtered emails", "new", len(emails))
	return emails, nil
}

// searchCriteria pushes the date and sender filters to the server.
func searchCriteria(opts FetchOptions, now time.Time) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{}
	if opts.ProcessDays > 0 {
		criteria.Since = now.AddDate(0, 0, -opts.ProcessDays)
	}
	if opts.From != "" {
		criteria.Header = []imap.SearchCriteriaHeaderField{
			{Key: "From", Value: opts.From},
		}
	}
	return criteria
}

func (r *IMAPReceiver) Attachment(_ context.Context, _ Email, att Attachment) ([]byte, error) {
	return inlineAttachment(att)
}

func (r *IMAPReceiver) Close() error {
	return nil
}
