package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	pop3client "github.com/knadh/go-pop3"
)

// POP3Receiver fetches emails over POP3/POP3S.
type POP3Receiver struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
	logger   *slog.Logger
}

// NewPOP3 creates a new POP3 receiver.
func NewPOP3(host string, port int, username, password string, useTLS bool, logger *slog.Logger) *POP3Receiver {
	return &POP3Receiver{
		host:     host,
		port:     port,
		username: username,
		password: password,
		useTLS:   useTLS,
		logger:   logger,
	}
}

func (r *POP3Receiver) Fetch(ctx context.Context, opts FetchOptions) ([]Email, error) {
	addr := net.JoinHostPort(r.host, fmt.Sprintf("%d", r.port))

	client := pop3client.New(pop3client.Opt{
		Host:       r.host,
		Port:       r.port,
		TLSEnabled: r.useTLS,
	})
	conn, err := client.NewConn()
	if err != nil {
		return nil, fmt.Errorf("pop3 connect %s: %w", addr, err)
	}
	defer conn.Quit()

	if err := conn.Auth(r.username, r.password); err != nil {
		return nil, fmt.Errorf("pop3 auth %s: %w", r.username, err)
	}

	msgs, err := conn.List(0)
	if err != nil {
		return nil, fmt.Errorf("pop3 list: %w", err)
	}
	r.logger.Info("fetched message list", "count", len(msgs))

	now := time.Now()
	var emails []Email

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rawBuf, err := conn.RetrRaw(msg.ID)
		if err != nil {
			r.logger.Warn("pop3 retrieve failed", "msg_id", msg.ID, "error", err)
			continue
		}

		email, err := ParseRaw("", rawBuf.Bytes())
		if err != nil {
			r.logger.Warn("unparseable message, skipping", "msg_id", msg.ID, "error", err)
			continue
		}
		if email.ID == "" || isHashID(email.ID) {
			// No Message-ID: fall back to UIDL if available, otherwise sequence + username.
			if msg.UID != "" {
				email.ID = fmt.Sprintf("pop3-uid-%s-%s", msg.UID, r.username)
			} else {
				email.ID = fmt.Sprintf("pop3-%d-%s", msg.ID, r.username)
			}
		}

		if !opts.accepts(email, now) {
			continue
		}
		emails = append(emails, email)
	}

	emails = limit(emails, opts.MaxResults)
	r.logger.Info("filtered emails", "new", len(emails))
	return emails, nil
}

func (r *POP3Receiver) Attachment(_ context.Context, _ Email, att Attachment) ([]byte, error) {
	return inlineAttachment(att)
}

func (r *POP3Receiver) Close() error {
	return nil
}
