// Package printer delivers saved attachments to a print-by-email address.
package printer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/priscillayouziqian/gmail-attachment-printer/internal/store"
)

// Options configures the outgoing SMTP connection and addresses.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	From     string // defaults to Username
	PrintTo  string
}

// Printer mails printable files to a printer's inbox.
type Printer struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Printer.
func New(opts Options, logger *slog.Logger) *Printer {
	if opts.From == "" {
		opts.From = opts.Username
	}
	return &Printer{opts: opts, logger: logger, now: time.Now}
}

var mimeTypes = map[string]string{
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"doc":  "application/msword",
}

// Printable returns the files a printer can take that were newly saved in
// this pass.
func Printable(files []store.Saved) []store.Saved {
	var out []store.Saved
	for _, f := range files {
		if f.Skipped {
			continue
		}
		if _, ok := mimeTypes[f.Type]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Print sends the printable subset of files in one message and returns how
// many were sent. Nothing is sent when no file qualifies.
func (p *Printer) Print(ctx context.Context, subject string, files []store.Saved) (int, error) {
	jobs := Printable(files)
	if len(jobs) == 0 {
		return 0, nil
	}

	msg, err := p.compose(subject, jobs)
	if err != nil {
		return 0, fmt.Errorf("compose print job: %w", err)
	}
	if err := p.send(ctx, msg); err != nil {
		return 0, err
	}

	p.logger.Info("print job sent", "to", p.opts.PrintTo, "files", len(jobs), "subject", subject)
	return len(jobs), nil
}

func (p *Printer) compose(subject string, jobs []store.Saved) ([]byte, error) {
	var h mail.Header
	h.SetDate(p.now())
	h.SetSubject("Print: " + subject)
	h.SetAddressList("From", []*mail.Address{{Address: p.opts.From}})
	h.SetAddressList("To", []*mail.Address{{Address: p.opts.PrintTo}})
	h.Set("X-Mailer", "gmail-attachment-printer")
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create inline: %w", err)
	}
	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	tw, err := iw.CreatePart(th)
	if err != nil {
		return nil, fmt.Errorf("create text part: %w", err)
	}
	var names []string
	for _, j := range jobs {
		names = append(names, j.Name)
	}
	if _, err := io.WriteString(tw, "Attached for printing:\r\n"+strings.Join(names, "\r\n")+"\r\n"); err != nil {
		return nil, fmt.Errorf("write text part: %w", err)
	}
	tw.Close()
	iw.Close()

	for _, j := range jobs {
		data, err := os.ReadFile(j.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", j.Name, err)
		}
		var ah mail.AttachmentHeader
		ah.SetContentType(mimeTypes[j.Type], nil)
		ah.SetFilename(j.Name)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("create attachment %s: %w", j.Name, err)
		}
		if _, err := aw.Write(data); err != nil {
			return nil, fmt.Errorf("write attachment %s: %w", j.Name, err)
		}
		if err := aw.Close(); err != nil {
			return nil, fmt.Errorf("close attachment %s: %w", j.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close message: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Printer) send(ctx context.Context, message []byte) error {
	addr := net.JoinHostPort(p.opts.Host, fmt.Sprintf("%d", p.opts.Port))
	dialer := &net.Dialer{Timeout: 30 * time.Second}

	var client *smtp.Client

	if p.opts.UseTLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: p.opts.Host}}
		conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("smtp tls dial %s: %w", addr, err)
		}
		client, err = smtp.NewClient(conn, p.opts.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp new client: %w", err)
		}
	} else {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("smtp dial %s: %w", addr, err)
		}
		client, err = smtp.NewClient(conn, p.opts.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp new client: %w", err)
		}
		// Try STARTTLS if available.
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: p.opts.Host}); err != nil {
				p.logger.Warn("STARTTLS failed, continuing without TLS", "error", err)
			}
		}
	}
	defer client.Close()

	if p.opts.Username != "" && p.opts.Password != "" {
		auth := smtp.PlainAuth("", p.opts.Username, p.opts.Password, p.opts.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(p.opts.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := client.Rcpt(p.opts.PrintTo); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	return client.Quit()
}
