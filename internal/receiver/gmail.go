package receiver

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	stdmail "net/mail"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/priscillayouziqian/gmail-attachment-printer/internal/extract"
)

// GmailOptions holds the OAuth2 client and the refresh token obtained from a
// prior consent flow.
type GmailOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	RefreshToken string
}

// GmailReceiver fetches emails through the Gmail API.
type GmailReceiver struct {
	svc    *gmail.Service
	logger *slog.Logger
}

// NewGmail creates a Gmail API receiver. ctx is retained by the token source
// for refreshing access tokens.
func NewGmail(ctx context.Context, opts GmailOptions, logger *slog.Logger) (*GmailReceiver, error) {
	conf := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		RedirectURL:  opts.RedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: opts.RefreshToken})

	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return &GmailReceiver{svc: svc, logger: logger}, nil
}

func (r *GmailReceiver) Fetch(ctx context.Context, opts FetchOptions) ([]Email, error) {
	q := gmailQuery(opts)
	call := r.svc.Users.Messages.List("me").Q(q).Context(ctx)
	if opts.MaxResults > 0 {
		call = call.MaxResults(int64(opts.MaxResults))
	}
	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("gmail list %q: %w", q, err)
	}
	if len(res.Messages) == 0 {
		r.logger.Info("no messages matched", "query", q)
		return nil, nil
	}
	r.logger.Info("found messages", "query", q, "count", len(res.Messages))

	var emails []Email
	for _, m := range res.Messages {
		if opts.seen(m.Id) {
			continue
		}

		msg, err := r.svc.Users.Messages.Get("me", m.Id).Format("full").Context(ctx).Do()
		if err != nil {
			r.logger.Warn("gmail get failed", "msg_id", m.Id, "error", err)
			continue
		}
		emails = append(emails, emailFromGmail(msg))
	}

	r.logger.Info("filtered emails", "new", len(emails))
	return emails, nil
}

func (r *GmailReceiver) Attachment(ctx context.Context, email Email, att Attachment) ([]byte, error) {
	if att.Data != nil {
		return att.Data, nil
	}
	if att.ID == "" {
		return nil, errNoContent(att.Filename)
	}

	body, err := r.svc.Users.Messages.Attachments.Get("me", email.ID, att.ID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail attachment %s: %w", att.Filename, err)
	}
	data, err := decodeData(body.Data)
	if err != nil {
		return nil, fmt.Errorf("decode attachment %s: %w", att.Filename, err)
	}
	return data, nil
}

func (r *GmailReceiver) Close() error {
	return nil
}

// gmailQuery builds a Gmail search query such as
// "from:a@b.com has:attachment newer_than:7d".
func gmailQuery(opts FetchOptions) string {
	var terms []string
	if opts.From != "" {
		terms = append(terms, "from:"+opts.From)
	}
	if opts.RequireAttachment {
		terms = append(terms, "has:attachment")
	}
	if opts.ProcessDays > 0 {
		terms = append(terms, fmt.Sprintf("newer_than:%dd", opts.ProcessDays))
	}
	return strings.Join(terms, " ")
}

func emailFromGmail(msg *gmail.Message) Email {
	email := Email{ID: msg.Id}
	if msg.Payload == nil {
		return email
	}

	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "From":
			email.From = h.Value
		case "Subject":
			email.Subject = h.Value
		case "Date":
			if t, err := stdmail.ParseDate(h.Value); err == nil {
				email.Date = t
			}
		}
	}
	if email.Date.IsZero() && msg.InternalDate > 0 {
		email.Date = time.UnixMilli(msg.InternalDate)
	}

	email.Parts = payloadNodes(msg.Payload)
	email.Attachments = gmailAttachments(msg.Payload)
	return email
}

// payloadNodes returns the part-tree roots of a payload: its parts, or the
// payload itself for a single-part message.
func payloadNodes(p *gmail.MessagePart) []extract.PartNode {
	if len(p.Parts) == 0 {
		return []extract.PartNode{partNode(p)}
	}
	nodes := make([]extract.PartNode, 0, len(p.Parts))
	for _, child := range p.Parts {
		if child != nil {
			nodes = append(nodes, partNode(child))
		}
	}
	return nodes
}

func partNode(p *gmail.MessagePart) extract.PartNode {
	var node extract.PartNode
	if p.Body != nil {
		node.Payload = p.Body.Data
	}

	switch {
	case len(p.Parts) > 0 || strings.HasPrefix(p.MimeType, "multipart/"):
		node.Kind = extract.KindContainer
		for _, child := range p.Parts {
			if child != nil {
				node.Children = append(node.Children, partNode(child))
			}
		}
	case p.Filename != "":
		node.Kind = extract.KindOther
	case p.MimeType == "text/plain":
		node.Kind = extract.KindPlainText
	case p.MimeType == "text/html":
		node.Kind = extract.KindHTML
	default:
		node.Kind = extract.KindOther
	}
	return node
}

// gmailAttachments collects named parts anywhere in the payload tree.
func gmailAttachments(p *gmail.MessagePart) []Attachment {
	var out []Attachment
	if p.Filename != "" && p.Body != nil {
		att := Attachment{
			Filename: p.Filename,
			MIMEType: p.MimeType,
			ID:       p.Body.AttachmentId,
		}
		if att.ID == "" && p.Body.Data != "" {
			if data, err := decodeData(p.Body.Data); err == nil {
				att.Data = data
			}
		}
		if att.ID != "" || att.Data != nil {
			out = append(out, att)
		}
	}
	for _, child := range p.Parts {
		if child != nil {
			out = append(out, gmailAttachments(child)...)
		}
	}
	return out
}

// decodeData decodes Gmail's URL-safe base64, with or without padding.
func decodeData(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
