// Package processor polls one account and turns each new message into saved
// attachments, an optional summary document and an optional print job.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/priscillayouziqian/gmail-attachment-printer/internal/config"
	"github.com/priscillayouziqian/gmail-attachment-printer/internal/dedup"
	"github.com/priscillayouziqian/gmail-attachment-printer/internal/extract"
	"github.com/priscillayouziqian/gmail-attachment-printer/internal/receiver"
	"github.com/priscillayouziqian/gmail-attachment-printer/internal/store"
	"github.com/priscillayouziqian/gmail-attachment-printer/internal/summary"
)

// Printer delivers saved files for printing.
type Printer interface {
	Print(ctx context.Context, subject string, files []store.Saved) (int, error)
}

// Report summarises one processed message.
type Report struct {
	Account     string        `yaml:"account"`
	ID          string        `yaml:"id"`
	From        string        `yaml:"from"`
	Subject     string        `yaml:"subject"`
	Date        time.Time     `yaml:"date"`
	Body        string        `yaml:"body"`
	Links       []string      `yaml:"links"`
	Attachments []store.Saved `yaml:"attachments"`
	Printed     int           `yaml:"printed"`
}

// Processor monitors one account.
type Processor struct {
	account     config.Account
	receiver    receiver.Receiver
	extractor   *extract.Extractor
	store       *store.Store
	printer     Printer
	tracker     *dedup.Tracker
	concurrency int
	logger      *slog.Logger
}

// Deps bundles the collaborators of a Processor. Printer may be nil.
type Deps struct {
	Receiver    receiver.Receiver
	Extractor   *extract.Extractor
	Store       *store.Store
	Printer     Printer
	Tracker     *dedup.Tracker
	Concurrency int
}

// New creates a Processor for the given account.
func New(acct config.Account, deps Deps, logger *slog.Logger) *Processor {
	if deps.Concurrency <= 0 {
		deps.Concurrency = 1
	}
	return &Processor{
		account:     acct,
		receiver:    deps.Receiver,
		extractor:   deps.Extractor,
		store:       deps.Store,
		printer:     deps.Printer,
		tracker:     deps.Tracker,
		concurrency: deps.Concurrency,
		logger:      logger.With("account", acct.Name),
	}
}

// Account returns the name of the monitored account.
func (p *Processor) Account() string {
	return p.account.Name
}

// Run polls the account on the configured interval until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("starting processor",
		"protocol", p.account.Protocol,
		"interval", p.account.CheckInterval(),
	)

	// Run immediately on start, then on interval.
	p.poll(ctx)

	ticker := time.NewTicker(p.account.CheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("processor stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Processor) poll(ctx context.Context) {
	if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
		p.logger.Error("poll failed", "error", err)
	}
}

// Poll fetches unprocessed messages once and processes them concurrently.
// A message that fails is logged, left unmarked and retried on the next
// poll; only successfully processed messages are reported.
func (p *Processor) Poll(ctx context.Context) ([]Report, error) {
	p.logger.Debug("polling")

	emails, err := p.receiver.Fetch(ctx, receiver.FetchOptions{
		SeenIDs:           p.tracker.Seen(),
		ProcessDays:       p.account.GetProcessDays(),
		From:              p.account.FromFilter,
		MaxResults:        p.account.GetMaxResults(),
		RequireAttachment: p.account.AttachmentRequired(),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if len(emails) == 0 {
		p.logger.Debug("no new emails")
		return nil, nil
	}
	p.logger.Info(fmt.Sprintf("found %d new email(s)", len(emails)))

	results := make([]*Report, len(emails))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, email := range emails {
		i, email := i, email
		g.Go(func() error {
			r, err := p.process(ctx, email)
			if err != nil {
				p.logger.Error("process failed", "msg_id", email.ID, "subject", email.Subject, "error", err)
				return nil
			}
			results[i] = &r
			return nil
		})
	}
	_ = g.Wait()

	var reports []Report
	for _, r := range results {
		if r != nil {
			reports = append(reports, *r)
		}
	}
	return reports, ctx.Err()
}

func (p *Processor) process(ctx context.Context, email receiver.Email) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	res := p.extractor.Extract(email.Parts)
	report := Report{
		Account: p.account.Name,
		ID:      email.ID,
		From:    email.From,
		Subject: email.Subject,
		Date:    email.Date,
		Body:    res.Body,
		Links:   res.Links,
	}

	dir, err := p.store.DateDir(email.Date)
	if err != nil {
		return Report{}, err
	}

	for _, att := range email.Attachments {
		saved, err := p.store.Save(ctx, dir, att.Filename, func(ctx context.Context) ([]byte, error) {
			return p.receiver.Attachment(ctx, email, att)
		})
		if err != nil {
			return Report{}, fmt.Errorf("save attachment: %w", err)
		}
		report.Attachments = append(report.Attachments, saved)
	}

	doc, ok, err := summary.Generate(dir, email.Subject, res.Body, res.Links)
	if err != nil {
		return Report{}, fmt.Errorf("generate summary: %w", err)
	}
	if ok {
		report.Attachments = append(report.Attachments, doc)
	}

	if p.printer != nil {
		n, err := p.printer.Print(ctx, email.Subject, report.Attachments)
		if err != nil {
			return Report{}, fmt.Errorf("print: %w", err)
		}
		report.Printed = n
	}

	names := make([]string, 0, len(report.Attachments))
	for _, s := range report.Attachments {
		names = append(names, s.Name)
	}
	if err := p.tracker.MarkProcessed(email.ID, names); err != nil {
		return Report{}, fmt.Errorf("mark processed: %w", err)
	}

	p.logger.Info("processed",
		"msg_id", email.ID,
		"subject", email.Subject,
		"files", len(report.Attachments),
		"links", len(report.Links),
		"printed", report.Printed,
	)
	return report, nil
}
