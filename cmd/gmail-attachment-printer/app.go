package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/priscillayouziqian/gmail-attachment-printer/internal/config"
	"github.com/priscillayouziqian/gmail-attachment-printer/internal/dedup"
	"github.com/priscillayouziqian/gmail-attachment-printer/internal/extract"
	"github.com/priscillayouziqian/gmail-attachment-printer/internal/printer"
	"github.com/priscillayouziqian/gmail-attachment-printer/internal/processor"
	"github.com/priscillayouziqian/gmail-attachment-printer/internal/receiver"
	"github.com/priscillayouziqian/gmail-attachment-printer/internal/store"
)

// app holds one processor per account plus the receivers to close.
type app struct {
	logger     *slog.Logger
	processors []*processor.Processor
	receivers  []receiver.Receiver
}

func newApp(ctx context.Context, opts *rootOptions, logw io.Writer) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}

	logger := setupLogger(logw, cfg.LogLevel)
	logger.Info("gmail-attachment-printer starting", "accounts", len(cfg.Accounts))

	ext, err := extract.New(cfg.Quote)
	if err != nil {
		return nil, fmt.Errorf("quote rules: %w", err)
	}
	st, err := store.New(cfg.AttachmentDir, logger)
	if err != nil {
		return nil, err
	}

	var pr processor.Printer
	if p := cfg.Printer; p != nil {
		pr = printer.New(printer.Options{
			Host:     p.Host,
			Port:     p.Port,
			Username: p.Username,
			Password: p.Password,
			UseTLS:   p.UseTLS,
			From:     p.From,
			PrintTo:  p.PrintTo,
		}, logger)
	}

	a := &app{logger: logger}
	for _, acct := range cfg.Accounts {
		recv, err := newReceiver(ctx, acct, logger)
		if err != nil {
			logger.Error("failed to create receiver", "account", acct.Name, "error", err)
			continue
		}

		dedupFile := filepath.Join(cfg.DataDir, sanitize(acct.Name)+".jsonl")
		tracker, err := dedup.NewTracker(dedupFile)
		if err != nil {
			recv.Close()
			logger.Error("failed to create dedup tracker", "account", acct.Name, "error", err)
			continue
		}
		logger.Info("loaded dedup state", "account", acct.Name, "processed_count", tracker.Count())

		a.receivers = append(a.receivers, recv)
		a.processors = append(a.processors, processor.New(acct, processor.Deps{
			Receiver:    recv,
			Extractor:   ext,
			Store:       st,
			Printer:     pr,
			Tracker:     tracker,
			Concurrency: cfg.Concurrency,
		}, logger))
	}

	if len(a.processors) == 0 {
		return nil, fmt.Errorf("no usable accounts")
	}
	return a, nil
}

func (a *app) close() {
	for _, r := range a.receivers {
		if err := r.Close(); err != nil {
			a.logger.Warn("close receiver", "error", err)
		}
	}
}

func newReceiver(ctx context.Context, acct config.Account, logger *slog.Logger) (receiver.Receiver, error) {
	switch acct.Protocol {
	case config.ProtocolGmail:
		return receiver.NewGmail(ctx, receiver.GmailOptions{
			ClientID:     acct.Gmail.ClientID,
			ClientSecret: acct.Gmail.ClientSecret,
			RedirectURL:  acct.Gmail.RedirectURI,
			RefreshToken: acct.Gmail.RefreshToken,
		}, logger)
	case config.ProtocolPOP3:
		return receiver.NewPOP3(
			acct.Host, acct.Port,
			acct.Username, acct.Password,
			acct.UseTLS, logger,
		), nil
	case config.ProtocolIMAP:
		return receiver.NewIMAP(
			acct.Host, acct.Port,
			acct.Username, acct.Password,
			acct.UseTLS, acct.GetIMAPFolder(), logger,
		), nil
	case config.ProtocolMbox:
		return receiver.NewMbox(acct.MboxPath, logger), nil
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", acct.Protocol)
	}
}
