package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v4"

	"github.com/priscillayouziqian/gmail-attachment-printer/internal/extract"
	"github.com/priscillayouziqian/gmail-attachment-printer/internal/processor"
	"github.com/priscillayouziqian/gmail-attachment-printer/internal/receiver"
)

type rootOptions struct {
	configPath string
	dataDir    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "gmail-attachment-printer",
		Short:         "Save, summarise and print attachments from incoming mail",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to configuration file")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "directory for persistent data, overrides data_dir")

	root.AddCommand(newRunCmd(opts), newOnceCmd(opts), newParseCmd())
	return root
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll every account on its interval until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var wg sync.WaitGroup
			for _, p := range a.processors {
				p := p
				wg.Add(1)
				go func() {
					defer wg.Done()
					p.Run(ctx)
				}()
			}

			<-ctx.Done()
			a.logger.Info("shutting down, waiting for processors to finish...")

			// Force exit on second signal.
			go func() {
				sig := make(chan os.Signal, 1)
				signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
				<-sig
				a.logger.Warn("forced shutdown")
				os.Exit(1)
			}()

			wg.Wait()
			a.logger.Info("gmail-attachment-printer stopped")
			return nil
		},
	}
}

func newOnceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Process every account once and print a YAML report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			reports := []processor.Report{}
			var failed int
			for _, p := range a.processors {
				r, err := p.Poll(ctx)
				if err != nil {
					a.logger.Error("poll failed", "account", p.Account(), "error", err)
					failed++
				}
				reports = append(reports, r...)
			}

			out, err := yaml.Marshal(reports)
			if err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			if _, err := cmd.OutOrStdout().Write(out); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d account(s) failed", failed)
			}
			return nil
		},
	}
}

type parsed struct {
	ID          string    `yaml:"id"`
	From        string    `yaml:"from"`
	Subject     string    `yaml:"subject"`
	Date        time.Time `yaml:"date"`
	Body        string    `yaml:"body"`
	Links       []string  `yaml:"links"`
	Attachments []string  `yaml:"attachments"`
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file.eml>",
		Short: "Extract the body and media links from a saved message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read message: %w", err)
			}
			email, err := receiver.ParseRaw(filepath.Base(args[0]), raw)
			if err != nil {
				return err
			}

			res := extract.Extract(email.Parts)
			out := parsed{
				ID:          email.ID,
				From:        email.From,
				Subject:     email.Subject,
				Date:        email.Date,
				Body:        res.Body,
				Links:       res.Links,
				Attachments: []string{},
			}
			for _, att := range email.Attachments {
				out.Attachments = append(out.Attachments, att.Filename)
			}

			data, err := yaml.Marshal(out)
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
