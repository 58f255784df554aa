package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"

	"github.com/priscillayouziqian/gmail-attachment-printer/internal/extract"
)

// Supported account protocols.
const (
	ProtocolGmail = "gmail"
	ProtocolIMAP  = "imap"
	ProtocolPOP3  = "pop3"
	ProtocolMbox  = "mbox"
)

// Config is the top-level application configuration.
type Config struct {
	LogLevel      string             `yaml:"log_level"`
	DataDir       string             `yaml:"data_dir"`
	AttachmentDir string             `yaml:"attachment_dir"`
	Concurrency   int                `yaml:"concurrency"`
	Quote         extract.QuoteRules `yaml:"quote"`
	Printer       *SMTP              `yaml:"printer"`
	Accounts      []Account          `yaml:"accounts"`
}

// SMTP holds the outgoing mail server used to reach a print-by-email inbox.
type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"use_tls"`
	From     string `yaml:"from"`
	PrintTo  string `yaml:"print_to"`
}

// Gmail holds the OAuth2 client and refresh token for the Gmail API.
type Gmail struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	RefreshToken string `yaml:"refresh_token"`
}

// Account describes one monitored mailbox.
type Account struct {
	Name                 string `yaml:"name"`
	Protocol             string `yaml:"protocol"` // gmail, imap, pop3 or mbox
	Host                 string `yaml:"host"`
	Port                 int    `yaml:"port"`
	Username             string `yaml:"username"`
	Password             string `yaml:"password"`
	UseTLS               bool   `yaml:"use_tls"`
	IMAPFolder           string `yaml:"imap_folder"`
	MboxPath             string `yaml:"mbox_path"`
	FromFilter           string `yaml:"from_filter"`
	ProcessDays          int    `yaml:"process_days"`
	MaxResults           int    `yaml:"max_results"`
	CheckIntervalSeconds int    `yaml:"check_interval_seconds"`
	RequireAttachment    *bool  `yaml:"require_attachment"`
	Gmail                Gmail  `yaml:"gmail"`
}

// CheckInterval returns the check interval as a time.Duration.
func (a *Account) CheckInterval() time.Duration {
	if a.CheckIntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(a.CheckIntervalSeconds) * time.Second
}

// GetProcessDays returns the number of days to look back, defaulting to 7.
func (a *Account) GetProcessDays() int {
	if a.ProcessDays <= 0 {
		return 7
	}
	return a.ProcessDays
}

// GetMaxResults returns the per-poll message cap, defaulting to 10.
func (a *Account) GetMaxResults() int {
	if a.MaxResults <= 0 {
		return 10
	}
	return a.MaxResults
}

// GetIMAPFolder returns the IMAP folder name, defaulting to "INBOX".
func (a *Account) GetIMAPFolder() string {
	if a.IMAPFolder == "" {
		return "INBOX"
	}
	return a.IMAPFolder
}

// AttachmentRequired reports whether messages without attachments are
// ignored. It defaults to true.
func (a *Account) AttachmentRequired() bool {
	return a.RequireAttachment == nil || *a.RequireAttachment
}

// Load reads and parses a YAML configuration file. Variables from a .env file
// in the working directory, if present, are added to the environment, and
// ${VAR} references in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${NAME} with the value of NAME. Any other "$" is kept
// literally so secrets containing one survive.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}

// Parse expands environment references in data and decodes it.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		LogLevel:      "info",
		DataDir:       "data",
		AttachmentDir: "data/attachments",
		Concurrency:   4,
	}
	if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Quote.MarkerPhrases) == 0 {
		cfg.Quote.MarkerPhrases = extract.DefaultQuoteRules.MarkerPhrases
	}
	if len(cfg.Quote.HeaderLabels) == 0 {
		cfg.Quote.HeaderLabels = extract.DefaultQuoteRules.HeaderLabels
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if p := c.Printer; p != nil {
		if p.Host == "" {
			return fmt.Errorf("printer.host is required")
		}
		if p.Port == 0 {
			return fmt.Errorf("printer.port is required")
		}
		if p.PrintTo == "" {
			return fmt.Errorf("printer.print_to is required")
		}
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}
	names := make(map[string]struct{}, len(c.Accounts))
	for i, a := range c.Accounts {
		label := a.Name
		if label == "" {
			return fmt.Errorf("account #%d: name is required", i)
		}
		if _, dup := names[label]; dup {
			return fmt.Errorf("account %s: duplicate name", label)
		}
		names[label] = struct{}{}

		switch a.Protocol {
		case ProtocolGmail:
			if a.Gmail.ClientID == "" || a.Gmail.ClientSecret == "" || a.Gmail.RefreshToken == "" {
				return fmt.Errorf("account %s: gmail.client_id, gmail.client_secret and gmail.refresh_token are required", label)
			}
		case ProtocolIMAP, ProtocolPOP3:
			if a.Host == "" {
				return fmt.Errorf("account %s: host is required", label)
			}
			if a.Port == 0 {
				return fmt.Errorf("account %s: port is required", label)
			}
		case ProtocolMbox:
			if a.MboxPath == "" {
				return fmt.Errorf("account %s: mbox_path is required", label)
			}
		default:
			return fmt.Errorf("account %s: protocol must be gmail, imap, pop3 or mbox", label)
		}
	}
	return nil
}
