package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// QuoteRules lists the locale phrases recognised when stripping a forwarded
// header block.
type QuoteRules struct {
	MarkerPhrases []string `yaml:"marker_phrases"`
	HeaderLabels  []string `yaml:"header_labels"`
}

// DefaultQuoteRules covers English and Simplified Chinese mail clients.
var DefaultQuoteRules = QuoteRules{
	MarkerPhrases: []string{"Forwarded message", "转发的邮件"},
	HeaderLabels: []string{
		"From", "Date", "Subject", "To", "Cc",
		"发件人", "日期", "主题", "收件人", "抄送",
	},
}

type scanState int

const (
	stateNormal scanState = iota
	stateSkipping
)

// Stripper removes the header block that follows a forwarded-message marker.
type Stripper struct {
	marker *regexp.Regexp
	header *regexp.Regexp
}

// NewStripper compiles rules into a Stripper.
func NewStripper(rules QuoteRules) (*Stripper, error) {
	markers := alternation(rules.MarkerPhrases)
	if markers == "" {
		return nil, fmt.Errorf("at least one marker phrase is required")
	}
	labels := alternation(rules.HeaderLabels)
	if labels == "" {
		return nil, fmt.Errorf("at least one header label is required")
	}

	marker, err := regexp.Compile(`(?i)^-+\s*(?:` + markers + `)\s*-+\s*$`)
	if err != nil {
		return nil, fmt.Errorf("compile marker pattern: %w", err)
	}
	header, err := regexp.Compile(`(?i)^(?:` + labels + `)[:：]`)
	if err != nil {
		return nil, fmt.Errorf("compile header pattern: %w", err)
	}
	return &Stripper{marker: marker, header: header}, nil
}

func alternation(phrases []string) string {
	quoted := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(p))
	}
	return strings.Join(quoted, "|")
}

var defaultStripper = mustStripper(DefaultQuoteRules)

func mustStripper(rules QuoteRules) *Stripper {
	s, err := NewStripper(rules)
	if err != nil {
		panic(err)
	}
	return s
}

// StripQuoted applies the default rules.
func StripQuoted(text string) string {
	return defaultStripper.Strip(text)
}

// Strip drops every forwarded-message marker line together with the blank
// and header lines directly below it. Text without a marker is returned
// unchanged; otherwise the result is trimmed.
func (s *Stripper) Strip(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	state := stateNormal
	stripped := false

	for _, line := range lines {
		switch state {
		case stateNormal:
			if s.marker.MatchString(line) {
				state = stateSkipping
				stripped = true
				continue
			}
		case stateSkipping:
			if strings.TrimSpace(line) == "" || s.header.MatchString(line) {
				continue
			}
			state = stateNormal
		}
		kept = append(kept, line)
	}

	if !stripped {
		return text
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
