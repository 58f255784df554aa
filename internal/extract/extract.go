package extract

// Result is the outcome of extracting one message.
type Result struct {
	Body  string   `yaml:"body"`
	Links []string `yaml:"links"`
}

// Extractor runs body selection, quote stripping and link extraction. It
// holds no mutable state and is safe for concurrent use.
type Extractor struct {
	stripper *Stripper
}

// New creates an Extractor using rules for quote stripping.
func New(rules QuoteRules) (*Extractor, error) {
	s, err := NewStripper(rules)
	if err != nil {
		return nil, err
	}
	return &Extractor{stripper: s}, nil
}

// Extract selects the body of roots, strips the forwarded header block and
// collects the links that remain.
func (e *Extractor) Extract(roots []PartNode) Result {
	body := e.stripper.Strip(SelectBody(roots))
	return Result{
		Body:  body,
		Links: ExtractLinks(body),
	}
}

// Extract runs an Extractor configured with DefaultQuoteRules.
func Extract(roots []PartNode) Result {
	return (&Extractor{stripper: defaultStripper}).Extract(roots)
}
