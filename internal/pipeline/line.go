package pipeline

import (
	"bytes"
	"errors"

	"beatgrok/internal/grok"
	"beatgrok/internal/metric"
	"beatgrok/internal/models"
)

// ErrEmptyLine is the skip reason for blank input lines.
var ErrEmptyLine = errors.New("empty line")

// Outcome is what happened to one input line.
type Outcome int

const (
	// OutcomeRecord means a record was produced.
	OutcomeRecord Outcome = iota
	// OutcomeNoFields means the line parsed but nothing matched. No output.
	OutcomeNoFields
	// OutcomeSkip means the line failed and processing continues.
	OutcomeSkip
	// OutcomeAbort means the rest of the input cannot be trusted.
	OutcomeAbort
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecord:
		return "record"
	case OutcomeNoFields:
		return "no_fields"
	case OutcomeSkip:
		return "skip"
	case OutcomeAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Result is the outcome of processing one line.
type Result struct {
	Outcome Outcome
	// Message is set whenever the envelope parsed, even if a later stage failed
	Message *models.Message
	// Record is the encoded line, valid until the next Process call
	Record []byte
	// Err is the skip or abort reason
	Err error
}

// LineProcessor runs envelope parsing, extraction and encoding for one line
// at a time. The Ruleset is shared; the encoder is owned.
type LineProcessor struct {
	rules *grok.Ruleset
	enc   *metric.Encoder
}

// NewLineProcessor returns a processor using rules.
func NewLineProcessor(rules *grok.Ruleset) *LineProcessor {
	return &LineProcessor{
		rules: rules,
		enc:   metric.NewEncoder(),
	}
}

// Process handles one decoded line.
func (p *LineProcessor) Process(line []byte) Result {
	if len(bytes.TrimSpace(line)) == 0 {
		return Result{Outcome: OutcomeSkip, Err: ErrEmptyLine}
	}

	msg, err := models.ParseEnvelope(line)
	if err != nil {
		if models.IsFatal(err) {
			return Result{Outcome: OutcomeAbort, Err: err}
		}
		return Result{Outcome: OutcomeSkip, Err: err}
	}

	ex, err := p.rules.Extract(msg.Message)
	if err != nil {
		return Result{Outcome: OutcomeSkip, Message: msg, Err: err}
	}

	rec, ok := metric.Build(msg, ex)
	if !ok {
		return Result{Outcome: OutcomeNoFields, Message: msg}
	}

	encoded, err := p.enc.Encode(rec)
	if err != nil {
		return Result{Outcome: OutcomeSkip, Message: msg, Err: err}
	}
	return Result{Outcome: OutcomeRecord, Message: msg, Record: encoded}
}
