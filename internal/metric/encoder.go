package metric

import (
	"errors"
	"fmt"

	"github.com/influxdata/line-protocol/v2/lineprotocol"

	"beatgrok/internal/grok"
)

// ErrEncode means a record cannot be represented in line protocol.
var ErrEncode = errors.New("line protocol encode failed")

// Encoder serializes records with millisecond timestamps. It is not safe
// for concurrent use; each file or stream worker owns one.
type Encoder struct {
	enc lineprotocol.Encoder
}

// NewEncoder returns an Encoder in strict mode.
func NewEncoder() *Encoder {
	e := &Encoder{}
	e.enc.SetLax(false)
	e.enc.SetPrecision(lineprotocol.Millisecond)
	return e
}

// Encode returns rec as one newline terminated line. The returned slice is
// only valid until the next call.
func (e *Encoder) Encode(rec Record) ([]byte, error) {
	e.enc.Reset()
	e.enc.ClearErr()

	if len(rec.Fields) == 0 {
		return nil, fmt.Errorf("%w: record has no fields", ErrEncode)
	}
	if rec.Time.IsZero() {
		// a zero time would be written without a timestamp
		return nil, fmt.Errorf("%w: record has no time", ErrEncode)
	}

	e.enc.StartLine(Measurement)
	for _, tag := range rec.Tags {
		if tag.Value == "" {
			// empty tag values are invalid line protocol
			continue
		}
		e.enc.AddTag(tag.Key, tag.Value)
	}
	for _, f := range rec.Fields {
		v, err := fieldValue(f)
		if err != nil {
			return nil, err
		}
		e.enc.AddField(f.Key, v)
	}
	e.enc.EndLine(rec.Time)

	if err := e.enc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return e.enc.Bytes(), nil
}

func fieldValue(f grok.Field) (lineprotocol.Value, error) {
	switch f.Value.Type {
	case grok.CastInteger:
		return lineprotocol.IntValue(f.Value.Int), nil
	case grok.CastFloat:
		v, ok := lineprotocol.FloatValue(f.Value.Float)
		if !ok {
			return lineprotocol.Value{}, fmt.Errorf("%w: field %s: invalid float %v", ErrEncode, f.Key, f.Value.Float)
		}
		return v, nil
	default:
		v, ok := lineprotocol.StringValue(f.Value.Text)
		if !ok {
			return lineprotocol.Value{}, fmt.Errorf("%w: field %s: invalid string", ErrEncode, f.Key)
		}
		return v, nil
	}
}
