// Package metric turns parsed messages into line-protocol records.
package metric

import (
	"sort"
	"time"

	"beatgrok/internal/grok"
	"beatgrok/internal/models"
)

// Measurement is the single measurement every record is written to.
const Measurement = "metric"

// Tag and field names added from the envelope.
const (
	TagHost            = "host"
	TagContainerImage  = "container_image"
	FieldContainerName = "container_name"
)

// Tag is one record tag.
type Tag struct {
	Key   string
	Value string
}

// Record is one time-series point.
type Record struct {
	// Time is truncated to the millisecond
	Time time.Time
	// Tags are sorted by key
	Tags   []Tag
	Fields []grok.Field
}

// tag returns the value of a tag.
func (r Record) tag(key string) (string, bool) {
	for _, t := range r.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// field returns the value of a field.
func (r Record) field(key string) (grok.Value, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return grok.Value{}, false
}

// Build assembles the record for msg. It returns false when the extraction
// is empty: a message matching nothing produces no record.
func Build(msg *models.Message, ex grok.Extraction) (Record, bool) {
	if ex.Empty() {
		return Record{}, false
	}

	rec := Record{
		Time:   msg.Timestamp.Truncate(time.Millisecond),
		Tags:   []Tag{{Key: TagHost, Value: msg.Hostname}},
		Fields: make([]grok.Field, 0, len(ex.Fields)+2),
	}
	rec.Fields = append(rec.Fields, ex.Fields...)

	if ex.Label != "" {
		rec.Fields = append(rec.Fields, grok.Field{Key: grok.FieldWarriorAction, Value: grok.TextValue(ex.Label)})
	}

	if c := msg.Container; c != nil {
		if c.Image != "" {
			rec.Tags = append(rec.Tags, Tag{Key: TagContainerImage, Value: c.Image})
		}
		if c.Name != "" {
			rec.Fields = append(rec.Fields, grok.Field{Key: FieldContainerName, Value: grok.TextValue(c.Name)})
		}
	}

	sort.Slice(rec.Tags, func(i, j int) bool { return rec.Tags[i].Key < rec.Tags[j].Key })
	return rec, true
}
