package metric

import (
	"testing"
	"time"

	"github.com/influxdata/line-protocol/v2/lineprotocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beatgrok/internal/grok"
	"beatgrok/internal/models"
)

var ts = time.Date(2021, 5, 3, 12, 34, 56, 789_654_321, time.UTC)

func message(text string, c *models.Container) *models.Message {
	return &models.Message{Timestamp: ts, Hostname: "warrior-01", Message: text, Container: c}
}

type decodedPoint struct {
	measurement string
	tags        map[string]string
	fields      map[string]lineprotocol.Value
	fieldOrder  []string
	time        time.Time
}

func decode(t *testing.T, line []byte) decodedPoint {
	t.Helper()

	dec := lineprotocol.NewDecoderWithBytes(line)
	require.True(t, dec.Next())

	m, err := dec.Measurement()
	require.NoError(t, err)
	p := decodedPoint{
		measurement: string(m),
		tags:        map[string]string{},
		fields:      map[string]lineprotocol.Value{},
	}
	for {
		k, v, err := dec.NextTag()
		require.NoError(t, err)
		if k == nil {
			break
		}
		p.tags[string(k)] = string(v)
	}
	for {
		k, v, err := dec.NextField()
		require.NoError(t, err)
		if k == nil {
			break
		}
		p.fields[string(k)] = v
		p.fieldOrder = append(p.fieldOrder, string(k))
	}
	p.time, err = dec.Time(lineprotocol.Millisecond, time.Time{})
	require.NoError(t, err)
	require.False(t, dec.Next(), "exactly one line")
	return p
}

func TestBuildSuppressesEmpty(t *testing.T) {
	_, ok := Build(message("chatter", nil), grok.Extraction{Rule: -1})
	assert.False(t, ok)
}

func TestBuildTagsAndFields(t *testing.T) {
	ex := grok.Extraction{
		Rule:   1,
		Fields: []grok.Field{{Key: grok.FieldStatusCode, Value: grok.IntValue(404)}},
		Label:  "queued_file",
	}
	msg := message("404=404 ", &models.Container{ID: "c1", Name: "grab-1", Image: "img:tag"})

	rec, ok := Build(msg, ex)
	require.True(t, ok)

	assert.Equal(t, time.Date(2021, 5, 3, 12, 34, 56, 789_000_000, time.UTC), rec.Time)
	assert.Equal(t, []Tag{{TagContainerImage, "img:tag"}, {TagHost, "warrior-01"}}, rec.Tags)
	assert.Equal(t, []grok.Field{
		{Key: grok.FieldStatusCode, Value: grok.IntValue(404)},
		{Key: grok.FieldWarriorAction, Value: grok.TextValue("queued_file")},
		{Key: FieldContainerName, Value: grok.TextValue("grab-1")},
	}, rec.Fields)
}

func TestBuildContainerImageWithoutName(t *testing.T) {
	ex := grok.Extraction{Rule: -1, Label: "queued_file"}
	rec, ok := Build(message("Queued file X", &models.Container{ID: "c1", Image: "img:tag"}), ex)
	require.True(t, ok)

	image, ok := rec.tag(TagContainerImage)
	assert.True(t, ok)
	assert.Equal(t, "img:tag", image)

	_, ok = rec.field(FieldContainerName)
	assert.False(t, ok)
}

func TestBuildContainerNameOnly(t *testing.T) {
	ex := grok.Extraction{Rule: -1, Label: "ip_check"}
	rec, ok := Build(message("Checking IP address", &models.Container{ID: "c1", Name: "n"}), ex)
	require.True(t, ok)

	_, ok = rec.tag(TagContainerImage)
	assert.False(t, ok)
	name, ok := rec.field(FieldContainerName)
	assert.True(t, ok)
	assert.Equal(t, grok.TextValue("n"), name)
}

func TestEncodeExactLine(t *testing.T) {
	ex := grok.Extraction{
		Rule:   1,
		Fields: []grok.Field{{Key: grok.FieldStatusCode, Value: grok.IntValue(404)}},
		Label:  "queued_file",
	}
	rec, ok := Build(message("404=404 ", &models.Container{ID: "c1", Image: "img:tag"}), ex)
	require.True(t, ok)

	line, err := NewEncoder().Encode(rec)
	require.NoError(t, err)

	assert.Equal(t,
		`metric,container_image=img:tag,host=warrior-01 status_code=404i,warrior_action="queued_file" 1620045296789`+"\n",
		string(line))
}

func TestEncodeTypedValues(t *testing.T) {
	rs := grok.DefaultRuleset()
	ex, err := rs.Extract("sent 1,234 bytes  received 5,678 bytes  9.9 bytes")
	require.NoError(t, err)

	rec, ok := Build(message("", &models.Container{ID: "c1", Name: `grab "one", two`, Image: "my image=1,2"}), ex)
	require.True(t, ok)

	line, err := NewEncoder().Encode(rec)
	require.NoError(t, err)

	p := decode(t, line)
	assert.Equal(t, Measurement, p.measurement)
	assert.Equal(t, map[string]string{"host": "warrior-01", "container_image": "my image=1,2"}, p.tags)
	assert.Equal(t, []string{"rsync_sent", "rsync_received", "rsync_throughput", "container_name"}, p.fieldOrder)

	for key, want := range map[string]float64{"rsync_sent": 1234, "rsync_received": 5678, "rsync_throughput": 9.9} {
		v := p.fields[key]
		assert.Equal(t, lineprotocol.Float, v.Kind(), key)
		assert.Equal(t, want, v.FloatV(), key)
	}
	assert.Equal(t, lineprotocol.String, p.fields["container_name"].Kind())
	assert.Equal(t, `grab "one", two`, p.fields["container_name"].StringV())
	assert.True(t, ts.Truncate(time.Millisecond).Equal(p.time), "time %v", p.time)
}

func TestEncodeIntegerKind(t *testing.T) {
	rs := grok.DefaultRuleset()
	ex, err := rs.Extract("404=404 ")
	require.NoError(t, err)
	rec, _ := Build(message("404=404 ", nil), ex)

	line, err := NewEncoder().Encode(rec)
	require.NoError(t, err)

	p := decode(t, line)
	assert.Equal(t, lineprotocol.Int, p.fields["status_code"].Kind())
	assert.Equal(t, int64(404), p.fields["status_code"].IntV())
}

func TestEncoderReuse(t *testing.T) {
	enc := NewEncoder()
	rs := grok.DefaultRuleset()

	first, _ := rs.Extract("Queued file a")
	second, _ := rs.Extract("Queued user b")
	r1, _ := Build(message("Queued file a", nil), first)
	r2, _ := Build(message("Queued user b", nil), second)

	l1, err := enc.Encode(r1)
	require.NoError(t, err)
	s1 := string(l1)
	l2, err := enc.Encode(r2)
	require.NoError(t, err)

	assert.Equal(t, `metric,host=warrior-01 warrior_action="queued_file" 1620045296789`+"\n", s1)
	assert.Equal(t, `metric,host=warrior-01 warrior_action="queued_user" 1620045296789`+"\n", string(l2))
}

func TestEncodeErrors(t *testing.T) {
	enc := NewEncoder()

	_, err := enc.Encode(Record{Time: ts, Tags: []Tag{{TagHost, "h"}}})
	assert.ErrorIs(t, err, ErrEncode)

	_, err = enc.Encode(Record{
		Time:   ts,
		Tags:   []Tag{{TagHost, "h"}},
		Fields: []grok.Field{{Key: "bad", Value: grok.TextValue("\xff")}},
	})
	assert.ErrorIs(t, err, ErrEncode)

	// the encoder recovers after a failed record
	line, err := enc.Encode(Record{
		Time:   ts,
		Tags:   []Tag{{TagHost, "h"}},
		Fields: []grok.Field{{Key: "ok", Value: grok.IntValue(1)}},
	})
	require.NoError(t, err)
	assert.Equal(t, "metric,host=h ok=1i 1620045296789\n", string(line))
}

func TestEncodeTimeOutOfRange(t *testing.T) {
	enc := NewEncoder()
	fields := []grok.Field{{Key: "ok", Value: grok.IntValue(1)}}

	tests := []struct {
		name string
		time time.Time
	}{
		{"zero", time.Time{}},
		{"before 1677", time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"after 2262", time.Date(2400, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Encode(Record{Time: tt.time, Tags: []Tag{{TagHost, "h"}}, Fields: fields})
			assert.ErrorIs(t, err, ErrEncode)
		})
	}
}
