package models

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Envelope paths. '@' starts a gjson modifier, hence the escape.
const (
	pathTimestamp      = `\@timestamp`
	pathHostname       = "host.name"
	pathMessage        = "message"
	pathContainer      = "container"
	pathContainerID    = "id"
	pathContainerName  = "name"
	pathContainerImage = "image.name"
)

// ParseEnvelope parses one shipper JSON line into a Message.
// It returns either a complete Message or an error, never both.
func ParseEnvelope(line []byte) (*Message, error) {
	if bytes.IndexByte(line, 0) >= 0 || !utf8.Valid(line) {
		return nil, fmt.Errorf("%w: line is not valid utf-8 text", ErrStreamCorrupt)
	}
	if !gjson.ValidBytes(line) {
		return nil, ErrMalformedJSON
	}

	root := gjson.ParseBytes(line)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformedJSON)
	}

	rawTS, err := requireString(root, pathTimestamp, "@timestamp")
	if err != nil {
		return nil, err
	}
	ts, err := ParseTimestamp(rawTS)
	if err != nil {
		return nil, err
	}

	hostname, err := requireString(root, pathHostname, pathHostname)
	if err != nil {
		return nil, err
	}
	if hostname == "" {
		// host is the one tag every record carries
		return nil, fmt.Errorf("%w: %s is empty", ErrMissingField, pathHostname)
	}

	text, err := requireString(root, pathMessage, pathMessage)
	if err != nil {
		return nil, err
	}

	container, err := parseContainer(root.Get(pathContainer))
	if err != nil {
		return nil, err
	}

	return &Message{
		Timestamp: ts,
		Hostname:  hostname,
		Message:   text,
		Container: container,
	}, nil
}

// parseContainer returns nil when the container object is absent.
func parseContainer(c gjson.Result) (*Container, error) {
	if !c.Exists() || c.Type == gjson.Null {
		return nil, nil
	}
	if !c.IsObject() {
		return nil, fmt.Errorf("%w: container is not an object", ErrMissingField)
	}

	id, err := requireString(c, pathContainerID, "container.id")
	if err != nil {
		return nil, err
	}

	return &Container{
		ID:    id,
		Name:  optionalString(c, pathContainerName),
		Image: optionalString(c, pathContainerImage),
	}, nil
}

func requireString(obj gjson.Result, path, name string) (string, error) {
	v := obj.Get(path)
	if !v.Exists() {
		return "", fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	if v.Type != gjson.String {
		return "", fmt.Errorf("%w: %s is not a string", ErrMissingField, name)
	}
	return v.Str, nil
}

// optionalString treats absent and non-string values alike.
func optionalString(obj gjson.Result, path string) string {
	v := obj.Get(path)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

// ParseTimestamp parses an RFC3339 timestamp into UTC. The 'T' and 'Z'
// separators are accepted in either case.
func ParseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.ToUpper(ts))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
	}
	return t.UTC(), nil
}
