// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package layout

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sinkline/internal/event"
)

// segment is either literal text or a placeholder.
type segment struct {
	literal string
	field   string
	prop    string
}

// Text renders events through a placeholder template. Supported
// placeholders are {time}, {level}, {logger}, {message}, {template},
// {error}, {seq}, {properties} and {prop:name}.
type Text struct {
	segments   []segment
	timeFormat string
}

// NewText parses format. Unknown placeholders and unbalanced braces are
// rejected.
func NewText(format, timeFormat string) (*Text, error) {
	if format == "" {
		format = DefaultTextFormat
	}
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	segs, err := parseFormat(format)
	if err != nil {
		return nil, err
	}
	return &Text{segments: segs, timeFormat: timeFormat}, nil
}

func parseFormat(format string) ([]segment, error) {
	var segs []segment
	rest := format
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return nil, fmt.Errorf("layout format %q: unbalanced '}'", format)
			}
			segs = append(segs, segment{literal: rest})
			break
		}
		if open > 0 {
			if strings.IndexByte(rest[:open], '}') >= 0 {
				return nil, fmt.Errorf("layout format %q: unbalanced '}'", format)
			}
			segs = append(segs, segment{literal: rest[:open]})
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return nil, fmt.Errorf("layout format %q: unterminated placeholder", format)
		}
		name := rest[open+1 : open+closing]
		seg, err := placeholder(name)
		if err != nil {
			return nil, fmt.Errorf("layout format %q: %w", format, err)
		}
		segs = append(segs, seg)
		rest = rest[open+closing+1:]
	}
	return segs, nil
}

func placeholder(name string) (segment, error) {
	if key, ok := strings.CutPrefix(name, "prop:"); ok {
		if key == "" {
			return segment{}, fmt.Errorf("empty property name")
		}
		return segment{field: "prop", prop: key}, nil
	}
	switch name {
	case "time", "level", "logger", "message", "template", "error", "seq", "properties":
		return segment{field: name}, nil
	}
	return segment{}, fmt.Errorf("unknown placeholder {%s}", name)
}

// Render implements Layout.
func (t *Text) Render(ev *event.LogEvent) ([]byte, error) {
	var b strings.Builder
	for _, s := range t.segments {
		switch s.field {
		case "":
			b.WriteString(s.literal)
		case "time":
			b.WriteString(ev.Time.Format(t.timeFormat))
		case "level":
			b.WriteString(strings.ToUpper(ev.Level.String()))
		case "logger":
			b.WriteString(ev.LoggerName)
		case "message":
			b.WriteString(ev.Message)
		case "template":
			b.WriteString(ev.MessageTemplate)
		case "error":
			b.WriteString(ev.ErrorText())
		case "seq":
			b.WriteString(strconv.FormatUint(ev.Sequence, 10))
		case "properties":
			if len(ev.Properties) == 0 {
				continue
			}
			data, err := json.Marshal(ev.Properties)
			if err != nil {
				return nil, fmt.Errorf("marshal properties of event %d: %w", ev.Sequence, err)
			}
			b.Write(data)
		case "prop":
			if v, ok := ev.Property(s.prop); ok {
				fmt.Fprint(&b, v)
			}
		}
	}
	return []byte(b.String()), nil
}
