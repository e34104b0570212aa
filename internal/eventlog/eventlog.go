// Package eventlog decodes recorded orchestrator event logs for replay.
//
// Two layouts are accepted: JSON lines (one event object per line, blank
// lines and lines starting with '#' skipped) and a YAML list of events.
// A JSON line that does not decode is skipped and reported through
// MalformedError; the rest of the log is still returned.
package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/psantana5/buildtime-profiler/pkg/models"
)

// Format of an event log
type Format string

const (
	FormatJSONLines Format = "jsonl"
	FormatYAML      Format = "yaml"
)

const maxLine = 4 << 20

// FormatFor guesses the layout from a file name. Anything that is not
// .yaml/.yml is treated as JSON lines.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSONLines
	}
}

// ReadFile decodes the event log at path; "-" reads stdin as JSON lines
func ReadFile(path string) ([]models.Event, error) {
	if path == "-" {
		return Decode(os.Stdin, FormatJSONLines)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()
	return Decode(f, FormatFor(path))
}

// Decode reads every event from r
func Decode(r io.Reader, format Format) ([]models.Event, error) {
	switch format {
	case FormatYAML:
		return decodeYAML(r)
	case FormatJSONLines:
		return decodeJSONLines(r)
	default:
		return nil, fmt.Errorf("unsupported event log format %q", format)
	}
}

// LineError is one JSON line that could not be decoded
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// MalformedError lists the lines skipped while decoding a JSON lines log.
// The events decoded around them are returned alongside it.
type MalformedError struct {
	Lines []LineError
}

func (e *MalformedError) Error() string {
	if len(e.Lines) == 1 {
		return "malformed event log: " + e.Lines[0].Error()
	}
	return fmt.Sprintf("malformed event log: %d lines skipped, first %s", len(e.Lines), e.Lines[0].Error())
}

func decodeJSONLines(r io.Reader) ([]models.Event, error) {
	var events []models.Event
	var malformed []LineError
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		var e models.Event
		if err := json.Unmarshal(line, &e); err != nil {
			malformed = append(malformed, LineError{Line: lineNo, Err: err})
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("failed to read event log: %w", err)
	}
	if len(malformed) > 0 {
		return events, &MalformedError{Lines: malformed}
	}
	return events, nil
}

func decodeYAML(r io.Reader) ([]models.Event, error) {
	var events []models.Event
	if err := yaml.NewDecoder(r).Decode(&events); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode YAML event log: %w", err)
	}
	return events, nil
}

// Encoder writes events as JSON lines, the format ReadFile reads back
type Encoder struct {
	enc *json.Encoder
}

// NewEncoder creates a JSON lines encoder
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Encode writes one event followed by a newline
func (e *Encoder) Encode(event models.Event) error {
	return e.enc.Encode(event)
}
