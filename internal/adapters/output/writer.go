// Package output provides adapters for writing resolved version data.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/tagver/tagver/internal/domain"
)

// Format selects how a VersionDict is serialized.
type Format string

const (
	// FormatVersion writes the bare version string.
	FormatVersion Format = "version"

	// FormatJSON writes the full record as a JSON object.
	FormatJSON Format = "json"

	// FormatGo writes a generated, dependency-free Go source fragment
	// exposing the frozen record through a single accessor. The fragment
	// is a build artifact meant to replace live inspection in archives.
	FormatGo Format = "go"
)

// ParseFormat validates a format name supplied by flags.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatVersion, FormatJSON, FormatGo:
		return Format(name), nil
	}
	return "", fmt.Errorf("unknown output format %q (valid: version, json, go)", name)
}

// versionfileTemplate is the frozen source fragment. It must stay free of
// imports beyond what the accessor itself needs, so vendored copies build
// anywhere.
var versionfileTemplate = template.Must(template.New("versionfile").Parse(
	`// Code generated by tagver. DO NOT EDIT.

// Package version exposes the version that was resolved when this file was
// generated. It replaces live repository inspection in build artifacts.
package version

// VersionDict is the resolved version record.
type VersionDict struct {
	Version        string
	FullRevisionID string
	Dirty          bool
	Error          string
	Date           string
}

// GetVersionDict returns the version information frozen at generation time.
func GetVersionDict() VersionDict {
	return VersionDict{
		Version:        {{printf "%q" .Version}},
		FullRevisionID: {{printf "%q" .FullRevisionID}},
		Dirty:          {{.Dirty}},
		Error:          {{printf "%q" .Error}},
		Date:           {{printf "%q" .Date}},
	}
}
`))

// versionfileData flattens the nullable fields for the template.
type versionfileData struct {
	Version        string
	FullRevisionID string
	Dirty          bool
	Error          string
	Date           string
}

// Writer serializes resolved version data to the configured destination.
// By default it writes to stdout.
type Writer struct {
	out io.Writer
}

// NewWriter creates a Writer that writes to stdout.
func NewWriter() *Writer {
	return &Writer{out: os.Stdout}
}

// NewWriterWithOutput creates a Writer with a custom destination.
func NewWriterWithOutput(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Write serializes the record in the requested format.
func (w *Writer) Write(dict domain.VersionDict, format Format) error {
	switch format {
	case FormatVersion:
		_, err := fmt.Fprintln(w.out, dict.Version)
		return err
	case FormatJSON:
		data, err := json.Marshal(dict)
		if err != nil {
			return fmt.Errorf("marshal version record: %w", err)
		}
		_, err = fmt.Fprintln(w.out, string(data))
		return err
	case FormatGo:
		return versionfileTemplate.Execute(w.out, flatten(dict))
	}
	return fmt.Errorf("unknown output format %q", format)
}

func flatten(dict domain.VersionDict) versionfileData {
	data := versionfileData{Version: dict.Version}
	if dict.FullRevisionID != nil {
		data.FullRevisionID = *dict.FullRevisionID
	}
	if dict.Dirty != nil {
		data.Dirty = *dict.Dirty
	}
	if dict.Error != nil {
		data.Error = *dict.Error
	}
	if dict.Date != nil {
		data.Date = *dict.Date
	}
	return data
}
