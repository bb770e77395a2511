package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
	format string
}

// NewFormatter creates a new formatter. An empty format means JSON.
func NewFormatter(writer io.Writer, format string) *Formatter {
	if format == "" {
		format = FormatJSON
	}
	return &Formatter{
		writer: writer,
		format: format,
	}
}

// Encode writes v in the formatter's format.
func (f *Formatter) Encode(v any) error {
	data, err := Marshal(v, f.format)
	if err != nil {
		return err
	}
	_, err = f.writer.Write(data)
	return err
}

// FormatBlueprints formats a blueprint listing.
func (f *Formatter) FormatBlueprints(bs []BlueprintDTO) error {
	return f.Encode(bs)
}

// FormatProgram formats the flattened node list.
func (f *Formatter) FormatProgram(nodes []ExecutableDTO) error {
	return f.Encode(nodes)
}

// FormatIDs writes one execution id per line.
func (f *Formatter) FormatIDs(nodes []ExecutableDTO) error {
	for _, n := range nodes {
		if _, err := fmt.Fprintln(f.writer, n.ID); err != nil {
			return err
		}
	}
	return nil
}

// Marshal encodes v as indented JSON or YAML, ending in a newline. JSON map
// keys are sorted, so equal values always produce equal text.
func Marshal(v any, format string) ([]byte, error) {
	switch format {
	case "", FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var b strings.Builder
		enc := yaml.NewEncoder(&b)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		_ = enc.Close()
		return []byte(b.String()), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// Diff writes a line diff of a against b, prefixing removed lines with "-",
// added lines with "+" and unchanged lines with a space. It reports whether
// the inputs differ.
func Diff(w io.Writer, a, b string) (bool, error) {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	changed := false
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix, changed = "-", true
		case diffmatchpatch.DiffInsert:
			prefix, changed = "+", true
		case diffmatchpatch.DiffEqual:
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			if _, err := io.WriteString(w, prefix+strings.TrimSuffix(line, "\n")+"\n"); err != nil {
				return changed, err
			}
		}
	}
	return changed, nil
}
