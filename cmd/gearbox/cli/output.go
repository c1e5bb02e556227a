// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"io"
	"os"
	"reflect"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// JSONOutput is embedded in a params struct to add a --json flag.
//
//	type statusParams struct {
//	    cli.JSONOutput
//	}
//
//	if done, err := params.EmitJSON(os.Stdout, status); done {
//	    return err
//	}
type JSONOutput struct {
	OutputJSON bool `flag:"json" desc:"output as JSON"`
}

// EmitJSON writes result as indented JSON to w if --json is set. It
// returns false when the caller should format text itself. Nil slices
// are written as [].
func (j *JSONOutput) EmitJSON(w io.Writer, result any) (bool, error) {
	if !j.OutputJSON {
		return false, nil
	}
	return true, WriteJSON(w, normalizeNilSlice(result))
}

// WriteJSON marshals value as indented JSON to w.
func WriteJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func normalizeNilSlice(value any) any {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Slice && v.IsNil() {
		return reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	return value
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// Highlight writes document to w, syntax-colored for language
// ("json", "yaml") when w is a terminal.
func Highlight(w io.Writer, document, language string) error {
	if !IsTerminal(w) {
		_, err := io.WriteString(w, document)
		return err
	}
	return quick.Highlight(w, document, language, "terminal256", "monokai")
}

// Styles used by human-readable command output.
var (
	HeadingStyle = lipgloss.NewStyle().Bold(true)
	LabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(14)
	GoodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Field renders one "label  value" line.
func Field(label, value string) string {
	return LabelStyle.Render(label) + value
}
