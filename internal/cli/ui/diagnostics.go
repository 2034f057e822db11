package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// FormatDiagnostic renders a diagnostic in the file:line:column form editors
// and terminals link. Lines and columns are printed one-based.
func FormatDiagnostic(path string, d tooling.Diagnostic, noColor bool) string {
	severity := color.New(severityColor(d.Severity), color.Bold)
	location := color.New(color.Bold)
	gray := color.New(color.FgHiBlack)
	if noColor {
		severity.DisableColor()
		location.DisableColor()
		gray.DisableColor()
	}

	line := fmt.Sprintf("%s %s %s",
		location.Sprintf("%s:%d:%d:", path, d.Range.Start.Line+1, d.Range.Start.Character+1),
		severity.Sprintf("%s:", d.Severity),
		d.Message)
	if d.Code != "" {
		line += " " + gray.Sprintf("[%s]", d.Code)
	}
	return line
}

// WriteDiagnostics writes one line per diagnostic
func WriteDiagnostics(w io.Writer, path string, diagnostics []tooling.Diagnostic, noColor bool) {
	for _, d := range diagnostics {
		fmt.Fprintln(w, FormatDiagnostic(path, d, noColor))
	}
}

func severityColor(severity tooling.DiagnosticSeverity) color.Attribute {
	switch severity {
	case tooling.DiagnosticSeverityError:
		return color.FgRed
	case tooling.DiagnosticSeverityWarning:
		return color.FgYellow
	default:
		return color.FgCyan
	}
}
