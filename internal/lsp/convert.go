package lsp

import (
	"go.lsp.dev/protocol"

	"github.com/conduit-lang/graphql-lsp/internal/document"
	"github.com/conduit-lang/graphql-lsp/internal/session"
	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

func toProtocolPosition(pos tooling.Position) protocol.Position {
	return protocol.Position{
		Line:      uint32(pos.Line),
		Character: uint32(pos.Character),
	}
}

func toProtocolRange(r tooling.Range) protocol.Range {
	return protocol.Range{
		Start: toProtocolPosition(r.Start),
		End:   toProtocolPosition(r.End),
	}
}

func fromProtocolPosition(pos protocol.Position) tooling.Position {
	return tooling.Position{
		Line:      int(pos.Line),
		Character: int(pos.Character),
	}
}

func fromProtocolRange(r protocol.Range) tooling.Range {
	return tooling.Range{
		Start: fromProtocolPosition(r.Start),
		End:   fromProtocolPosition(r.End),
	}
}

// convertChanges converts content changes to document edits, keeping their
// order. A change without a range replaces the whole text.
func convertChanges(changes []contentChange) []document.Edit {
	edits := make([]document.Edit, 0, len(changes))
	for _, c := range changes {
		edit := document.Edit{Text: c.Text}
		if c.Range != nil {
			r := fromProtocolRange(*c.Range)
			edit.Range = &r
		}
		edits = append(edits, edit)
	}
	return edits
}

// convertDiagnostics converts tooling diagnostics to LSP diagnostics. The
// result is never nil so an empty list clears the client's markers.
func convertDiagnostics(diagnostics []tooling.Diagnostic) []protocol.Diagnostic {
	result := make([]protocol.Diagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		diag := protocol.Diagnostic{
			Range:    toProtocolRange(d.Range),
			Severity: convertSeverity(d.Severity),
			Source:   d.Source,
			Message:  d.Message,
		}
		if d.Code != "" {
			diag.Code = d.Code
		}
		if d.Code == "deprecated" {
			diag.Tags = []protocol.DiagnosticTag{protocol.DiagnosticTagDeprecated}
		}
		result = append(result, diag)
	}
	return result
}

// convertSeverity converts tooling diagnostic severity to LSP severity
func convertSeverity(severity tooling.DiagnosticSeverity) protocol.DiagnosticSeverity {
	switch severity {
	case tooling.DiagnosticSeverityError:
		return protocol.DiagnosticSeverityError
	case tooling.DiagnosticSeverityWarning:
		return protocol.DiagnosticSeverityWarning
	case tooling.DiagnosticSeverityInfo:
		return protocol.DiagnosticSeverityInformation
	case tooling.DiagnosticSeverityHint:
		return protocol.DiagnosticSeverityHint
	default:
		return protocol.DiagnosticSeverityError
	}
}

// completionKinds maps tooling completion kinds to LSP kinds. The mapping is
// one to one so resolve requests can map back.
var completionKinds = map[tooling.CompletionKind]protocol.CompletionItemKind{
	tooling.CompletionKindKeyword:   protocol.CompletionItemKindKeyword,
	tooling.CompletionKindType:      protocol.CompletionItemKindClass,
	tooling.CompletionKindField:     protocol.CompletionItemKindField,
	tooling.CompletionKindFragment:  protocol.CompletionItemKindReference,
	tooling.CompletionKindArgument:  protocol.CompletionItemKindVariable,
	tooling.CompletionKindEnumValue: protocol.CompletionItemKindEnumMember,
	tooling.CompletionKindDirective: protocol.CompletionItemKindFunction,
	tooling.CompletionKindSnippet:   protocol.CompletionItemKindSnippet,
}

// convertCompletionKind converts tooling completion kind to LSP kind
func convertCompletionKind(kind tooling.CompletionKind) protocol.CompletionItemKind {
	if k, ok := completionKinds[kind]; ok {
		return k
	}
	return protocol.CompletionItemKindText
}

// completionKindFrom maps an LSP kind back to the tooling kind.
func completionKindFrom(kind protocol.CompletionItemKind) (tooling.CompletionKind, bool) {
	for k, v := range completionKinds {
		if v == kind {
			return k, true
		}
	}
	return 0, false
}

func convertCompletionItem(c tooling.CompletionItem) protocol.CompletionItem {
	item := protocol.CompletionItem{
		Label:            c.Label,
		Kind:             convertCompletionKind(c.Kind),
		Detail:           c.Detail,
		Deprecated:       c.Deprecated,
		InsertTextFormat: protocol.InsertTextFormatPlainText,
	}
	if c.Deprecated {
		item.Tags = []protocol.CompletionItemTag{protocol.CompletionItemTagDeprecated}
	}
	if c.Documentation != "" {
		item.Documentation = protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: c.Documentation,
		}
	}
	if c.Data != nil {
		item.Data = c.Data
	}
	return item
}

func convertCompletionList(list *session.CompletionList) protocol.CompletionList {
	items := make([]protocol.CompletionItem, 0, len(list.Items))
	for _, c := range list.Items {
		items = append(items, convertCompletionItem(c))
	}
	return protocol.CompletionList{
		IsIncomplete: false,
		Items:        items,
	}
}

func convertLocations(locations []tooling.Location) []protocol.Location {
	result := make([]protocol.Location, 0, len(locations))
	for _, loc := range locations {
		result = append(result, protocol.Location{
			URI:   protocol.DocumentURI(loc.URI),
			Range: toProtocolRange(loc.Range),
		})
	}
	return result
}

// convertCapabilities expresses the session capabilities as LSP server
// capabilities.
func convertCapabilities(caps session.Capabilities) protocol.ServerCapabilities {
	change := protocol.TextDocumentSyncKindFull
	switch caps.TextDocumentSync {
	case session.SyncNone:
		change = protocol.TextDocumentSyncKindNone
	case session.SyncIncremental:
		change = protocol.TextDocumentSyncKindIncremental
	}

	return protocol.ServerCapabilities{
		TextDocumentSync: protocol.TextDocumentSyncOptions{
			OpenClose: true,
			Change:    change,
			Save: &protocol.SaveOptions{
				IncludeText: true,
			},
		},
		CompletionProvider: &protocol.CompletionOptions{
			ResolveProvider:   caps.CompletionProvider.ResolveProvider,
			TriggerCharacters: []string{"@", ".", "(", ":", "$"},
		},
		DefinitionProvider: caps.DefinitionProvider,
	}
}
