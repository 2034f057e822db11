package document

import (
	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// Edit is one content change of a didChange notification. A nil Range
// replaces the whole document.
type Edit struct {
	Range *tooling.Range `json:"range,omitempty"`
	Text  string         `json:"text"`
}

// IsFull reports whether the edit replaces the whole document.
func (e Edit) IsFull() bool {
	return e.Range == nil
}

// ApplyEdits applies edits to base strictly in order. A full replacement
// discards everything before it and becomes the new base; later edits still
// apply on top of it.
func ApplyEdits(base string, edits []Edit) string {
	text := base
	for _, edit := range edits {
		if edit.IsFull() {
			text = edit.Text
			continue
		}
		text = applyRange(text, *edit.Range, edit.Text)
	}
	return text
}

// applyRange splices newText over r. Positions outside the document clamp to
// its bounds and a reversed range is normalized.
func applyRange(text string, r tooling.Range, newText string) string {
	start := tooling.OffsetAt(text, r.Start)
	end := tooling.OffsetAt(text, r.End)
	if end < start {
		start, end = end, start
	}
	return text[:start] + newText + text[end:]
}
