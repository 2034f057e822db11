package tooling

import (
	"strings"
	"unicode/utf8"
)

// OffsetAt converts a position into a byte offset into text.
// Positions past the end of a line clamp to the line end and positions past
// the last line clamp to len(text).
func OffsetAt(text string, pos Position) int {
	if pos.Line < 0 {
		return 0
	}

	start := 0
	for line := 0; line < pos.Line; line++ {
		nl := strings.IndexByte(text[start:], '\n')
		if nl < 0 {
			return len(text)
		}
		start += nl + 1
	}

	offset := start
	units := 0
	for offset < len(text) && units < pos.Character {
		r, size := utf8.DecodeRuneInString(text[offset:])
		if r == '\n' || r == '\r' {
			break
		}
		units += utf16Len(r)
		offset += size
	}
	return offset
}

// PositionAt converts a byte offset into a position. Offsets are clamped to the text.
func PositionAt(text string, offset int) Position {
	if offset > len(text) {
		offset = len(text)
	}
	if offset < 0 {
		offset = 0
	}

	var pos Position
	lineStart := 0
	for i := 0; i < offset; i++ {
		if text[i] == '\n' {
			pos.Line++
			lineStart = i + 1
		}
	}
	for _, r := range text[lineStart:offset] {
		pos.Character += utf16Len(r)
	}
	return pos
}

// PositionFromRuneColumn converts the one-based line and rune column reported
// by the GraphQL lexer into a zero-based UTF-16 position.
func PositionFromRuneColumn(text string, line, column int) Position {
	if line < 1 {
		line = 1
	}
	if column < 1 {
		column = 1
	}

	lineText := LineAt(text, line-1)
	pos := Position{Line: line - 1}
	runes := 0
	for _, r := range lineText {
		if runes >= column-1 {
			break
		}
		pos.Character += utf16Len(r)
		runes++
	}
	// Columns past the line end (EOF errors) still move right one unit per rune.
	pos.Character += column - 1 - runes
	return pos
}

// LineAt returns the zero-based line of text without its terminator.
func LineAt(text string, line int) string {
	for i := 0; i < line; i++ {
		nl := strings.IndexByte(text, '\n')
		if nl < 0 {
			return ""
		}
		text = text[nl+1:]
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[:nl]
	}
	return strings.TrimSuffix(text, "\r")
}

func utf16Len(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}

// NameRangeAfter locates the first whole-word occurrence of name at or after
// the one-based line and rune column, typically a definition keyword such as
// "fragment" or "type" whose name follows. The zero range is returned when the
// name does not occur.
func NameRangeAfter(text string, line, column int, name string) (Range, bool) {
	if name == "" {
		return Range{}, false
	}

	from := OffsetAt(text, PositionFromRuneColumn(text, line, column))
	for from <= len(text) {
		idx := strings.Index(text[from:], name)
		if idx < 0 {
			return Range{}, false
		}
		start := from + idx
		end := start + len(name)
		if (start == 0 || !IsNameByte(text[start-1])) && (end == len(text) || !IsNameByte(text[end])) {
			return Range{Start: PositionAt(text, start), End: PositionAt(text, end)}, true
		}
		from = start + 1
	}
	return Range{}, false
}

// IsNameByte reports whether b may appear in a GraphQL name.
func IsNameByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
