package agui

import (
	"bytes"
	"encoding/json"
	"log/slog"
)

// ExtractObjects finds every complete top-level JSON object in buf, left to
// right, and returns their raw spans along with the bytes that must be kept
// for the next call. Boundaries are found by counting braces outside of
// string literals; the spans themselves are not validated.
//
// When the buffer ends inside an object, rest starts at that object's opening
// brace. Otherwise rest is empty: anything after the last object that does not
// open a new one is noise (SSE prefixes, blank lines).
func ExtractObjects(buf []byte) (objects [][]byte, rest []byte) {
	pos := 0
	for {
		idx := bytes.IndexByte(buf[pos:], '{')
		if idx < 0 {
			return objects, nil
		}
		start := pos + idx

		end := matchObject(buf, start)
		if end < 0 {
			return objects, buf[start:]
		}

		objects = append(objects, buf[start:end+1])
		pos = end + 1
	}
}

// matchObject returns the index of the brace closing the object opened at
// start, or -1 when buf ends first.
func matchObject(buf []byte, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(buf); i++ {
		c := buf[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

// Scanner turns a fragmented byte stream into decoded JSON objects. It keeps
// the unconsumed tail between calls, so one Scanner must be used per stream.
type Scanner struct {
	buf []byte
}

// Feed appends chunk to the pending bytes and returns every object that is
// now complete. Spans that are not valid JSON objects are skipped.
func (s *Scanner) Feed(chunk []byte) []map[string]any {
	s.buf = append(s.buf, chunk...)

	spans, rest := ExtractObjects(s.buf)
	objects := decodeSpans(spans)

	// rest aliases s.buf, copy it so the old backing array can be released.
	s.buf = append([]byte(nil), rest...)

	return objects
}

// Flush processes whatever is still pending once the stream has ended.
func (s *Scanner) Flush() []map[string]any {
	if len(s.buf) == 0 {
		return nil
	}

	spans, rest := ExtractObjects(s.buf)
	if len(rest) > 0 {
		slog.Debug("Dropping incomplete object at end of stream", "bytes", len(rest))
	}
	s.buf = nil

	return decodeSpans(spans)
}

// Pending returns the number of bytes waiting for more input.
func (s *Scanner) Pending() int {
	return len(s.buf)
}

func decodeSpans(spans [][]byte) []map[string]any {
	var objects []map[string]any
	for _, span := range spans {
		var obj map[string]any
		if err := json.Unmarshal(span, &obj); err != nil {
			slog.Debug("Skipping malformed stream chunk", "error", err, "bytes", len(span))
			continue
		}
		if obj == nil {
			continue
		}
		objects = append(objects, obj)
	}
	return objects
}
