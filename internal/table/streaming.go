package table

// streaming.go cleans sheet bytes on the way into the CSV parser:
//
//   - a UTF-8 byte order mark written by spreadsheet exports is dropped
//   - invalid UTF-8 bytes become '?' so a stray Latin-1 cell does not abort
//     the whole sheet
//
// Both readers work on a fixed buffer and never hold the whole file.

import (
	"bufio"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM returns a reader positioned after a leading UTF-8 BOM, if any.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil &&
		head[0] == utf8BOM[0] && head[1] == utf8BOM[1] && head[2] == utf8BOM[2] {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// sanitizer replaces invalid UTF-8 bytes with '?'. A multi-byte sequence
// split across two reads is carried over in pending.
type sanitizer struct {
	r       io.Reader
	pending []byte
}

func (s *sanitizer) Read(p []byte) (int, error) {
	if len(p) < utf8.UTFMax {
		// Too small to guarantee progress on a split rune.
		return s.r.Read(p)
	}
	off := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[off:])
	n += off
	if n == 0 {
		return 0, err
	}
	atEOF := err == io.EOF

	w := 0
	for i := 0; i < n; {
		if p[i] < utf8.RuneSelf {
			p[w] = p[i]
			w++
			i++
			continue
		}
		if !atEOF && !utf8.FullRune(p[i:n]) {
			s.pending = append(s.pending, p[i:n]...)
			break
		}
		r, size := utf8.DecodeRune(p[i:n])
		if r == utf8.RuneError && size == 1 {
			p[w] = '?'
			w++
			i++
			continue
		}
		copy(p[w:], p[i:i+size])
		w += size
		i += size
	}
	if w == 0 && err == nil {
		// Only a partial rune so far; read again rather than return 0, nil.
		return s.Read(p)
	}
	return w, err
}

// cleanStream wraps r with BOM removal then UTF-8 sanitisation.
func cleanStream(r io.Reader) io.Reader {
	return &sanitizer{r: skipBOM(r), pending: make([]byte, 0, utf8.UTFMax)}
}
