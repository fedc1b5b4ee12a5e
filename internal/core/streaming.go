package core

// streaming.go holds the io.Reader wrappers applied to delimited text before
// it reaches encoding/csv:
//
//   - bomReader drops a leading UTF-8 byte order mark written by Excel on Windows
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?' so odd encodings
//     still produce readable filenames
//   - LimitedReader counts bytes and fails once a size cap is crossed
//
// Use WrapDelimited to apply the text transforms in the right order.

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrFileTooLarge is returned by LimitedReader once more than its limit has
// been read.
var ErrFileTooLarge = errors.New("file too large")

type utf8Sanitizer struct {
	r       io.Reader
	pending []byte // bytes of a rune split across reads
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	atEOF := err == io.EOF
	buf := p[:n]

	// Hold back an incomplete trailing rune for the next call.
	if !atEOF {
		if tail := splitRuneTail(buf); tail > 0 {
			s.pending = append(s.pending, buf[len(buf)-tail:]...)
			buf = buf[:len(buf)-tail]
			if len(buf) == 0 {
				return 0, err
			}
		}
	}

	if utf8.Valid(buf) {
		return len(buf), err
	}

	w := 0
	for r := 0; r < len(buf); {
		ch, size := utf8.DecodeRune(buf[r:])
		if ch == utf8.RuneError && size == 1 {
			buf[w] = '?'
			w++
			r++
			continue
		}
		w += copy(buf[w:], buf[r:r+size])
		r += size
	}
	return w, err
}

// splitRuneTail returns how many trailing bytes start a multi-byte rune that
// is not complete yet.
func splitRuneTail(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b&0xC0 == 0x80 {
			continue // continuation byte
		}
		if b < 0xC0 {
			return 0
		}
		want := 2
		switch {
		case b >= 0xF0:
			want = 4
		case b >= 0xE0:
			want = 3
		}
		if i < want {
			return i
		}
		return 0
	}
	return 0
}

type bomReader struct {
	r       io.Reader
	checked bool
	head    []byte
}

func (b *bomReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		var buf [3]byte
		n, err := io.ReadFull(b.r, buf[:])
		switch {
		case err == io.ErrUnexpectedEOF || err == io.EOF:
			// Short input; hand back whatever was read.
		case err != nil:
			return 0, err
		}
		if n == 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
			n = 0
		}
		b.head = append([]byte(nil), buf[:n]...)
	}

	if len(b.head) > 0 {
		c := copy(p, b.head)
		b.head = b.head[c:]
		return c, nil
	}
	return b.r.Read(p)
}

// WrapDelimited strips a BOM and then sanitizes UTF-8, in that order.
func WrapDelimited(r io.Reader) io.Reader {
	return newUTF8Sanitizer(&bomReader{r: r})
}

// LimitedReader counts bytes read and fails with ErrFileTooLarge once more
// than Limit bytes have been consumed. A Limit of zero or less disables the cap.
type LimitedReader struct {
	R     io.Reader
	Limit int64
	N     int64 // bytes read so far
}

// NewLimitedReader wraps r with a byte cap.
func NewLimitedReader(r io.Reader, limit int64) *LimitedReader {
	return &LimitedReader{R: r, Limit: limit}
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	n, err := l.R.Read(p)
	l.N += int64(n)
	if l.Limit > 0 && l.N > l.Limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, l.Limit)
	}
	return n, err
}
