package sheet

// streaming.go cleans CSV bytes on the way into encoding/csv:
//
//   - BOMSkippingReader drops a leading UTF-8 BOM written by Excel on Windows
//   - UTF8Sanitizer replaces invalid UTF-8 bytes with '?'
//
// Legacy exports from PLM tools are often Windows-1252; sanitizing keeps
// those rows readable instead of failing the whole file.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader skips the UTF-8 BOM if the stream starts with one.
type BOMSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: bufio.NewReader(r)}
}

func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head, err := b.r.Peek(len(utf8BOM))
		if err != nil && err != io.EOF {
			return 0, err
		}
		if bytes.Equal(head, utf8BOM) {
			b.r.Discard(len(utf8BOM))
		}
	}
	return b.r.Read(p)
}

// UTF8Sanitizer replaces each invalid UTF-8 byte with '?'. A multi-byte
// sequence split across underlying reads is held back until it completes.
type UTF8Sanitizer struct {
	r       io.Reader
	buf     []byte
	out     []byte
	pending []byte
	err     error
}

func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{r: r, buf: make([]byte, 4096)}
}

func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// fill reads one chunk and appends its sanitized bytes to out.
func (s *UTF8Sanitizer) fill() {
	n, err := s.r.Read(s.buf)
	data := append(s.pending, s.buf[:n]...)
	s.pending = nil
	s.err = err

	if err == nil {
		if tail := incompleteTail(data); tail > 0 {
			s.pending = append([]byte(nil), data[len(data)-tail:]...)
			data = data[:len(data)-tail]
		}
	}
	s.out = sanitize(data)
}

// sanitize rewrites data in place and returns it.
func sanitize(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return data[:write]
}

// incompleteTail returns how many trailing bytes start a multi-byte sequence
// that is not finished yet.
func incompleteTail(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b&0xC0 == 0x80 {
			continue
		}
		if b >= 0xC0 && seqLen(b) > i {
			return i
		}
		return 0
	}
	return 0
}

func seqLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// WrapForStreaming strips the BOM first, then sanitizes.
func WrapForStreaming(r io.Reader) io.Reader {
	return NewUTF8Sanitizer(NewBOMSkippingReader(r))
}
