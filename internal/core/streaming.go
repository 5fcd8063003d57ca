package core

import (
	"errors"
	"io"
	"unicode/utf8"
)

// ErrInvalidUTF8 indicates the stream contains bytes that are not valid
// UTF-8 encoded text.
var ErrInvalidUTF8 = errors.New("invalid UTF-8 byte sequence")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomSkipReader wraps r so that a leading UTF-8 byte order mark, if
// present, is consumed transparently. Exported files from spreadsheet
// tools frequently carry one.
type bomSkipReader struct {
	r       io.Reader
	checked bool
	pending []byte
}

func newBOMSkipReader(r io.Reader) *bomSkipReader {
	return &bomSkipReader{r: r}
}

func (b *bomSkipReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true

		head := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(b.r, head)
		if n > 0 {
			head = head[:n]
			if len(head) != len(utf8BOM) || head[0] != utf8BOM[0] ||
				head[1] != utf8BOM[1] || head[2] != utf8BOM[2] {
				b.pending = head
			}
		}
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return 0, err
		}
	}

	if len(b.pending) > 0 {
		n := copy(p, b.pending)
		b.pending = b.pending[n:]
		return n, nil
	}

	return b.r.Read(p)
}

// utf8Reader validates that the stream it wraps is well-formed UTF-8,
// returning ErrInvalidUTF8 on the first malformed sequence. Runes split
// across Read boundaries are buffered until complete.
type utf8Reader struct {
	r       io.Reader
	partial []byte
}

func newUTF8Reader(r io.Reader) *utf8Reader {
	return &utf8Reader{r: r}
}

func (u *utf8Reader) Read(p []byte) (int, error) {
	n, err := u.r.Read(p)
	if n > 0 {
		buf := append(u.partial, p[:n]...)
		valid := len(buf)

		// Trim a possibly incomplete rune at the tail before checking.
		for valid > 0 && valid > len(buf)-utf8.UTFMax {
			if r, _ := utf8.DecodeLastRune(buf[:valid]); r != utf8.RuneError {
				break
			}
			valid--
		}

		if !utf8.Valid(buf[:valid]) {
			return 0, ErrInvalidUTF8
		}

		u.partial = append(u.partial[:0], buf[valid:]...)
	}

	if err == io.EOF && len(u.partial) > 0 {
		return n, ErrInvalidUTF8
	}
	return n, err
}
