package bridge

import (
	"bytes"
	"errors"
	"io"
	"os"
)

// MaxLineLength caps how much unterminated input is buffered before the
// partial line is thrown away.
const MaxLineLength = 4096

var (
	errReadTimeout = errors.New("read timeout")
	errLineTooLong = errors.New("line too long")
)

// lineReader frames a serial byte stream into newline-terminated lines.
//
// go.bug.st/serial reports an expired read timeout as (0, nil), which
// bufio.Reader and bufio.Scanner both turn into io.ErrNoProgress after a few
// empty polls, so the framing is done here instead.
type lineReader struct {
	r   io.Reader
	buf []byte
	acc []byte
	err error

	// discarding is set while skipping the tail of an oversized line.
	discarding bool
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: r, buf: make([]byte, 256)}
}

// ReadLine returns the next line without its terminating '\n'. It returns
// errReadTimeout when the underlying read came back empty; the caller should
// simply try again.
func (l *lineReader) ReadLine() (string, error) {
	for {
		if i := bytes.IndexByte(l.acc, '\n'); i >= 0 {
			line := string(l.acc[:i])
			l.acc = append(l.acc[:0], l.acc[i+1:]...)
			if l.discarding {
				l.discarding = false
				continue
			}
			return line, nil
		}
		if len(l.acc) > MaxLineLength {
			l.acc = l.acc[:0]
			if !l.discarding {
				l.discarding = true
				return "", errLineTooLong
			}
		}
		if l.err != nil {
			return "", l.err
		}

		n, err := l.r.Read(l.buf)
		l.acc = append(l.acc, l.buf[:n]...)
		switch {
		case err != nil && isTimeout(err):
			if n == 0 {
				return "", errReadTimeout
			}
		case err != nil:
			// Hand out any complete lines before the error.
			l.err = err
		case n == 0:
			return "", errReadTimeout
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
