package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	MaxLineLen      = 4096
	DiskPortDefault = 7780
	FSPortDefault   = 7790
)

// Filesystem result codes.
const (
	RCOK    = 0
	RCFail  = 1
	RCError = 2
)

var (
	ErrMalformed     = errors.New("malformed request")
	ErrLineTooLong   = errors.New("line too long")
	ErrBadTerminator = errors.New("payload not terminated by newline")
)

// Reader frames a connection into newline-terminated command lines and
// exact-length binary payloads.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, MaxLineLen)}
}

// ReadLine returns the next line without its terminator. A line longer than
// MaxLineLen is consumed up to its newline and reported as ErrLineTooLong so
// the caller can answer it and keep serving. A final unterminated line is
// returned as-is; the following call reports io.EOF.
func (r *Reader) ReadLine() (string, error) {
	var (
		sb      strings.Builder
		tooLong bool
	)
	for {
		chunk, err := r.r.ReadSlice('\n')
		if !tooLong {
			if sb.Len()+len(chunk) > MaxLineLen+1 {
				tooLong = true
				sb.Reset()
			} else {
				sb.Write(chunk)
			}
		}

		switch {
		case err == nil:
			if tooLong {
				return "", ErrLineTooLong
			}
			return strings.TrimRight(sb.String(), "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if tooLong {
				return "", ErrLineTooLong
			}
			if sb.Len() > 0 {
				return strings.TrimRight(sb.String(), "\r\n"), nil
			}
			return "", io.EOF
		default:
			return "", err
		}
	}
}

// ReadPayload reads exactly n raw bytes followed by the mandatory newline.
func (r *Reader) ReadPayload(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, unexpected(err)
	}
	if err := r.readTerminator(); err != nil {
		return nil, err
	}
	return buf, nil
}

// DiscardPayload skips n raw bytes and the newline after them.
func (r *Reader) DiscardPayload(n int64) error {
	if _, err := io.CopyN(io.Discard, r.r, n); err != nil {
		return unexpected(err)
	}
	return r.readTerminator()
}

// ReadFull fills buf from the connection.
func (r *Reader) ReadFull(buf []byte) error {
	_, err := io.ReadFull(r.r, buf)
	return unexpected(err)
}

func (r *Reader) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	return b, unexpected(err)
}

func (r *Reader) readTerminator() error {
	b, err := r.r.ReadByte()
	if err != nil {
		return unexpected(err)
	}
	if b != '\n' {
		return ErrBadTerminator
	}
	return nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrMalformed}, args...)...)
}
