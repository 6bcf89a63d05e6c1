// Package pktline implements the pkt-line framing used by the git
// smart protocols.
// A packet is a 4-char hex length (which includes the length itself)
// followed by the payload. The special packet "0000", called a flush
// packet, carries no payload and separates the sections of a stream
// https://git-scm.com/docs/protocol-common#_pkt_line_format
package pktline

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/xerrors"
)

const (
	// lenSize is the size of the length prefix of a packet
	lenSize = 4

	// MaxPayloadSize is the maximum amount of data a single packet
	// can carry
	MaxPayloadSize = 65516
)

var (
	// ErrPayloadTooBig is returned when trying to write a payload
	// bigger than MaxPayloadSize
	ErrPayloadTooBig = errors.New("payload exceeds the maximum packet size")

	// ErrInvalidPktLen is returned when a packet has a length that
	// is either not valid hex or smaller than the prefix itself
	ErrInvalidPktLen = errors.New("invalid packet length")
)

// Writer writes pkt-line framed packets to an underlying writer
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer that frames everything it writes
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WritePacket writes a single packet containing the given payload
func (w *Writer) WritePacket(data []byte) error {
	if len(data) > MaxPayloadSize {
		return ErrPayloadTooBig
	}
	if _, err := fmt.Fprintf(w.w, "%04x", len(data)+lenSize); err != nil {
		return xerrors.Errorf("could not write packet length: %w", err)
	}
	if _, err := w.w.Write(data); err != nil {
		return xerrors.Errorf("could not write packet payload: %w", err)
	}
	return nil
}

// WriteString writes a single packet containing the given string
func (w *Writer) WriteString(s string) error {
	return w.WritePacket([]byte(s))
}

// Flush writes a flush packet
func (w *Writer) Flush() error {
	if _, err := io.WriteString(w.w, "0000"); err != nil {
		return xerrors.Errorf("could not write flush packet: %w", err)
	}
	return nil
}

// Reader reads pkt-line framed packets from an underlying reader
type Reader struct {
	r io.Reader
}

// NewReader returns a Reader that unframes the given stream
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadPacket reads the next packet of the stream.
// isFlush is set when the packet is a flush packet, in which case
// data is nil. io.EOF is returned once the stream is exhausted
func (r *Reader) ReadPacket() (data []byte, isFlush bool, err error) {
	prefix := make([]byte, lenSize)
	if _, err := io.ReadFull(r.r, prefix); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, false, io.EOF
		}
		return nil, false, xerrors.Errorf("could not read packet length: %w", err)
	}

	pktLen, err := parseLen(prefix)
	if err != nil {
		return nil, false, err
	}
	if pktLen == 0 {
		return nil, true, nil
	}
	if pktLen < lenSize {
		return nil, false, xerrors.Errorf("length %d is smaller than its own prefix: %w", pktLen, ErrInvalidPktLen)
	}

	data = make([]byte, pktLen-lenSize)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, false, xerrors.Errorf("could not read %d bytes of payload: %w", len(data), err)
	}
	return data, false, nil
}

// parseLen decodes the 4-char hex prefix of a packet
func parseLen(prefix []byte) (int, error) {
	pktLen := 0
	for _, c := range prefix {
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'a' && c <= 'f':
			v = int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v = int(c-'A') + 10
		default:
			return 0, xerrors.Errorf("%q is not valid hex: %w", string(prefix), ErrInvalidPktLen)
		}
		pktLen = pktLen<<4 | v
	}
	return pktLen, nil
}
