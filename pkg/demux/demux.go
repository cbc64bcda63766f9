// Package demux decodes the multiplexed stream format the container runtime
// uses for logs and non-TTY exec output: each frame is an 8-byte header
// (stream tag in byte 0, big-endian payload length in bytes 4-7) followed
// by the payload.
//
// Streams from TTY-enabled containers are not framed at all, so every entry
// point here degrades to raw text passthrough the moment the input stops
// looking like frames. Decoding never fails and never drops bytes.
package demux

import (
	"encoding/binary"
	"io"
)

// Kind identifies the stream a frame belongs to.
type Kind byte

const (
	Stdin  Kind = 0
	Stdout Kind = 1
	Stderr Kind = 2
)

const headerLen = 8

// maxFrameLen is the sanity cap for a single frame. Real frames top out
// around the runtime's 32KiB copy buffer; anything claiming to be larger
// is raw output whose first bytes merely resemble a header.
const maxFrameLen = 32 << 20

// Decode walks a complete buffer and concatenates every frame payload into
// a single string. A truncated header, an unknown stream tag, or a length
// running past the end of the buffer ends frame parsing and appends the
// remaining bytes verbatim.
func Decode(buf []byte) string {
	var out []byte
	for len(buf) > 0 {
		if len(buf) < headerLen {
			out = append(out, buf...)
			break
		}
		tag := buf[0]
		length := binary.BigEndian.Uint32(buf[4:headerLen])
		if tag > byte(Stderr) || length > maxFrameLen || int(length) > len(buf)-headerLen {
			out = append(out, buf...)
			break
		}
		out = append(out, buf[headerLen:headerLen+int(length)]...)
		buf = buf[headerLen+int(length):]
	}
	return string(out)
}

// Stream decodes frames incrementally. Write accepts chunks at arbitrary
// boundaries; complete payloads are handed to the emit callback as they
// arrive, partial frames are buffered until the rest shows up. Once the
// input turns out not to be framed, the stream permanently switches to raw
// passthrough. Callers must Flush after the final Write so a trailing
// partial frame is not lost.
type Stream struct {
	emit func(Kind, string)
	buf  []byte
	raw  bool
}

// NewStream returns a Stream delivering decoded text to emit. Raw
// passthrough is delivered as Stdout.
func NewStream(emit func(Kind, string)) *Stream {
	return &Stream{emit: emit}
}

var _ io.Writer = (*Stream)(nil)

// Write feeds the next chunk into the decoder. It never fails and always
// reports the full chunk consumed.
func (s *Stream) Write(p []byte) (int, error) {
	if s.raw {
		if len(p) > 0 {
			s.emit(Stdout, string(p))
		}
		return len(p), nil
	}
	s.buf = append(s.buf, p...)
	for len(s.buf) >= headerLen {
		tag := s.buf[0]
		length := binary.BigEndian.Uint32(s.buf[4:headerLen])
		if tag > byte(Stderr) || length > maxFrameLen {
			s.raw = true
			s.emit(Stdout, string(s.buf))
			s.buf = nil
			return len(p), nil
		}
		if len(s.buf) < headerLen+int(length) {
			break
		}
		if length > 0 {
			s.emit(Kind(tag), string(s.buf[headerLen:headerLen+int(length)]))
		}
		s.buf = s.buf[headerLen+int(length):]
	}
	return len(p), nil
}

// Flush emits whatever partial frame is still buffered as raw text. Called
// once the underlying stream has ended.
func (s *Stream) Flush() {
	if len(s.buf) > 0 {
		s.emit(Stdout, string(s.buf))
		s.buf = nil
	}
}

// Copy demultiplexes src into separate stdout and stderr writers, returning
// the number of payload bytes written. Stdin-tagged frames and raw
// passthrough go to stdout. The error is whatever the reader returned;
// decoding itself cannot fail.
func Copy(stdout, stderr io.Writer, src io.Reader) (int64, error) {
	var written int64
	var werr error
	s := NewStream(func(k Kind, text string) {
		if werr != nil {
			return
		}
		w := stdout
		if k == Stderr {
			w = stderr
		}
		n, err := w.Write([]byte(text))
		written += int64(n)
		werr = err
	})
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			s.Write(buf[:n])
			if werr != nil {
				return written, werr
			}
		}
		if err == io.EOF {
			s.Flush()
			return written, werr
		}
		if err != nil {
			s.Flush()
			return written, err
		}
	}
}
