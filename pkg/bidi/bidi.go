// Package bidi copies data both ways between two duplex streams, as needed
// to splice a terminal transport (SSH channel, WebSocket) onto an exec
// session.
package bidi

import (
	"context"
	"io"
)

// Pipe manages bidirectional copying between two ReadWriteClosers.
type Pipe struct {
	a     io.ReadWriteCloser
	b     io.ReadWriteCloser
	errCh chan error
}

// New starts copying between a and b in both directions. When one
// direction's source reaches EOF, the destination's write side is
// half-closed if it supports that, so the far end sees EOF on its stdin
// while its output keeps flowing.
func New(a, b io.ReadWriteCloser) *Pipe {
	p := &Pipe{
		a:     a,
		b:     b,
		errCh: make(chan error, 2),
	}
	go p.run(a, b)
	go p.run(b, a)
	return p
}

func (p *Pipe) run(dst, src io.ReadWriteCloser) {
	_, err := io.Copy(dst, src)
	halfClose(dst)
	p.errCh <- err
}

// halfClose signals EOF on the write side without tearing down reads.
func halfClose(w io.Writer) {
	if cw, ok := w.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
	}
}

// Wait blocks until one direction completes or the context is canceled.
// A terminal session is over when its output side drains, so this is the
// wait interactive callers want. If the context is canceled, both streams
// are closed. Returns the first error encountered, or the context error.
func (p *Pipe) Wait(ctx context.Context) error {
	select {
	case err := <-p.errCh:
		return err
	case <-ctx.Done():
		p.Close()
		return ctx.Err()
	}
}

// WaitBoth blocks until both directions have drained, for transfers where
// data may still be in flight after the first side finishes. Returns the
// first error from either direction, or the context error.
func (p *Pipe) WaitBoth(ctx context.Context) error {
	var first error
	for i := 0; i < 2; i++ {
		select {
		case err := <-p.errCh:
			if err != nil && first == nil {
				first = err
			}
		case <-ctx.Done():
			p.Close()
			return ctx.Err()
		}
	}
	return first
}

// Close tears down both streams.
func (p *Pipe) Close() {
	p.a.Close()
	p.b.Close()
}
