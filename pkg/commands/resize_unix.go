//go:build !windows

package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
)

// watchResize reports terminal size changes to fn until the returned stop
// function runs. The initial size is not reported.
func watchResize(tty *os.File, fn func(width, height uint)) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ch:
				size, err := pty.GetsizeFull(tty)
				if err != nil || size.Cols == 0 || size.Rows == 0 {
					continue
				}
				fn(uint(size.Cols), uint(size.Rows))
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
