//go:build windows

package commands

import (
	"os"
	"time"

	"golang.org/x/term"
)

// watchResize polls for terminal size changes; Windows has no SIGWINCH.
func watchResize(tty *os.File, fn func(width, height uint)) func() {
	done := make(chan struct{})

	go func() {
		fd := int(tty.Fd())
		lastW, lastH, _ := term.GetSize(fd)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				w, h, err := term.GetSize(fd)
				if err != nil || w <= 0 || h <= 0 {
					continue
				}
				if w != lastW || h != lastH {
					lastW, lastH = w, h
					fn(uint(w), uint(h))
				}
			}
		}
	}()

	return func() { close(done) }
}
