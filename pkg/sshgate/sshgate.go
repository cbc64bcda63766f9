// Package sshgate exposes sandboxes over SSH: the username selects the
// sandbox, an interactive session lands in a shell inside it, and exec
// requests run one-shot commands and return their exit status.
package sshgate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
	gossh "golang.org/x/crypto/ssh"

	"github.com/harborworks/dockhand/pkg/bidi"
	"github.com/harborworks/dockhand/pkg/sandbox"
)

// Backend is the slice of the orchestrator the gateway needs.
type Backend interface {
	Exec(ctx context.Context, id string, cmd []string, opts sandbox.ExecOptions) (*sandbox.ExecResult, error)
	ExecInteractive(ctx context.Context, id string, opts sandbox.TerminalOptions) (sandbox.ExecSession, error)
}

type Server struct {
	srv     *ssh.Server
	backend Backend
	addr    string
}

type Config struct {
	Host        string
	Port        int
	HostKeyPath string
	// AuthorizedKeysPath restricts access to the listed public keys.
	// Empty accepts any client.
	AuthorizedKeysPath string
	IdleTimeout        time.Duration
	MaxTimeout         time.Duration
}

func DefaultConfig() Config {
	return Config{
		Host:        "0.0.0.0",
		Port:        2222,
		IdleTimeout: 30 * time.Minute,
		MaxTimeout:  2 * time.Hour,
	}
}

func (c Config) Validate() error {
	if net.ParseIP(c.Host) == nil {
		return fmt.Errorf("invalid host IP: %s", c.Host)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}

	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is not available: %w", c.Port, err)
	}
	ln.Close()

	if c.HostKeyPath != "" {
		if _, err := os.Stat(c.HostKeyPath); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("host key file not found: %s", c.HostKeyPath)
		}
	}

	if c.AuthorizedKeysPath != "" {
		if err := validateAuthorizedKeys(c.AuthorizedKeysPath); err != nil {
			return err
		}
	}

	if c.IdleTimeout < 0 {
		return errors.New("idle-timeout must be positive")
	}

	if c.MaxTimeout < 0 {
		return errors.New("max-timeout must be positive")
	}

	if c.MaxTimeout > 0 && c.IdleTimeout > 0 && c.IdleTimeout > c.MaxTimeout {
		return errors.New("idle-timeout cannot exceed max-timeout")
	}

	return nil
}

// validateAuthorizedKeys fails fast on an unreadable or unparsable keys
// file instead of silently locking every client out at auth time.
func validateAuthorizedKeys(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read authorized keys: %w", err)
	}
	rest := bytes.TrimSpace(data)
	if len(rest) == 0 {
		return fmt.Errorf("authorized keys file %s is empty", path)
	}
	for len(rest) > 0 {
		_, _, _, next, err := gossh.ParseAuthorizedKey(rest)
		if err != nil {
			return fmt.Errorf("invalid authorized key in %s: %w", path, err)
		}
		rest = bytes.TrimSpace(next)
	}
	return nil
}

func New(cfg Config, backend Backend) (*Server, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 2222
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s := &Server{backend: backend, addr: addr}

	opts := []ssh.Option{
		wish.WithAddress(addr),
		wish.WithIdleTimeout(cfg.IdleTimeout),
		wish.WithMaxTimeout(cfg.MaxTimeout),
		wish.WithMiddleware(logging.Middleware()),
	}
	if cfg.HostKeyPath != "" {
		opts = append(opts, wish.WithHostKeyPath(cfg.HostKeyPath))
	}
	if cfg.AuthorizedKeysPath != "" {
		opts = append(opts, wish.WithAuthorizedKeys(cfg.AuthorizedKeysPath))
	}

	srv, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	srv.Handler = s.handle

	s.srv = srv
	return s, nil
}

// handle routes one SSH session: a command runs one-shot, everything else
// gets an interactive shell.
func (s *Server) handle(sess ssh.Session) {
	id := sess.User()
	if cmd := sess.Command(); len(cmd) > 0 {
		s.runCommand(sess, id, cmd)
		return
	}
	s.runShell(sess, id)
}

func (s *Server) runCommand(sess ssh.Session, id string, cmd []string) {
	res, err := s.backend.Exec(sess.Context(), id, cmd, sandbox.ExecOptions{})
	if err != nil {
		fmt.Fprintf(sess.Stderr(), "exec failed: %v\n", err)
		sess.Exit(1)
		return
	}
	io.WriteString(sess, res.Output)
	sess.Exit(res.ExitCode)
}

func (s *Server) runShell(sess ssh.Session, id string) {
	ctx := sess.Context()

	opts := sandbox.TerminalOptions{}
	ptyReq, winCh, isPty := sess.Pty()
	if isPty {
		opts.Width = uint(ptyReq.Window.Width)
		opts.Height = uint(ptyReq.Window.Height)
		if ptyReq.Term != "" {
			opts.Env = map[string]string{"TERM": ptyReq.Term}
		}
	}

	session, err := s.backend.ExecInteractive(ctx, id, opts)
	if err != nil {
		fmt.Fprintf(sess.Stderr(), "failed to open sandbox terminal: %v\n", err)
		sess.Exit(1)
		return
	}
	defer session.Close()

	if isPty {
		// winCh is nil without a pty; ranging over it would never return.
		go func() {
			for win := range winCh {
				if win.Width > 0 && win.Height > 0 {
					session.Resize(ctx, uint(win.Width), uint(win.Height))
				}
			}
		}()
	}

	if err := bidi.New(sess, session).Wait(ctx); err != nil && ctx.Err() == nil {
		slog.Debug("terminal pipe ended", "id", id, "error", err)
	}

	exitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	code, err := session.ExitCode(exitCtx)
	if err != nil || code < 0 {
		code = 1
	}
	sess.Exit(code)
}

func (s *Server) Start() error {
	slog.Info("starting ssh gateway", "addr", s.addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down ssh gateway")
	return s.srv.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.addr
}
