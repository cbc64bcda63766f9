package sshgate

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gossh "golang.org/x/crypto/ssh"

	"github.com/harborworks/dockhand/pkg/netutil"
	"github.com/harborworks/dockhand/pkg/sandbox"
)

type fakeSession struct {
	outR *io.PipeReader
	outW *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
	resizes [][2]uint
	closed  bool

	exit int
}

func newFakeSession(exit int) *fakeSession {
	r, w := io.Pipe()
	return &fakeSession{outR: r, outW: w, exit: exit}
}

func (s *fakeSession) ID() string { return "exec123" }

func (s *fakeSession) Read(p []byte) (int, error) { return s.outR.Read(p) }

func (s *fakeSession) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written.Write(p)
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.outW.Close()
	return s.outR.Close()
}

func (s *fakeSession) CloseWrite() error { return nil }

func (s *fakeSession) Resize(_ context.Context, width, height uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resizes = append(s.resizes, [2]uint{width, height})
	return nil
}

func (s *fakeSession) ExitCode(_ context.Context) (int, error) { return s.exit, nil }

func (s *fakeSession) emit(text string) { io.WriteString(s.outW, text) }

func (s *fakeSession) closeOutput() { s.outW.Close() }

func (s *fakeSession) writtenString() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written.String()
}

func (s *fakeSession) sawResize(width, height uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.resizes {
		if r[0] == width && r[1] == height {
			return true
		}
	}
	return false
}

var _ sandbox.ExecSession = (*fakeSession)(nil)

type fakeBackend struct {
	mu       sync.Mutex
	execID   string
	execCmd  []string
	termID   string
	termOpts sandbox.TerminalOptions

	execRes *sandbox.ExecResult
	execErr error
	session *fakeSession
	termErr error
}

func (b *fakeBackend) Exec(_ context.Context, id string, cmd []string, _ sandbox.ExecOptions) (*sandbox.ExecResult, error) {
	b.mu.Lock()
	b.execID = id
	b.execCmd = append([]string(nil), cmd...)
	b.mu.Unlock()
	if b.execErr != nil {
		return nil, b.execErr
	}
	return b.execRes, nil
}

func (b *fakeBackend) ExecInteractive(_ context.Context, id string, opts sandbox.TerminalOptions) (sandbox.ExecSession, error) {
	b.mu.Lock()
	b.termID = id
	b.termOpts = opts
	b.mu.Unlock()
	if b.termErr != nil {
		return nil, b.termErr
	}
	return b.session, nil
}

func (b *fakeBackend) terminal() (string, sandbox.TerminalOptions) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.termID, b.termOpts
}

var _ Backend = (*fakeBackend)(nil)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func writeAuthorizedKeys(t *testing.T, keys int) string {
	t.Helper()
	var buf bytes.Buffer
	for i := 0; i < keys; i++ {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatalf("failed to generate key: %v", err)
		}
		sshPub, err := gossh.NewPublicKey(pub)
		if err != nil {
			t.Fatalf("failed to convert key: %v", err)
		}
		buf.Write(gossh.MarshalAuthorizedKey(sshPub))
	}
	path := filepath.Join(t.TempDir(), "authorized_keys")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("failed to write authorized keys: %v", err)
	}
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want 0.0.0.0", cfg.Host)
	}
	if cfg.Port != 2222 {
		t.Errorf("Port = %d, want 2222", cfg.Port)
	}
	if cfg.IdleTimeout != 30*time.Minute {
		t.Errorf("IdleTimeout = %v, want 30m", cfg.IdleTimeout)
	}
	if cfg.MaxTimeout != 2*time.Hour {
		t.Errorf("MaxTimeout = %v, want 2h", cfg.MaxTimeout)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T, cfg *Config)
		wantErr string
	}{
		{
			name:    "free port passes",
			mutate:  nil,
			wantErr: "",
		},
		{
			name: "hostname is not an IP",
			mutate: func(_ *testing.T, cfg *Config) {
				cfg.Host = "gateway.local"
			},
			wantErr: "invalid host IP",
		},
		{
			name: "port out of range",
			mutate: func(_ *testing.T, cfg *Config) {
				cfg.Port = 70000
			},
			wantErr: "invalid port",
		},
		{
			name: "negative idle timeout",
			mutate: func(_ *testing.T, cfg *Config) {
				cfg.IdleTimeout = -time.Second
			},
			wantErr: "idle-timeout must be positive",
		},
		{
			name: "idle exceeds max",
			mutate: func(_ *testing.T, cfg *Config) {
				cfg.IdleTimeout = 3 * time.Hour
				cfg.MaxTimeout = 2 * time.Hour
			},
			wantErr: "cannot exceed",
		},
		{
			name: "missing host key",
			mutate: func(t *testing.T, cfg *Config) {
				cfg.HostKeyPath = filepath.Join(t.TempDir(), "absent")
			},
			wantErr: "host key file not found",
		},
		{
			name: "authorized keys parse",
			mutate: func(t *testing.T, cfg *Config) {
				cfg.AuthorizedKeysPath = writeAuthorizedKeys(t, 2)
			},
			wantErr: "",
		},
		{
			name: "authorized keys garbage",
			mutate: func(t *testing.T, cfg *Config) {
				cfg.AuthorizedKeysPath = writeFile(t, "authorized_keys", "definitely not a key\n")
			},
			wantErr: "invalid authorized key",
		},
		{
			name: "authorized keys empty",
			mutate: func(t *testing.T, cfg *Config) {
				cfg.AuthorizedKeysPath = writeFile(t, "authorized_keys", "\n")
			},
			wantErr: "is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, err := netutil.FindFreePort()
			if err != nil {
				t.Fatalf("failed to find free port: %v", err)
			}
			cfg := Config{
				Host:        "127.0.0.1",
				Port:        port,
				IdleTimeout: 30 * time.Minute,
				MaxTimeout:  2 * time.Hour,
			}
			if tt.mutate != nil {
				tt.mutate(t, &cfg)
			}

			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidatePortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	cfg := Config{Host: "127.0.0.1", Port: port}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want port-in-use error")
	}
}

func TestNewRequiresBackend(t *testing.T) {
	if _, err := New(DefaultConfig(), nil); err == nil {
		t.Fatal("New() with nil backend = nil error, want error")
	}
}

func startTestServer(t *testing.T, backend Backend) string {
	t.Helper()
	port, err := netutil.FindFreePort()
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	srv, err := New(Config{Host: "127.0.0.1", Port: port}, backend)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	go srv.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv.Addr()
}

func dialSSH(t *testing.T, addr, user string) *gossh.Client {
	t.Helper()
	cfg := &gossh.ClientConfig{
		User:            user,
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         2 * time.Second,
	}
	var (
		client *gossh.Client
		err    error
	)
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		client, err = gossh.Dial("tcp", addr, cfg)
		if err == nil {
			t.Cleanup(func() { client.Close() })
			return client
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("failed to dial %s: %v", addr, err)
	return nil
}

func TestServerExec(t *testing.T) {
	backend := &fakeBackend{execRes: &sandbox.ExecResult{ExitCode: 0, Output: "on-main\n"}}
	addr := startTestServer(t, backend)
	client := dialSSH(t, addr, "sb-42")

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	defer sess.Close()

	out, err := sess.Output("git branch --show-current")
	if err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	if string(out) != "on-main\n" {
		t.Errorf("output = %q, want %q", out, "on-main\n")
	}

	backend.mu.Lock()
	gotID, gotCmd := backend.execID, backend.execCmd
	backend.mu.Unlock()
	if gotID != "sb-42" {
		t.Errorf("exec id = %q, want sb-42", gotID)
	}
	want := []string{"git", "branch", "--show-current"}
	if len(gotCmd) != len(want) {
		t.Fatalf("exec cmd = %v, want %v", gotCmd, want)
	}
	for i := range want {
		if gotCmd[i] != want[i] {
			t.Errorf("exec cmd[%d] = %q, want %q", i, gotCmd[i], want[i])
		}
	}
}

func TestServerExecExitCode(t *testing.T) {
	backend := &fakeBackend{execRes: &sandbox.ExecResult{ExitCode: 3, Output: "nope\n"}}
	addr := startTestServer(t, backend)
	client := dialSSH(t, addr, "sb-42")

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	defer sess.Close()

	out, err := sess.Output("make test")
	var exitErr *gossh.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Output() error = %v, want *ssh.ExitError", err)
	}
	if exitErr.ExitStatus() != 3 {
		t.Errorf("exit status = %d, want 3", exitErr.ExitStatus())
	}
	if string(out) != "nope\n" {
		t.Errorf("output = %q, want %q", out, "nope\n")
	}
}

func TestServerExecBackendError(t *testing.T) {
	backend := &fakeBackend{execErr: sandbox.ErrNotFound}
	addr := startTestServer(t, backend)
	client := dialSSH(t, addr, "gone")

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	defer sess.Close()

	var stderr bytes.Buffer
	sess.Stderr = &stderr

	err = sess.Run("ls")
	var exitErr *gossh.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Run() error = %v, want *ssh.ExitError", err)
	}
	if exitErr.ExitStatus() != 1 {
		t.Errorf("exit status = %d, want 1", exitErr.ExitStatus())
	}
	if !strings.Contains(stderr.String(), "exec failed") {
		t.Errorf("stderr = %q, want exec failure notice", stderr.String())
	}
}

func TestServerShell(t *testing.T) {
	fs := newFakeSession(7)
	backend := &fakeBackend{session: fs}
	addr := startTestServer(t, backend)
	client := dialSSH(t, addr, "sb-9")

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	defer sess.Close()

	if err := sess.RequestPty("xterm-256color", 40, 120, gossh.TerminalModes{}); err != nil {
		t.Fatalf("RequestPty() error: %v", err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatalf("StdinPipe() error: %v", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		t.Fatalf("StdoutPipe() error: %v", err)
	}
	if err := sess.Shell(); err != nil {
		t.Fatalf("Shell() error: %v", err)
	}

	waitFor(t, "terminal session", func() bool {
		id, _ := backend.terminal()
		return id == "sb-9"
	})
	_, opts := backend.terminal()
	if opts.Width != 120 || opts.Height != 40 {
		t.Errorf("terminal size = %dx%d, want 120x40", opts.Width, opts.Height)
	}
	if opts.Env["TERM"] != "xterm-256color" {
		t.Errorf("TERM = %q, want xterm-256color", opts.Env["TERM"])
	}

	if _, err := io.WriteString(stdin, "echo hi\n"); err != nil {
		t.Fatalf("failed to write stdin: %v", err)
	}
	waitFor(t, "stdin to reach sandbox", func() bool {
		return strings.Contains(fs.writtenString(), "echo hi\n")
	})

	fs.emit("hi\n")
	outCh := make(chan string, 1)
	go func() {
		var b strings.Builder
		buf := make([]byte, 64)
		for {
			n, err := stdout.Read(buf)
			b.Write(buf[:n])
			if strings.Contains(b.String(), "hi\n") || err != nil {
				outCh <- b.String()
				return
			}
		}
	}()
	select {
	case got := <-outCh:
		if !strings.Contains(got, "hi\n") {
			t.Errorf("shell output = %q, want to contain %q", got, "hi\n")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for shell output")
	}

	if err := sess.WindowChange(50, 200); err != nil {
		t.Fatalf("WindowChange() error: %v", err)
	}
	waitFor(t, "resize to reach sandbox", func() bool {
		return fs.sawResize(200, 50)
	})

	fs.closeOutput()
	errCh := make(chan error, 1)
	go func() { errCh <- sess.Wait() }()
	select {
	case err := <-errCh:
		var exitErr *gossh.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("Wait() error = %v, want *ssh.ExitError", err)
		}
		if exitErr.ExitStatus() != 7 {
			t.Errorf("exit status = %d, want 7", exitErr.ExitStatus())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for session exit")
	}

	waitFor(t, "session close", func() bool {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		return fs.closed
	})
}

func TestServerShellBackendError(t *testing.T) {
	backend := &fakeBackend{termErr: sandbox.ErrRuntimeUnavailable}
	addr := startTestServer(t, backend)
	client := dialSSH(t, addr, "sb-1")

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	defer sess.Close()

	var stderr bytes.Buffer
	sess.Stderr = &stderr

	err = sess.Run("")
	var exitErr *gossh.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Run() error = %v, want *ssh.ExitError", err)
	}
	if exitErr.ExitStatus() != 1 {
		t.Errorf("exit status = %d, want 1", exitErr.ExitStatus())
	}
	if !strings.Contains(stderr.String(), "failed to open sandbox terminal") {
		t.Errorf("stderr = %q, want terminal failure notice", stderr.String())
	}
}
