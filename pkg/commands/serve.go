package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/harborworks/dockhand/pkg/sshgate"
	"github.com/harborworks/dockhand/pkg/termws"
)

// Serve returns the CLI command that runs the sandbox servers: the
// WebSocket terminal endpoint and, when enabled, the SSH gateway.
func Serve() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the sandbox terminal and SSH servers",
		Flags: append(sandboxFlags(),
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Address to bind the HTTP server to",
				Value:   ":8080",
				Sources: cli.EnvVars("DOCKHAND_ADDR"),
			},
			&cli.IntFlag{
				Name:    "ssh-port",
				Usage:   "Port for the SSH gateway (0 disables it)",
				Sources: cli.EnvVars("DOCKHAND_SSH_PORT"),
			},
			&cli.StringFlag{
				Name:    "ssh-host",
				Usage:   "Host IP for the SSH gateway",
				Value:   "0.0.0.0",
				Sources: cli.EnvVars("DOCKHAND_SSH_HOST"),
			},
			&cli.StringFlag{
				Name:    "ssh-host-key",
				Usage:   "Path to the SSH host key (generated in memory when empty)",
				Sources: cli.EnvVars("DOCKHAND_SSH_HOST_KEY"),
			},
			&cli.StringFlag{
				Name:    "ssh-authorized-keys",
				Usage:   "Path to an authorized_keys file restricting SSH access",
				Sources: cli.EnvVars("DOCKHAND_SSH_AUTHORIZED_KEYS"),
			},
			&cli.DurationFlag{
				Name:    "ssh-idle-timeout",
				Usage:   "Idle timeout for SSH sessions",
				Value:   30 * time.Minute,
				Sources: cli.EnvVars("DOCKHAND_SSH_IDLE_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "ssh-max-timeout",
				Usage:   "Hard cap on SSH session length",
				Value:   2 * time.Hour,
				Sources: cli.EnvVars("DOCKHAND_SSH_MAX_TIMEOUT"),
			},
		),
		Action: runServe,
	}
}

func runServe(ctx context.Context, c *cli.Command) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("runtime is not reachable: %w", err)
	}
	if _, err := client.EnsureNetwork(ctx, ""); err != nil {
		return fmt.Errorf("failed to ensure sandbox network: %w", err)
	}

	terminals := termws.New(client)

	mux := http.NewServeMux()
	mux.Handle("/terminal/{id}", terminals)
	mux.Handle("/terminal", terminals)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := client.Health(r.Context()); err != nil {
			http.Error(w, "runtime unreachable", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "ok\n")
	})

	httpSrv := &http.Server{
		Addr:              c.String("addr"),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sshSrv *sshgate.Server
	if port := c.Int("ssh-port"); port > 0 {
		cfg := sshgate.Config{
			Host:               c.String("ssh-host"),
			Port:               port,
			HostKeyPath:        c.String("ssh-host-key"),
			AuthorizedKeysPath: c.String("ssh-authorized-keys"),
			IdleTimeout:        c.Duration("ssh-idle-timeout"),
			MaxTimeout:         c.Duration("ssh-max-timeout"),
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid ssh gateway config: %w", err)
		}
		if sshSrv, err = sshgate.New(cfg, client); err != nil {
			return fmt.Errorf("failed to create ssh gateway: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		slog.Info("http server listening", "addr", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()
	if sshSrv != nil {
		go func() {
			errCh <- sshSrv.Start()
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	terminals.Close()
	if sshSrv != nil {
		if err := sshSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("ssh gateway shutdown", "error", err)
		}
	}
	return httpSrv.Shutdown(shutdownCtx)
}
