// Package e2e exercises the engine against a real container runtime. The
// tests are skipped in -short mode and when no daemon is reachable, so the
// rest of the suite stays runnable on machines without Docker.
package e2e

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/harborworks/dockhand/pkg/engine"
	"github.com/harborworks/dockhand/pkg/sandbox"
)

const (
	// testImage is the default image for throwaway sandboxes.
	testImage = "alpine:3.20"
	// serverImage ships busybox httpd for the published-port test.
	serverImage = "busybox:1.36"
)

// env wraps an engine client with a per-run name prefix so concurrent or
// crashed runs never collide, and tracks every sandbox it creates for
// teardown.
type env struct {
	client *engine.Client

	mu      sync.Mutex
	created []string
}

// newEnv builds a client scoped to this run. The network name is shared
// across runs because the engine has no network removal operation.
func newEnv() (*env, error) {
	cfg := engine.Config{
		NamePrefix: "dockhand-e2e-" + randomSuffix(),
		Network:    "dockhand-e2e",
	}
	client, err := engine.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine client: %w", err)
	}
	return &env{client: client}, nil
}

// create provisions a sandbox and remembers its ID for cleanup.
func (e *env) create(ctx context.Context, cfg sandbox.Config) (*sandbox.Sandbox, error) {
	sb, err := e.client.Create(ctx, cfg)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.created = append(e.created, sb.ID)
	e.mu.Unlock()
	return sb, nil
}

// cleanup force-removes every sandbox this run created. Errors are ignored:
// tests that already deleted their sandbox leave nothing behind, and Delete
// tolerates absence.
func (e *env) cleanup(ctx context.Context) {
	e.mu.Lock()
	ids := append([]string(nil), e.created...)
	e.created = nil
	e.mu.Unlock()
	for _, id := range ids {
		_ = e.client.Delete(ctx, id, true)
	}
}

func randomSuffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random suffix: %v", err))
	}
	return hex.EncodeToString(b)
}

// waitForHTTP polls url until any HTTP response arrives or ctx expires. The
// status code does not matter; an answer proves the published port routes
// into the sandbox.
func waitForHTTP(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("no response from %s: %w (last error: %v)", url, ctx.Err(), err)
		case <-ticker.C:
		}
	}
}
