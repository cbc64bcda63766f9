package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/errdefs"

	"github.com/harborworks/dockhand/pkg/sandbox"
)

// pullEvent is one line of the runtime's pull progress stream.
type pullEvent struct {
	Status         string `json:"status"`
	Error          string `json:"error"`
	ProgressDetail struct {
		Current int64 `json:"current"`
		Total   int64 `json:"total"`
	} `json:"progressDetail"`
}

// PullImage pulls ref, reporting progress to fn as the layers download.
// fn may be nil.
func (c *Client) PullImage(ctx context.Context, ref string, fn sandbox.PullProgress) error {
	rc, err := c.docker.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("failed to pull image %s: %w: %w", ref, sandbox.ErrImageNotFound, err)
		}
		return fmt.Errorf("failed to pull image %s: %w", ref, classify(err))
	}
	defer rc.Close()

	dec := json.NewDecoder(rc)
	for {
		var ev pullEvent
		if err := dec.Decode(&ev); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to pull image %s: %w", ref, err)
		}
		if ev.Error != "" {
			if isImageMissing(ev.Error) {
				return fmt.Errorf("failed to pull image %s: %w: %s", ref, sandbox.ErrImageNotFound, ev.Error)
			}
			return fmt.Errorf("failed to pull image %s: %s", ref, ev.Error)
		}
		if fn != nil {
			fn(ev.Status, ev.ProgressDetail.Current, ev.ProgressDetail.Total)
		}
	}
	slog.Debug("pulled image", "ref", ref)
	return nil
}

// isImageMissing spots the registry's flavors of "no such image" inside a
// pull error line.
func isImageMissing(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "not found") ||
		strings.Contains(m, "manifest unknown") ||
		strings.Contains(m, "does not exist")
}

// ImageExists reports whether ref is present locally.
func (c *Client) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, err := c.docker.ImageInspect(ctx, ref)
	if errdefs.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to inspect image %s: %w", ref, classify(err))
	}
	return true, nil
}

// GetImage returns the local image for ref, or nil when it is not present.
func (c *Client) GetImage(ctx context.Context, ref string) (*sandbox.Image, error) {
	insp, err := c.docker.ImageInspect(ctx, ref)
	if errdefs.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to inspect image %s: %w", ref, classify(err))
	}

	img := &sandbox.Image{
		ID:   insp.ID,
		Tags: insp.RepoTags,
		Size: insp.Size,
	}
	if t, err := time.Parse(time.RFC3339Nano, insp.Created); err == nil {
		img.CreatedAt = t
	}
	return img, nil
}

// ListImages returns all images present in the runtime.
func (c *Client) ListImages(ctx context.Context) ([]sandbox.Image, error) {
	list, err := c.docker.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", classify(err))
	}
	out := make([]sandbox.Image, 0, len(list))
	for _, s := range list {
		out = append(out, sandbox.Image{
			ID:        s.ID,
			Tags:      s.RepoTags,
			Size:      s.Size,
			CreatedAt: time.Unix(s.Created, 0).UTC(),
		})
	}
	return out, nil
}

// RemoveImage deletes ref from the local store. Removing an absent image is
// a no-op.
func (c *Client) RemoveImage(ctx context.Context, ref string, force bool) error {
	_, err := c.docker.ImageRemove(ctx, ref, image.RemoveOptions{Force: force, PruneChildren: true})
	if errdefs.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to remove image %s: %w", ref, classify(err))
	}
	return nil
}
