package couchtest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	harnessImage = "couchdb:3"
	harnessUser  = "admin"
	harnessPass  = "admin"
	couchPort    = nat.Port("5984/tcp")

	readyTimeout = 60 * time.Second
)

// Harness runs a disposable CouchDB container for integration tests.
type Harness struct {
	// URL is the server base URL with admin credentials embedded.
	URL string

	client      *dockerclient.Client
	containerID string
}

// NewHarness starts CouchDB in Docker and registers cleanup on the test.
// Skipped unless COUCHMCP_DOCKER_TESTS=1.
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	if os.Getenv("COUCHMCP_DOCKER_TESTS") != "1" {
		t.Skip("set COUCHMCP_DOCKER_TESTS=1 to run docker-backed tests")
	}
	h, err := StartCouchDB(context.Background())
	if err != nil {
		t.Fatalf("start couchdb: %v", err)
	}
	t.Cleanup(func() { _ = h.Close(context.Background()) })
	return h
}

// StartCouchDB starts a throwaway CouchDB container bound to an ephemeral
// localhost port and waits until the server accepts requests.
// Uses the DOCKER_HOST env var or the default socket path.
func StartCouchDB(ctx context.Context) (*Harness, error) {
	cli, err := dockerclient.NewClientWithOpts(
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}

	// Best-effort pull; creation below fails anyway if the image is
	// genuinely absent.
	if reader, err := cli.ImagePull(ctx, harnessImage, image.PullOptions{}); err == nil {
		_, _ = io.Copy(io.Discard, reader)
		_ = reader.Close()
	}

	resp, err := cli.ContainerCreate(ctx,
		&container.Config{
			Image: harnessImage,
			Env: []string{
				"COUCHDB_USER=" + harnessUser,
				"COUCHDB_PASSWORD=" + harnessPass,
			},
			ExposedPorts: nat.PortSet{couchPort: struct{}{}},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				couchPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: ""}},
			},
		},
		nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}

	h := &Harness{client: cli, containerID: resp.ID}
	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = h.Close(ctx)
		return nil, fmt.Errorf("start container: %w", err)
	}

	hostPort, err := h.boundPort(ctx)
	if err != nil {
		_ = h.Close(ctx)
		return nil, err
	}
	h.URL = fmt.Sprintf("http://%s:%s@127.0.0.1:%s", harnessUser, harnessPass, hostPort)

	if err := h.waitReady(ctx); err != nil {
		_ = h.Close(ctx)
		return nil, err
	}
	return h, nil
}

// Close force-removes the container. Safe to call more than once.
func (h *Harness) Close(ctx context.Context) error {
	if h.containerID == "" {
		return nil
	}
	id := h.containerID
	h.containerID = ""
	err := h.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !dockerclient.IsErrNotFound(err) {
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

// boundPort retrieves the ephemeral host port. The binding can lag
// container start by a moment, so poll briefly.
func (h *Harness) boundPort(ctx context.Context) (string, error) {
	deadline := time.Now().Add(5 * time.Second)
	for {
		inspect, err := h.client.ContainerInspect(ctx, h.containerID)
		if err != nil {
			return "", fmt.Errorf("inspect container: %w", err)
		}
		if bindings := inspect.NetworkSettings.Ports[couchPort]; len(bindings) > 0 && bindings[0].HostPort != "" {
			return bindings[0].HostPort, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("no host binding for %s", couchPort)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// waitReady polls /_up until CouchDB reports healthy.
func (h *Harness) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(readyTimeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := http.Get(h.URL + "/_up")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("couchdb container not ready after %s", readyTimeout)
}
