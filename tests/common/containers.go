// Package common provides shared container fixtures for storage tests.
// Each fixture starts at most one container per test process.
package common

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// serviceImage describes one backing service.
type serviceImage struct {
	name     string
	image    string
	port     nat.Port // e.g. "8000/tcp"
	cmd      []string
	readyLog string
}

// Container is a started service and its mapped endpoint.
type Container struct {
	container testcontainers.Container
	Host      string
	Port      string
}

// Cleanup terminates the container. Call from TestMain if needed.
func (c *Container) Cleanup() {
	if c != nil && c.container != nil {
		c.container.Terminate(context.Background())
	}
}

// sharedContainer starts svc once and hands the same container to every caller.
type sharedContainer struct {
	svc       serviceImage
	once      sync.Once
	container *Container
	err       error
}

func (s *sharedContainer) get(t *testing.T) *Container {
	t.Helper()
	s.once.Do(func() {
		s.container, s.err = start(context.Background(), s.svc)
	})
	if s.err != nil {
		t.Fatalf("%s container failed: %v", s.svc.name, s.err)
	}
	return s.container
}

func start(ctx context.Context, svc serviceImage) (*Container, error) {
	req := testcontainers.ContainerRequest{
		Image:        svc.image,
		ExposedPorts: []string{string(svc.port)},
		Cmd:          svc.cmd,
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(svc.port),
			wait.ForLog(svc.readyLog),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start %s container: %w", svc.name, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("get %s host: %w", svc.name, err)
	}

	mapped, err := container.MappedPort(ctx, svc.port)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("get %s port: %w", svc.name, err)
	}

	return &Container{container: container, Host: host, Port: mapped.Port()}, nil
}

var (
	surrealDB = &sharedContainer{svc: serviceImage{
		name:     "SurrealDB",
		image:    "surrealdb/surrealdb:v3.0.0",
		port:     "8000/tcp",
		cmd:      []string{"start", "--user", "root", "--pass", "root"},
		readyLog: "Started web server",
	}}
	redisDB = &sharedContainer{svc: serviceImage{
		name:     "Redis",
		image:    "redis:7-alpine",
		port:     "6379/tcp",
		readyLog: "Ready to accept connections",
	}}
)

// SurrealDBContainer is the shared SurrealDB instance (root/root credentials).
type SurrealDBContainer struct{ *Container }

// StartSurrealDB returns the shared SurrealDB container, starting it on first use.
func StartSurrealDB(t *testing.T) SurrealDBContainer {
	t.Helper()
	return SurrealDBContainer{surrealDB.get(t)}
}

// Address returns the WebSocket RPC address for SurrealDB.
func (c SurrealDBContainer) Address() string {
	return fmt.Sprintf("ws://%s:%s/rpc", c.Host, c.Port)
}

// RedisContainer is the shared Redis instance.
type RedisContainer struct{ *Container }

// StartRedis returns the shared Redis container, starting it on first use.
func StartRedis(t *testing.T) RedisContainer {
	t.Helper()
	return RedisContainer{redisDB.get(t)}
}

// Address returns host:port for go-redis.
func (c RedisContainer) Address() string {
	return c.Host + ":" + c.Port
}
