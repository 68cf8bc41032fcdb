package couchtest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Credentials of the admin user created in containers.
const (
	AdminUser     = "admin"
	AdminPassword = "abc123"
)

// Instance describes a running CouchDB server.
type Instance struct {
	Host     string
	Port     int
	Username string
	Password string

	container testcontainers.Container
}

// Terminate stops the container.
func (i *Instance) Terminate(ctx context.Context) error {
	return i.container.Terminate(ctx)
}

func (i *Instance) url() string {
	return fmt.Sprintf("http://%s:%s@%s:%d", i.Username, i.Password, i.Host, i.Port)
}

// StartCouchDB starts a single-node CouchDB container from image, e.g.
// "couchdb:3.3", and creates the system databases.
func StartCouchDB(ctx context.Context, image string) (*Instance, error) {
	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{"5984/tcp"},
		WaitingFor:   wait.ForHTTP("/").WithPort("5984/tcp").WithStartupTimeout(120 * time.Second),
		Env: map[string]string{
			"COUCHDB_USER":     AdminUser,
			"COUCHDB_PASSWORD": AdminPassword,
		},
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "start container")
	}
	host, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}
	mappedPort, err := container.MappedPort(ctx, "5984/tcp")
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(mappedPort.Port())
	if err != nil {
		return nil, err
	}
	inst := &Instance{
		Host:      host,
		Port:      port,
		Username:  AdminUser,
		Password:  AdminPassword,
		container: container,
	}
	for _, db := range []string{"_replicator", "_users", "_global_changes"} {
		if err = put(ctx, inst.url()+"/"+db, nil); err != nil {
			return nil, err
		}
	}
	if err = put(ctx, inst.url()+"/_node/nonode@nohost/_config/replicator/interval", strings.NewReader(`"1000"`)); err != nil {
		return nil, err
	}
	return inst, nil
}

func put(ctx context.Context, path string, body io.Reader) error {
	rq, err := http.NewRequestWithContext(ctx, http.MethodPut, path, body)
	if err != nil {
		return err
	}
	rq.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(rq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusPreconditionFailed:
		return nil
	}
	return errors.Errorf("failed to create %s: %s", path, resp.Status)
}
