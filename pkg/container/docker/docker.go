// Package docker drives containers through the Docker Engine API.
package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/go-logr/logr"
	"github.com/jacobweinstock/wpci/pkg/runopts"
	"github.com/pkg/errors"
)

type conn interface {
	client.ContainerAPIClient
	client.ImageAPIClient
}

// Client is a container runtime backed by the Docker Engine API.
type Client struct {
	Conn conn
	// RegistryAuth maps registry names to base64 encoded auth strings used for image pulls.
	RegistryAuth map[string]string
	Log          logr.Logger
}

func getRegistryAuth(regAuth map[string]string, imageName string) string {
	for reg, auth := range regAuth {
		if strings.HasPrefix(imageName, reg) {
			return auth
		}
	}
	return ""
}

// ListRunning returns the IDs of all running containers.
func (c *Client) ListRunning(ctx context.Context) ([]string, error) {
	list, err := c.Conn.ContainerList(ctx, types.ContainerListOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "unable to list containers")
	}
	ids := make([]string, 0, len(list))
	for _, elem := range list {
		ids = append(ids, elem.ID)
	}
	return ids, nil
}

// Inspect returns the raw inspect documents of ids joined into one JSON array,
// the same shape `docker inspect` prints. No ids gives "[]".
func (c *Client) Inspect(ctx context.Context, ids ...string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, id := range ids {
		_, raw, err := c.Conn.ContainerInspectWithRaw(ctx, id, false)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to inspect container %v", id)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(bytes.TrimSpace(raw))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// EnsureRunning creates and starts the container described by opts unless
// one with the same name is already running. The image is pulled only when
// it is not present locally.
func (c *Client) EnsureRunning(ctx context.Context, opts runopts.Options) error {
	running, err := c.Conn.ContainerList(ctx, types.ContainerListOptions{Filters: filters.NewArgs(filters.Arg("name", opts.NameFilter()))})
	if err != nil {
		return errors.Wrap(err, "unable to list containers")
	}
	if len(running) > 0 {
		c.Log.V(0).Info("container already running", "name", opts.Name, "id", running[0].ID)
		return nil
	}

	if _, _, err := c.Conn.ImageInspectWithRaw(ctx, opts.Image); err != nil {
		if !client.IsErrNotFound(err) {
			return errors.Wrapf(err, "unable to inspect image %v", opts.Image)
		}
		c.Log.V(0).Info("pulling image", "image", opts.Image)
		if err := c.pullImage(ctx, opts.Image, types.ImagePullOptions{RegistryAuth: getRegistryAuth(c.RegistryAuth, opts.Image)}); err != nil {
			return err
		}
	}

	resp, err := c.Conn.ContainerCreate(ctx, opts.ContainerConfig(), opts.HostConfig(), nil, nil, opts.Name)
	if err != nil {
		return errors.Wrapf(err, "unable to create container %v", opts.Name)
	}
	if len(resp.Warnings) > 0 {
		c.Log.V(0).Info("creating container resulted in the following warnings", "warnings", resp.Warnings)
	}
	if err := c.Conn.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return errors.Wrapf(err, "unable to start container %v", opts.Name)
	}
	c.Log.V(0).Info("container started", "name", opts.Name, "id", resp.ID)
	return nil
}

// Remove stops and removes the named container.
func (c *Client) Remove(ctx context.Context, name string) error {
	if err := c.Conn.ContainerStop(ctx, name, nil); err != nil {
		return errors.Wrapf(err, "unable to stop container %v", name)
	}
	if err := c.Conn.ContainerRemove(ctx, name, types.ContainerRemoveOptions{}); err != nil {
		return errors.Wrapf(err, "unable to remove container %v", name)
	}
	return nil
}

// Logs returns the stdout and stderr logs of the named container.
func (c *Client) Logs(ctx context.Context, name string) (string, error) {
	reader, err := c.Conn.ContainerLogs(ctx, name, types.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", errors.Wrapf(err, "unable to get logs for container %v", name)
	}
	defer reader.Close()
	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil {
		return buf.String(), errors.Wrapf(err, "unable to read logs for container %v", name)
	}
	return buf.String(), nil
}

// pullImage is what you would expect from a `docker pull` cli command
// pulls an image from a remote registry
func (c *Client) pullImage(ctx context.Context, image string, pullOpts types.ImagePullOptions) error {
	out, err := c.Conn.ImagePull(ctx, image, pullOpts)
	if err != nil {
		return errors.Wrapf(err, "error pulling image: %v", image)
	}
	defer out.Close()
	fd := json.NewDecoder(out)
	var imagePullStatus struct {
		Error string `json:"error"`
	}
	for {
		if err := fd.Decode(&imagePullStatus); err != nil {
			if err == io.EOF {
				break
			}
			return errors.Wrapf(err, "error pulling image: %v", image)
		}
		if imagePullStatus.Error != "" {
			return errors.Wrapf(errors.New(imagePullStatus.Error), "error pulling image: %v", image)
		}
	}
	return nil
}
