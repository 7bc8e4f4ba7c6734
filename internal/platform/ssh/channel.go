// Package ssh implements the remote execution channel over SSH and SFTP.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
	"github.com/kubeboot/kubeboot/internal/config"
	"github.com/kubeboot/kubeboot/internal/util/retry"
)

const dialTimeout = 10 * time.Second

// Channel is an SSH-backed remote execution channel for one host.
// The key material is fixed at construction; individual calls only carry
// what to run or transfer.
type Channel struct {
	client   *ssh.Client
	hostName string
}

// NewFactory builds a channel factory for the configured SSH user and key.
// The private key is read and parsed once; each factory call dials one host.
func NewFactory(cfg *config.Config) (bootstrap.ChannelFactory, error) {
	keyBytes, err := os.ReadFile(config.ExpandPath(cfg.SSH.PrivateKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	clientConfig := &ssh.ClientConfig{
		User:            cfg.SSH.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // freshly provisioned hosts have no recorded host key yet
		Timeout:         dialTimeout,
	}
	port := strconv.Itoa(cfg.SSH.Port)

	return func(host bootstrap.Host) (bootstrap.RemoteChannel, error) {
		address := net.JoinHostPort(host.PublicAddress, port)
		client, err := ssh.Dial("tcp", address, clientConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", address, err)
		}
		return &Channel{client: client, hostName: host.Name}, nil
	}, nil
}

// Execute runs a command on the host. A command that runs and exits nonzero
// is reported through ExecResult with a nil error; only failures to run the
// command at all are errors.
//
// A cancelled ctx prevents the command from being dispatched, but once it is
// running on the host only the timeout can interrupt it: killing a kubeadm
// invocation halfway through leaves the node in an unknown state.
func (c *Channel) Execute(ctx context.Context, command string, timeout time.Duration) (*bootstrap.ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, c.transport(fmt.Errorf("command not dispatched: %w", err))
	}

	session, err := c.client.NewSession()
	if err != nil {
		return nil, c.transport(fmt.Errorf("failed to open session: %w", err))
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	waitCtx, cancel := execContext(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-waitCtx.Done():
		session.Close()
		return nil, c.transport(fmt.Errorf("command timed out: %w", waitCtx.Err()))
	case err = <-done:
	}

	result := &bootstrap.ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return result, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		result.ExitStatus = exitErr.ExitStatus()
		return result, nil
	}
	return nil, c.transport(fmt.Errorf("failed to run command: %w", err))
}

// execContext bounds a dispatched command by its timeout alone. The parent's
// cancellation is detached so an in-flight command drains instead of being
// force-killed when the run is cancelled.
func execContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if timeout <= 0 {
		return detached, func() {}
	}
	return context.WithTimeout(detached, timeout)
}

// Upload copies a local file or, with recursive set, a directory tree to the
// host. Missing remote parent directories are created.
func (c *Channel) Upload(ctx context.Context, localPath, remotePath string, recursive bool) error {
	client, err := sftp.NewClient(c.client)
	if err != nil {
		return c.transport(fmt.Errorf("failed to open sftp: %w", err))
	}
	defer client.Close()

	if !recursive {
		return c.uploadFile(ctx, client, localPath, remotePath)
	}

	return filepath.WalkDir(localPath, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return retry.Fatal(err)
		}
		rel, err := filepath.Rel(localPath, p)
		if err != nil {
			return retry.Fatal(err)
		}
		target := path.Join(remotePath, filepath.ToSlash(rel))
		if d.IsDir() {
			if err := client.MkdirAll(target); err != nil {
				return c.transport(fmt.Errorf("failed to create %s: %w", target, err))
			}
			return nil
		}
		return c.uploadFile(ctx, client, p, target)
	})
}

// Download copies a remote file or, with recursive set, a directory tree
// from the host.
func (c *Channel) Download(ctx context.Context, remotePath, localPath string, recursive bool) error {
	client, err := sftp.NewClient(c.client)
	if err != nil {
		return c.transport(fmt.Errorf("failed to open sftp: %w", err))
	}
	defer client.Close()

	if !recursive {
		return c.downloadFile(ctx, client, remotePath, localPath)
	}

	walker := client.Walk(remotePath)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			return c.transport(fmt.Errorf("failed to walk %s: %w", remotePath, err))
		}
		rel, err := filepath.Rel(remotePath, walker.Path())
		if err != nil {
			return retry.Fatal(err)
		}
		target := filepath.Join(localPath, rel)
		if walker.Stat().IsDir() {
			if err := os.MkdirAll(target, 0o700); err != nil {
				return retry.Fatal(fmt.Errorf("failed to create %s: %w", target, err))
			}
			continue
		}
		if err := c.downloadFile(ctx, client, walker.Path(), target); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying connection.
func (c *Channel) Close() error {
	return c.client.Close()
}

func (c *Channel) uploadFile(ctx context.Context, client *sftp.Client, localPath, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return c.transport(err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		// missing local files do not heal on retry
		return retry.Fatal(fmt.Errorf("failed to open %s: %w", localPath, err))
	}
	defer src.Close()

	if err := client.MkdirAll(path.Dir(remotePath)); err != nil {
		return c.transport(fmt.Errorf("failed to create %s: %w", path.Dir(remotePath), err))
	}

	dst, err := client.Create(remotePath)
	if err != nil {
		return c.transport(fmt.Errorf("failed to create %s: %w", remotePath, err))
	}
	defer dst.Close()

	if _, err := dst.ReadFrom(src); err != nil {
		return c.transport(fmt.Errorf("failed to write %s: %w", remotePath, err))
	}
	if err := client.Chmod(remotePath, 0o700); err != nil {
		return c.transport(fmt.Errorf("failed to chmod %s: %w", remotePath, err))
	}
	return nil
}

func (c *Channel) downloadFile(ctx context.Context, client *sftp.Client, remotePath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return c.transport(err)
	}

	src, err := client.Open(remotePath)
	if err != nil {
		return c.transport(fmt.Errorf("failed to open %s: %w", remotePath, err))
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o700); err != nil {
		return retry.Fatal(fmt.Errorf("failed to create %s: %w", filepath.Dir(localPath), err))
	}

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return retry.Fatal(fmt.Errorf("failed to create %s: %w", localPath, err))
	}
	defer dst.Close()

	if _, err := src.WriteTo(dst); err != nil {
		return c.transport(fmt.Errorf("failed to read %s: %w", remotePath, err))
	}
	return nil
}

func (c *Channel) transport(err error) error {
	return &bootstrap.TransportError{Host: c.hostName, Err: err}
}
