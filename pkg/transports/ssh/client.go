package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// killDrainDelay bounds how long a killed remote command may hold the
// session open while its output drains.
const killDrainDelay = 5 * time.Second

// Client is an established SSH connection to one remote host.
type Client struct {
	conn *ssh.Client
	cfg  Config
}

// Dial connects to the host described by cfg.
func Dial(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientConfig, err := cfg.BuildClientConfig()
	if err != nil {
		return nil, err
	}

	conn, err := ssh.Dial("tcp", cfg.Address(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Address(), err)
	}

	return &Client{conn: conn, cfg: cfg}, nil
}

// Run executes a command on the remote host, streaming its combined
// stdout/stderr into output, and returns the remote exit code. Context
// cancellation kills the remote process.
func (c *Client) Run(ctx context.Context, command string, output io.Writer) (int, error) {
	session, err := c.conn.NewSession()
	if err != nil {
		return -1, fmt.Errorf("opening session: %w", err)
	}
	defer session.Close()

	session.Stdout = output
	session.Stderr = output

	if err := session.Start(command); err != nil {
		return -1, fmt.Errorf("starting remote command: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL) //nolint:errcheck
		session.Close()
		// Remote descendants can keep the channel busy after the kill;
		// give the drain a bounded window, then abandon the session.
		select {
		case <-done:
		case <-time.After(killDrainDelay):
		}
		return -1, ctx.Err()
	case err := <-done:
		if err == nil {
			return 0, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitStatus(), nil
		}
		return -1, fmt.Errorf("remote command failed: %w", err)
	}
}

// Upload copies a local file to remotePath with the given mode.
func (c *Client) Upload(localPath, remotePath string, mode os.FileMode) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer src.Close()

	client, err := sftp.NewClient(c.conn)
	if err != nil {
		return fmt.Errorf("opening sftp session: %w", err)
	}
	defer client.Close()

	dst, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", remotePath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("uploading %s: %w", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", remotePath, err)
	}

	if err := client.Chmod(remotePath, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", remotePath, err)
	}
	return nil
}

// Remove deletes a file on the remote host. Used for uploaded script
// cleanup; a missing file is not an error.
func (c *Client) Remove(remotePath string) error {
	client, err := sftp.NewClient(c.conn)
	if err != nil {
		return fmt.Errorf("opening sftp session: %w", err)
	}
	defer client.Close()

	if err := client.Remove(remotePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
