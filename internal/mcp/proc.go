package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Options configures the server subprocess and the handshake.
type Options struct {
	// Command and Args launch the MCP server
	// (default: npx -y @modelcontextprotocol/server-github).
	Command string
	Args    []string

	// Env entries are appended to the current environment,
	// e.g. GITHUB_PERSONAL_ACCESS_TOKEN=....
	Env map[string]string

	// ClientName and ClientVersion are reported in the handshake.
	ClientName    string
	ClientVersion string
}

// process wraps the running MCP server subprocess.
type process struct {
	cmd *exec.Cmd
}

// Connect starts the MCP server subprocess, wires a client over its
// stdin/stdout and completes the initialize handshake. The returned client
// owns the subprocess; Close stops it.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	if opts.Command == "" {
		return nil, errors.New("mcp server command is required")
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mcp server %s: %w", opts.Command, err)
	}

	client := newClient(stdin, stdout)
	client.proc = &process{cmd: cmd}

	if err := client.initialize(ctx, opts.ClientName, opts.ClientVersion); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// stop terminates the subprocess: interrupt first, then kill if it does not
// exit promptly.
func (p *process) stop() error {
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return nil
	}

	_ = p.cmd.Process.Signal(os.Interrupt)

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case err := <-done:
		return ignoreExitError(err)
	case <-time.After(3 * time.Second):
		_ = p.cmd.Process.Kill()
		return ignoreExitError(<-done)
	}
}

func ignoreExitError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
