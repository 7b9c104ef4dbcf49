// Package mcp implements a minimal Model Context Protocol client speaking
// newline-delimited JSON-RPC 2.0 over a server subprocess's stdin/stdout.
// Only the slice of the protocol this tool needs is implemented: the
// initialize handshake and tools/call.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

const protocolVersion = "2024-11-05"

// Client is a connected MCP session. It is safe for sequential use from a
// single caller; requests are correlated to responses by id.
type Client struct {
	w  io.Writer
	br *bufio.Reader

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan rpcResponse

	closed    chan struct{}
	closeOnce sync.Once

	// set by Connect; nil when the client runs over injected pipes
	proc *process
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     *int64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// toolResult is the result shape of a tools/call response.
type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// initializeParams is the client half of the MCP handshake.
type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// newClient wires a client over an arbitrary transport. Used by Connect and,
// with in-process pipes, by tests.
func newClient(w io.Writer, r io.Reader) *Client {
	c := &Client{
		w:       w,
		br:      bufio.NewReaderSize(r, 1024*1024),
		nextID:  1,
		pending: make(map[int64]chan rpcResponse),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// initialize performs the MCP handshake and sends the initialized
// notification.
func (c *Client) initialize(ctx context.Context, name, version string) error {
	params := initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: name, Version: version},
	}
	if _, err := c.call(ctx, "initialize", params); err != nil {
		return fmt.Errorf("initialize handshake failed: %w", err)
	}
	return c.notify("notifications/initialized", nil)
}

// CallTool invokes a named tool with the given arguments and returns the
// text payload of the first text-bearing content item. A tool error, an
// RPC error, or a response without text content all surface as an error.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	raw, err := c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return "", err
	}

	var result toolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("malformed tool result: %w", err)
	}

	text := ""
	found := false
	for _, item := range result.Content {
		if item.Type == "text" {
			text = item.Text
			found = true
			break
		}
	}

	if result.IsError {
		if found {
			return "", fmt.Errorf("tool %s: %s", name, text)
		}
		return "", fmt.Errorf("tool %s failed", name)
	}
	if !found {
		return "", fmt.Errorf("tool %s returned no text content", name)
	}
	return text, nil
}

// Close tears down the transport and, when the client owns a subprocess,
// stops it. Safe to call multiple times and on every exit path.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)

		c.mu.Lock()
		c.pending = make(map[int64]chan rpcResponse)
		c.mu.Unlock()

		if closer, ok := c.w.(io.Closer); ok {
			err = closer.Close()
		}
		if c.proc != nil {
			stopErr := c.proc.stop()
			if err == nil {
				err = stopErr
			}
		}
	})
	return err
}

// Done is closed when the transport has shut down.
func (c *Client) Done() <-chan struct{} { return c.closed }

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	ch := make(chan rpcResponse, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", ID: &id, Method: method, Params: params}
	if err := c.send(req); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	case <-c.closed:
		return nil, errors.New("mcp transport closed")
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	}
}

func (c *Client) notify(method string, params any) error {
	return c.send(rpcRequest{JSONRPC: "2.0", Method: method, Params: params})
}

func (c *Client) send(req rpcRequest) error {
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(b); err != nil {
		return fmt.Errorf("write to mcp server: %w", err)
	}
	return nil
}

func (c *Client) readLoop() {
	for {
		line, err := c.br.ReadBytes('\n')
		if err != nil {
			_ = c.Close()
			return
		}

		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			// Server log noise or a notification we don't handle.
			continue
		}
		if resp.ID == nil {
			continue
		}

		c.mu.Lock()
		ch := c.pending[*resp.ID]
		delete(c.pending, *resp.ID)
		c.mu.Unlock()
		if ch != nil {
			ch <- resp
			close(ch)
		}
	}
}
