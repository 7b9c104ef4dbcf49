package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// fakeServer drives a Client over in-process pipes, answering each request
// with the configured handler.
type fakeServer struct {
	in       *io.PipeReader
	out      *io.PipeWriter
	requests chan rpcRequest
}

// startFakeServer returns a client wired to a server loop. handler maps an
// incoming request to the raw JSON lines to write back; nil output writes
// nothing.
func startFakeServer(t *testing.T, handler func(req rpcRequest) []string) (*Client, *fakeServer) {
	t.Helper()

	clientToServer, clientWriter := io.Pipe()
	serverToClient, serverWriter := io.Pipe()

	srv := &fakeServer{
		in:       clientToServer,
		out:      serverWriter,
		requests: make(chan rpcRequest, 16),
	}

	go func() {
		scanner := bufio.NewScanner(clientToServer)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			var req rpcRequest
			if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
				continue
			}
			srv.requests <- req
			if handler == nil {
				continue
			}
			for _, line := range handler(req) {
				if _, err := serverWriter.Write([]byte(line + "\n")); err != nil {
					return
				}
			}
		}
	}()

	client := newClient(clientWriter, serverToClient)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

// respond builds a JSON-RPC response line for the given request id.
func respond(id int64, result string) string {
	return `{"jsonrpc":"2.0","id":` + jsonInt(id) + `,"result":` + result + `}`
}

func jsonInt(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestCallToolReturnsTextPayload(t *testing.T) {
	client, _ := startFakeServer(t, func(req rpcRequest) []string {
		if req.Method != "tools/call" {
			t.Errorf("method = %q, want tools/call", req.Method)
		}
		return []string{respond(*req.ID, `{"content":[{"type":"text","text":"[{\"number\":1}]"}]}`)}
	})

	got, err := client.CallTool(context.Background(), "list_issues", map[string]any{
		"owner": "dotnet", "repo": "eshop",
	})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if got != `[{"number":1}]` {
		t.Errorf("CallTool() = %q, want issue payload", got)
	}
}

func TestCallToolSkipsNonTextContent(t *testing.T) {
	client, _ := startFakeServer(t, func(req rpcRequest) []string {
		return []string{respond(*req.ID,
			`{"content":[{"type":"image","text":""},{"type":"text","text":"hello"}]}`)}
	})

	got, err := client.CallTool(context.Background(), "get_file_contents", nil)
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("CallTool() = %q, want %q", got, "hello")
	}
}

func TestCallToolNoTextContent(t *testing.T) {
	client, _ := startFakeServer(t, func(req rpcRequest) []string {
		return []string{respond(*req.ID, `{"content":[]}`)}
	})

	_, err := client.CallTool(context.Background(), "get_file_contents", nil)
	if err == nil {
		t.Fatal("CallTool() = nil error, want error for missing text content")
	}
}

func TestCallToolToolError(t *testing.T) {
	client, _ := startFakeServer(t, func(req rpcRequest) []string {
		return []string{respond(*req.ID,
			`{"content":[{"type":"text","text":"Not Found"}],"isError":true}`)}
	})

	_, err := client.CallTool(context.Background(), "get_file_contents", nil)
	if err == nil {
		t.Fatal("CallTool() = nil error, want tool error")
	}
	if !strings.Contains(err.Error(), "Not Found") {
		t.Errorf("error = %v, want it to carry the tool message", err)
	}
}

func TestCallToolRPCError(t *testing.T) {
	client, _ := startFakeServer(t, func(req rpcRequest) []string {
		return []string{`{"jsonrpc":"2.0","id":` + jsonInt(*req.ID) + `,"error":{"code":-32601,"message":"method not found"}}`}
	})

	_, err := client.CallTool(context.Background(), "unknown_tool", nil)
	if err == nil {
		t.Fatal("CallTool() = nil error, want rpc error")
	}
	if !strings.Contains(err.Error(), "method not found") {
		t.Errorf("error = %v, want rpc message", err)
	}
}

func TestCallToolIgnoresUnrelatedResponses(t *testing.T) {
	client, _ := startFakeServer(t, func(req rpcRequest) []string {
		return []string{
			// Stray response for an id we never issued, then the real one.
			respond(9999, `{"content":[{"type":"text","text":"stray"}]}`),
			respond(*req.ID, `{"content":[{"type":"text","text":"real"}]}`),
		}
	})

	got, err := client.CallTool(context.Background(), "search_code", nil)
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if got != "real" {
		t.Errorf("CallTool() = %q, want %q", got, "real")
	}
}

func TestCallToolContextCancellation(t *testing.T) {
	client, _ := startFakeServer(t, nil) // never answers

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.CallTool(ctx, "list_issues", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("CallTool() error = %v, want deadline exceeded", err)
	}
}

func TestClosedClientFailsPendingCalls(t *testing.T) {
	client, _ := startFakeServer(t, nil)

	done := make(chan error, 1)
	go func() {
		_, err := client.CallTool(context.Background(), "list_issues", nil)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	_ = client.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Error("CallTool() after Close = nil error, want transport closed")
		}
	case <-time.After(time.Second):
		t.Fatal("CallTool() did not unblock after Close")
	}
}

func TestInitializeHandshake(t *testing.T) {
	client, srv := startFakeServer(t, func(req rpcRequest) []string {
		if req.ID == nil {
			return nil // notification
		}
		return []string{respond(*req.ID, `{"protocolVersion":"2024-11-05","serverInfo":{"name":"fake"}}`)}
	})

	if err := client.initialize(context.Background(), "repolens", "dev"); err != nil {
		t.Fatalf("initialize() error = %v", err)
	}

	first := <-srv.requests
	if first.Method != "initialize" {
		t.Errorf("first request method = %q, want initialize", first.Method)
	}

	select {
	case second := <-srv.requests:
		if second.Method != "notifications/initialized" {
			t.Errorf("second request method = %q, want notifications/initialized", second.Method)
		}
		if second.ID != nil {
			t.Error("initialized notification should carry no id")
		}
	case <-time.After(time.Second):
		t.Fatal("initialized notification never sent")
	}
}
