package github

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// fakeCaller records calls and replays scripted responses.
type fakeCaller struct {
	calls []recordedCall
	text  string
	err   error
}

type recordedCall struct {
	name string
	args map[string]any
}

func (f *fakeCaller) CallTool(_ context.Context, name string, args map[string]any) (string, error) {
	f.calls = append(f.calls, recordedCall{name: name, args: args})
	return f.text, f.err
}

func TestGetFileContents(t *testing.T) {
	caller := &fakeCaller{text: "# README"}
	tools := NewTools(caller, "dotnet", "eshop")

	text, ok := tools.GetFileContents(context.Background(), "README.md")
	if !ok {
		t.Fatal("GetFileContents() ok = false, want true")
	}
	if text != "# README" {
		t.Errorf("GetFileContents() = %q, want %q", text, "# README")
	}

	call := caller.calls[0]
	if call.name != "get_file_contents" {
		t.Errorf("tool name = %q, want get_file_contents", call.name)
	}
	if call.args["owner"] != "dotnet" || call.args["repo"] != "eshop" || call.args["path"] != "README.md" {
		t.Errorf("args = %v", call.args)
	}
	if _, hasBranch := call.args["branch"]; hasBranch {
		t.Error("branch should be omitted when not configured")
	}
}

func TestGetFileContentsWithBranch(t *testing.T) {
	caller := &fakeCaller{text: "content"}
	tools := NewTools(caller, "dotnet", "eshop", WithBranch("release/8.0"))

	_, _ = tools.GetFileContents(context.Background(), "src")
	if caller.calls[0].args["branch"] != "release/8.0" {
		t.Errorf("branch arg = %v, want release/8.0", caller.calls[0].args["branch"])
	}
}

func TestGetFileContentsFaultMapsToNotFound(t *testing.T) {
	var logged []string
	caller := &fakeCaller{err: errors.New("transport broke")}
	tools := NewTools(caller, "o", "r", WithLogf(func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}))

	_, ok := tools.GetFileContents(context.Background(), "src")
	if ok {
		t.Error("GetFileContents() ok = true on fault, want false")
	}
	if len(logged) != 1 {
		t.Errorf("unexpected faults logged %d times, want 1", len(logged))
	}
}

func TestGetFileContentsExpected404NotLogged(t *testing.T) {
	var logged []string
	caller := &fakeCaller{err: errors.New("tool get_file_contents: Not Found")}
	tools := NewTools(caller, "o", "r", WithLogf(func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}))

	_, ok := tools.GetFileContents(context.Background(), "missing.md")
	if ok {
		t.Error("ok = true, want false")
	}
	if len(logged) != 0 {
		t.Errorf("404 fault logged %v, want silence", logged)
	}
}

func TestProbeFileSuppressesAllLogging(t *testing.T) {
	var logged []string
	caller := &fakeCaller{err: errors.New("transport broke")}
	tools := NewTools(caller, "o", "r", WithLogf(func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}))

	_, ok := tools.ProbeFile(context.Background(), "LICENSE")
	if ok {
		t.Error("ProbeFile() ok = true on fault, want false")
	}
	if len(logged) != 0 {
		t.Errorf("quiet probe logged %v, want silence", logged)
	}
}

func TestListIssuesArgs(t *testing.T) {
	caller := &fakeCaller{text: "[]"}
	tools := NewTools(caller, "o", "r")

	_, ok := tools.ListIssues(context.Background(), "all", 100, 1)
	if !ok {
		t.Fatal("ListIssues() ok = false, want true")
	}

	args := caller.calls[0].args
	if args["state"] != "all" || args["per_page"] != 100 || args["page"] != 1 {
		t.Errorf("args = %v", args)
	}
}

func TestListPullRequestsFault(t *testing.T) {
	caller := &fakeCaller{err: errors.New("boom")}
	tools := NewTools(caller, "o", "r", WithLogf(func(string, ...any) {}))

	_, ok := tools.ListPullRequests(context.Background(), "open", 30)
	if ok {
		t.Error("ListPullRequests() ok = true on fault, want false")
	}
}

func TestSearchCodeScopesQueryToRepository(t *testing.T) {
	caller := &fakeCaller{text: `{"items":[]}`}
	tools := NewTools(caller, "dotnet", "eshop")

	_, _ = tools.SearchCode(context.Background(), "extension:csproj", 30)

	args := caller.calls[0].args
	if args["q"] != "extension:csproj repo:dotnet/eshop" {
		t.Errorf("q = %v, want repo-scoped query", args["q"])
	}
	if _, hasOwner := args["owner"]; hasOwner {
		t.Error("search_code should not pass owner separately")
	}
}
