package session

import (
	"context"
	"strings"
	"testing"
)

func TestMemoryTool_Search(t *testing.T) {
	tool := &MemoryTool{Command: "echo"}
	out, err := tool.Search(context.Background(), "kittens")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "search") || !strings.Contains(out, "kittens") {
		t.Errorf("got %q, want it to contain the invoked args", out)
	}
}

func TestMemoryTool_Today(t *testing.T) {
	tool := &MemoryTool{Command: "echo"}
	out, err := tool.Today(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "today") {
		t.Errorf("got %q, want it to contain %q", out, "today")
	}
}

func TestMemoryTool_CommandNotFound(t *testing.T) {
	tool := &MemoryTool{Command: "this-command-does-not-exist-acomm"}
	if _, err := tool.Search(context.Background(), "x"); err == nil {
		t.Fatal("expected error for missing command")
	}
}

func TestNewMemoryTool_DefaultsToAmem(t *testing.T) {
	tool := NewMemoryTool()
	if tool.Command != "amem" {
		t.Errorf("Command = %q, want %q", tool.Command, "amem")
	}
}
