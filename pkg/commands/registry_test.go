package commands

import (
	"context"
	"testing"
)

func TestRegistryDispatchesByNameAndAlias(t *testing.T) {
	r := NewRegistry()
	r.Register("/help", "show help", func(ctx context.Context, args string) (string, error) {
		return "help text", nil
	}, "/h", "/?")

	out, ok, err := r.Execute(context.Background(), "/help", "")
	if !ok || err != nil || out != "help text" {
		t.Fatalf("unexpected result: %q %v %v", out, ok, err)
	}

	out, ok, err = r.Execute(context.Background(), "/?", "")
	if !ok || err != nil || out != "help text" {
		t.Fatalf("alias dispatch failed: %q %v %v", out, ok, err)
	}
}

func TestRegistryUnknownCommand(t *testing.T) {
	r := NewRegistry()
	_, ok, _ := r.Execute(context.Background(), "/nope", "")
	if ok {
		t.Fatalf("expected unknown command to report ok=false")
	}
}

func TestQuitMagicString(t *testing.T) {
	r := NewRegistry()
	r.Register("/quit", "exit", func(ctx context.Context, args string) (string, error) {
		return Quit, nil
	}, "/q", "/exit")

	out, ok, err := r.Execute(context.Background(), "/q", "")
	if !ok || err != nil || out != Quit {
		t.Fatalf("expected quit magic string, got %q", out)
	}
}

func TestNamesAndHelp(t *testing.T) {
	r := NewRegistry()
	r.Register("/help", "show help", func(ctx context.Context, args string) (string, error) {
		return "", nil
	}, "/h")
	r.Register("/version", "show version", func(ctx context.Context, args string) (string, error) {
		return "", nil
	})

	names := r.Names()
	if len(names) != 2 || names[0] != "/help" || names[1] != "/version" {
		t.Fatalf("unexpected names: %v", names)
	}

	help, ok := r.Help("/help")
	if !ok || help != "show help" {
		t.Fatalf("unexpected help: %q %v", help, ok)
	}

	if _, ok := r.Help("/h"); ok {
		t.Fatalf("expected Help to reject alias lookups")
	}
}
