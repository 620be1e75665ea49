package main

import (
	"testing"
	"time"

	"github.com/edulink/classchat/internal/reconcile"
)

func TestTailEchoWindowFlag(t *testing.T) {
	cmd := newTailCmd()

	flag := cmd.Flags().Lookup("echo-window")
	if flag == nil {
		t.Fatal("tail is missing the echo-window flag")
	}
	if flag.DefValue != reconcile.DefaultEchoWindow.String() {
		t.Fatalf("echo-window default = %q, want %q", flag.DefValue, reconcile.DefaultEchoWindow)
	}

	if err := cmd.Flags().Set("echo-window", "2s"); err != nil {
		t.Fatalf("set echo-window: %v", err)
	}
	got, err := cmd.Flags().GetDuration("echo-window")
	if err != nil {
		t.Fatalf("get echo-window: %v", err)
	}
	if got != 2*time.Second {
		t.Fatalf("echo-window = %v, want 2s", got)
	}
}
