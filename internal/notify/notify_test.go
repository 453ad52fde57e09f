package notify

import "testing"

func TestCommandNotifierRunsConfiguredCommand(t *testing.T) {
	n := NewCommandNotifier("true", func(title, body string) []string { return nil })
	if err := n.Notify("t", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCommandNotifierPropagatesFailure(t *testing.T) {
	n := NewCommandNotifier("false", func(title, body string) []string { return nil })
	if err := n.Notify("t", "b"); err == nil {
		t.Fatal("expected error from failing command")
	}
}

func TestNoOpNeverFails(t *testing.T) {
	var n NoOp
	if err := n.Notify("t", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
