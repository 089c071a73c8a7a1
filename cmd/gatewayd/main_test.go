package main

import "testing"

func TestResolveModelAndPort_PositionalFallback(t *testing.T) {
	model, port, err := resolveModelAndPort([]string{"model.gguf", "9000"}, "", 3000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model != "model.gguf" || port != 9000 {
		t.Fatalf("got model=%q port=%d", model, port)
	}
}

func TestResolveModelAndPort_FlagTakesPriorityOverPositional(t *testing.T) {
	model, port, err := resolveModelAndPort([]string{"ignored.gguf"}, "flagged.gguf", 3000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model != "flagged.gguf" || port != 3000 {
		t.Fatalf("got model=%q port=%d", model, port)
	}
}

func TestResolveModelAndPort_MissingModelIsError(t *testing.T) {
	if _, _, err := resolveModelAndPort(nil, "", 3000); err == nil {
		t.Fatal("expected error when no model is given")
	}
}

func TestResolveModelAndPort_InvalidPortIsError(t *testing.T) {
	if _, _, err := resolveModelAndPort([]string{"m.gguf", "not-a-port"}, "", 3000); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}
