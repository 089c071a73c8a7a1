package session

import (
	"context"
	"errors"
	"testing"

	"jotagateway/pkg/types"
)

func TestGenerateTransitionsIdleToGeneratingToIdle(t *testing.T) {
	var seen []types.SessionState
	fc := &fakeContext{generateFn: func(ctx context.Context, prompt string, params types.RuntimeParams, onToken func(string) bool) (types.Metrics, error) {
		onToken("a")
		onToken("b")
		return types.Metrics{TokensGenerated: 2, TTFTMs: 5, TotalTimeMs: 10}, nil
	}}
	s := newSession("sess_test", "c1", fc)

	if s.State() != types.SessionIdle {
		t.Fatalf("expected initial state idle, got %v", s.State())
	}

	var pieces []string
	metrics, err := s.Generate(context.Background(), "prompt", types.RuntimeParams{}, func(piece string) bool {
		pieces = append(pieces, piece)
		seen = append(seen, s.State())
		return true
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != types.SessionIdle {
		t.Fatalf("expected final state idle, got %v", s.State())
	}
	for _, st := range seen {
		if st != types.SessionGenerating {
			t.Fatalf("expected generating state during onToken callback, got %v", st)
		}
	}
	if metrics.TTFTMs > metrics.TotalTimeMs {
		t.Fatalf("TTFT (%d) must not exceed total time (%d)", metrics.TTFTMs, metrics.TotalTimeMs)
	}
	if len(pieces) != 2 {
		t.Fatalf("expected 2 pieces delivered, got %d", len(pieces))
	}
}

func TestGenerateSetsErrorStateOnAdapterFailure(t *testing.T) {
	fc := &fakeContext{generateFn: func(context.Context, string, types.RuntimeParams, func(string) bool) (types.Metrics, error) {
		return types.Metrics{}, errors.New("backend exploded")
	}}
	s := newSession("sess_test", "c1", fc)

	if _, err := s.Generate(context.Background(), "p", types.RuntimeParams{}, func(string) bool { return true }); err == nil {
		t.Fatal("expected error to propagate")
	}
	if s.State() != types.SessionError {
		t.Fatalf("expected state error, got %v", s.State())
	}
}

func TestAbortStopsTokenDeliveryMidGeneration(t *testing.T) {
	fc := &fakeContext{generateFn: func(ctx context.Context, prompt string, params types.RuntimeParams, onToken func(string) bool) (types.Metrics, error) {
		for i := 0; i < 5; i++ {
			if !onToken("tok") {
				break
			}
		}
		return types.Metrics{}, nil
	}}
	s := newSession("sess_test", "c1", fc)

	delivered := 0
	_, err := s.Generate(context.Background(), "p", types.RuntimeParams{}, func(string) bool {
		delivered++
		if delivered == 2 {
			s.Abort()
		}
		return true
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivered != 2 {
		t.Fatalf("expected generation to stop right after abort, delivered %d tokens", delivered)
	}
}

func TestAbortFlagClearedAtStartOfNextGenerate(t *testing.T) {
	fc := &fakeContext{}
	s := newSession("sess_test", "c1", fc)
	s.Abort()

	delivered := 0
	_, err := s.Generate(context.Background(), "p", types.RuntimeParams{}, func(string) bool {
		delivered++
		return true
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivered == 0 {
		t.Fatal("expected a stale abort flag from before Generate to be cleared, not to suppress this run")
	}
}

type closeTrackingContext struct {
	fakeContext
	closed bool
}

func (c *closeTrackingContext) Close() error {
	c.closed = true
	return nil
}

func TestCloseDelegatesToContext(t *testing.T) {
	fc := &closeTrackingContext{}
	s := newSession("sess_test", "c1", fc)
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fc.closed {
		t.Fatal("expected Session.Close to delegate to the underlying context")
	}
}
