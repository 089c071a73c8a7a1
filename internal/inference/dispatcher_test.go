package inference

import (
	"context"
	"sync"
	"testing"
	"time"

	"jotagateway/pkg/types"
)

type fakeSession struct {
	generate func(ctx context.Context, prompt string, params types.RuntimeParams, onToken func(string) bool) (types.Metrics, error)
}

func (f *fakeSession) Generate(ctx context.Context, prompt string, params types.RuntimeParams, onToken func(string) bool) (types.Metrics, error) {
	return f.generate(ctx, prompt, params, onToken)
}

func lookupFor(sessions map[string]*fakeSession) sessionLookup {
	return func(id string) SessionRunner {
		s, ok := sessions[id]
		if !ok {
			return nil
		}
		return s
	}
}

func TestEnqueueDeliversTokensAndCompletion(t *testing.T) {
	sessions := map[string]*fakeSession{
		"sess_a": {generate: func(ctx context.Context, prompt string, params types.RuntimeParams, onToken func(string) bool) (types.Metrics, error) {
			onToken("a")
			onToken("b")
			return types.Metrics{TokensGenerated: 2, TTFTMs: 1, TotalTimeMs: 2}, nil
		}},
	}
	d := New(2, lookupFor(sessions))
	defer d.Shutdown()

	var mu sync.Mutex
	var pieces []string
	done := make(chan types.GenerationOutcome, 1)

	d.Enqueue(Task{
		SessionID: "sess_a",
		ClientID:  "c1",
		Prompt:    "hi",
		OnToken: func(piece string) bool {
			mu.Lock()
			pieces = append(pieces, piece)
			mu.Unlock()
			return true
		},
		OnComplete: func(outcome types.GenerationOutcome) { done <- outcome },
	})

	select {
	case outcome := <-done:
		if outcome.Err != nil {
			t.Fatalf("unexpected error: %v", outcome.Err)
		}
		if outcome.Metrics.TokensGenerated != 2 {
			t.Fatalf("expected 2 tokens, got %d", outcome.Metrics.TokensGenerated)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(pieces) != 2 || pieces[0] != "a" || pieces[1] != "b" {
		t.Fatalf("unexpected pieces: %v", pieces)
	}
}

func TestEnqueueDropsTaskForMissingSession(t *testing.T) {
	d := New(1, lookupFor(map[string]*fakeSession{}))
	defer d.Shutdown()

	done := make(chan types.GenerationOutcome, 1)
	d.Enqueue(Task{
		SessionID:  "sess_ghost",
		OnComplete: func(outcome types.GenerationOutcome) { done <- outcome },
	})

	select {
	case outcome := <-done:
		if outcome.Err == nil {
			t.Fatal("expected an error for a missing session")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
	}
}

func TestActiveCountTracksInFlightTasks(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	sessions := map[string]*fakeSession{
		"sess_a": {generate: func(ctx context.Context, prompt string, params types.RuntimeParams, onToken func(string) bool) (types.Metrics, error) {
			entered <- struct{}{}
			<-release
			return types.Metrics{}, nil
		}},
	}
	d := New(1, lookupFor(sessions))
	defer d.Shutdown()

	done := make(chan types.GenerationOutcome, 1)
	d.Enqueue(Task{SessionID: "sess_a", OnComplete: func(outcome types.GenerationOutcome) { done <- outcome }})

	<-entered
	if d.ActiveCount() != 1 {
		t.Fatalf("expected active count 1 while generating, got %d", d.ActiveCount())
	}
	close(release)
	<-done

	if d.ActiveCount() != 0 {
		t.Fatalf("expected active count 0 after completion, got %d", d.ActiveCount())
	}
}

func TestShutdownIsIdempotentAfterQueueEmpties(t *testing.T) {
	processed := make(chan string, 10)
	sessions := map[string]*fakeSession{}
	for _, id := range []string{"s1", "s2", "s3"} {
		id := id
		sessions[id] = &fakeSession{generate: func(ctx context.Context, prompt string, params types.RuntimeParams, onToken func(string) bool) (types.Metrics, error) {
			processed <- id
			return types.Metrics{}, nil
		}}
	}
	d := New(1, lookupFor(sessions))
	var wg sync.WaitGroup
	for id := range sessions {
		wg.Add(1)
		d.Enqueue(Task{SessionID: id, OnComplete: func(types.GenerationOutcome) { wg.Done() }})
	}
	wg.Wait()

	d.Shutdown()
	d.Shutdown() // must not panic or block
}

func TestShutdownDropsPendingQueuedTasksInstedOfDraining(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	inFlight := &fakeSession{generate: func(ctx context.Context, prompt string, params types.RuntimeParams, onToken func(string) bool) (types.Metrics, error) {
		started <- struct{}{}
		<-release
		return types.Metrics{}, nil
	}}
	queuedRan := false
	queued := &fakeSession{generate: func(ctx context.Context, prompt string, params types.RuntimeParams, onToken func(string) bool) (types.Metrics, error) {
		queuedRan = true
		return types.Metrics{}, nil
	}}
	sessions := map[string]*fakeSession{"in-flight": inFlight, "queued": queued}
	d := New(1, lookupFor(sessions))

	d.Enqueue(Task{SessionID: "in-flight"})
	<-started // worker is now blocked inside the in-flight task's Generate

	d.Enqueue(Task{SessionID: "queued"})

	shutdownDone := make(chan struct{})
	go func() {
		d.Shutdown() // must finish only the in-flight task, then exit without running "queued"
		close(shutdownDone)
	}()

	// Wait until Shutdown has set its flag, so the worker sees it as soon as
	// the in-flight task returns.
	for {
		d.mu.Lock()
		stopping := d.shutdown
		d.mu.Unlock()
		if stopping {
			break
		}
		time.Sleep(time.Millisecond)
	}

	close(release) // let the in-flight task's Generate return

	select {
	case <-shutdownDone:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not return")
	}
	if queuedRan {
		t.Fatal("queued task ran after Shutdown; pending tasks must be dropped, not drained")
	}
}
