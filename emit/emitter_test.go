package emit

import (
	"context"
	"testing"
)

// TestEmitter_InterfaceContract verifies Emitter can be implemented with
// just the three methods the executor relies on.
func TestEmitter_InterfaceContract(t *testing.T) {
	var _ Emitter = (*mockEmitter)(nil)
}

type mockEmitter struct {
	events  []Event
	batches [][]Event
	flushed int
}

func (m *mockEmitter) Emit(event Event) {
	m.events = append(m.events, event)
}

func (m *mockEmitter) EmitBatch(_ context.Context, events []Event) error {
	m.batches = append(m.batches, events)
	return nil
}

func (m *mockEmitter) Flush(_ context.Context) error {
	m.flushed++
	return nil
}

func TestEmitter_Emit(t *testing.T) {
	t.Run("emit single event", func(t *testing.T) {
		emitter := &mockEmitter{}

		emitter.Emit(Event{ExecutionID: "exec-001", NodeID: "add", Msg: "module_start"})

		if len(emitter.events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(emitter.events))
		}
		if emitter.events[0].Msg != "module_start" {
			t.Errorf("expected Msg = 'module_start', got %q", emitter.events[0].Msg)
		}
	})

	t.Run("emit sequence for one module node", func(t *testing.T) {
		emitter := &mockEmitter{}

		emitter.Emit(Event{ExecutionID: "exec-001", NodeID: "add", Msg: "module_start"})
		emitter.Emit(Event{ExecutionID: "exec-001", NodeID: "add", Msg: "module_complete", Meta: map[string]interface{}{"duration_ms": int64(3)}})

		if len(emitter.events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(emitter.events))
		}
		if emitter.events[1].Meta["duration_ms"] != int64(3) {
			t.Errorf("expected duration_ms = 3, got %v", emitter.events[1].Meta["duration_ms"])
		}
	})

	t.Run("emit zero value event does not panic", func(t *testing.T) {
		emitter := &mockEmitter{}
		emitter.Emit(Event{})

		if len(emitter.events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(emitter.events))
		}
	})
}

func TestEmitter_EmitBatchAndFlush(t *testing.T) {
	emitter := &mockEmitter{}
	ctx := context.Background()

	batch := []Event{
		{ExecutionID: "exec-001", NodeID: "add", Msg: "module_complete"},
		{ExecutionID: "exec-001", NodeID: "shout", Msg: "module_complete"},
	}
	if err := emitter.EmitBatch(ctx, batch); err != nil {
		t.Fatalf("EmitBatch failed: %v", err)
	}
	if len(emitter.batches) != 1 || len(emitter.batches[0]) != 2 {
		t.Fatalf("expected one batch of 2 events, got %v", emitter.batches)
	}

	if err := emitter.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if emitter.flushed != 1 {
		t.Errorf("expected Flush to be called once, got %d", emitter.flushed)
	}
}
