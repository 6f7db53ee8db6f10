package emit

import (
	"context"
	"testing"
)

func TestNullEmitter_NoOp(t *testing.T) {
	t.Run("emits events without error", func(t *testing.T) {
		emitter := NewNullEmitter()

		events := []Event{
			{ExecutionID: "exec-001", NodeID: "add", Msg: "module_start"},
			{ExecutionID: "exec-001", NodeID: "add", Msg: "module_complete"},
			{ExecutionID: "exec-001", NodeID: "flaky", Msg: "module_failed", Meta: map[string]interface{}{"error": "timeout"}},
		}
		for _, event := range events {
			emitter.Emit(event)
		}
	})

	t.Run("can emit with nil meta", func(t *testing.T) {
		emitter := NewNullEmitter()
		emitter.Emit(Event{ExecutionID: "exec-001", NodeID: "add", Msg: "module_start", Meta: nil})
	})

	t.Run("EmitBatch and Flush are no-ops", func(t *testing.T) {
		emitter := NewNullEmitter()
		ctx := context.Background()

		if err := emitter.EmitBatch(ctx, []Event{{ExecutionID: "exec-001", Msg: "module_start"}}); err != nil {
			t.Errorf("expected nil error from EmitBatch, got %v", err)
		}
		if err := emitter.Flush(ctx); err != nil {
			t.Errorf("expected nil error from Flush, got %v", err)
		}
	})
}

func TestNullEmitter_InterfaceContract(t *testing.T) {
	var _ Emitter = NewNullEmitter()
}
