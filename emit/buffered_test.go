package emit

import (
	"context"
	"testing"
	"time"
)

func TestBufferedEmitter_StoresEvents(t *testing.T) {
	t.Run("stores single event", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		emitter.Emit(Event{ExecutionID: "exec-001", NodeID: "add", Msg: "module_start"})

		history := emitter.GetHistory("exec-001")
		if len(history) != 1 {
			t.Fatalf("expected 1 event, got %d", len(history))
		}
		if history[0].NodeID != "add" {
			t.Errorf("expected NodeID = 'add', got %q", history[0].NodeID)
		}
	})

	t.Run("stores multiple events", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{ExecutionID: "exec-001", NodeID: "add", Msg: "module_start"},
			{ExecutionID: "exec-001", NodeID: "add", Msg: "module_complete"},
			{ExecutionID: "exec-001", NodeID: "shout", Msg: "module_start"},
		}
		for _, event := range events {
			emitter.Emit(event)
		}

		history := emitter.GetHistory("exec-001")
		if len(history) != 3 {
			t.Fatalf("expected 3 events, got %d", len(history))
		}
	})

	t.Run("isolates events by executionID", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		emitter.Emit(Event{ExecutionID: "exec-001", Msg: "execution_start"})
		emitter.Emit(Event{ExecutionID: "exec-002", Msg: "execution_start"})
		emitter.Emit(Event{ExecutionID: "exec-001", Msg: "execution_complete"})

		history1 := emitter.GetHistory("exec-001")
		history2 := emitter.GetHistory("exec-002")

		if len(history1) != 2 {
			t.Errorf("expected 2 events for exec-001, got %d", len(history1))
		}
		if len(history2) != 1 {
			t.Errorf("expected 1 event for exec-002, got %d", len(history2))
		}
	})

	t.Run("returns empty slice for unknown executionID", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		history := emitter.GetHistory("unknown-exec")
		if history == nil {
			t.Error("expected empty slice, got nil")
		}
		if len(history) != 0 {
			t.Errorf("expected 0 events, got %d", len(history))
		}
	})
}

func TestBufferedEmitter_EmitBatch(t *testing.T) {
	emitter := NewBufferedEmitter()

	events := []Event{
		{ExecutionID: "exec-001", NodeID: "add", Msg: "module_start"},
		{ExecutionID: "exec-001", NodeID: "add", Msg: "module_complete"},
		{ExecutionID: "exec-002", NodeID: "shout", Msg: "module_start"},
	}
	if err := emitter.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("EmitBatch failed: %v", err)
	}

	if len(emitter.GetHistory("exec-001")) != 2 {
		t.Errorf("expected 2 events for exec-001, got %d", len(emitter.GetHistory("exec-001")))
	}
	if len(emitter.GetHistory("exec-002")) != 1 {
		t.Errorf("expected 1 event for exec-002, got %d", len(emitter.GetHistory("exec-002")))
	}
}

func TestBufferedEmitter_Flush(t *testing.T) {
	emitter := NewBufferedEmitter()
	if err := emitter.Flush(context.Background()); err != nil {
		t.Errorf("expected Flush to be a no-op, got error: %v", err)
	}
}

func TestBufferedEmitter_GetHistoryWithFilter(t *testing.T) {
	t.Run("filters by nodeID", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{ExecutionID: "exec-001", NodeID: "add", Msg: "module_start"},
			{ExecutionID: "exec-001", NodeID: "shout", Msg: "module_start"},
			{ExecutionID: "exec-001", NodeID: "add", Msg: "module_complete"},
		}
		for _, event := range events {
			emitter.Emit(event)
		}

		history := emitter.GetHistoryWithFilter("exec-001", HistoryFilter{NodeID: "add"})
		if len(history) != 2 {
			t.Fatalf("expected 2 events, got %d", len(history))
		}
		for _, event := range history {
			if event.NodeID != "add" {
				t.Errorf("expected NodeID = 'add', got %q", event.NodeID)
			}
		}
	})

	t.Run("filters by message", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{ExecutionID: "exec-001", Msg: "module_start"},
			{ExecutionID: "exec-001", Msg: "module_complete"},
			{ExecutionID: "exec-001", Msg: "module_start"},
		}
		for _, event := range events {
			emitter.Emit(event)
		}

		history := emitter.GetHistoryWithFilter("exec-001", HistoryFilter{Msg: "module_start"})
		if len(history) != 2 {
			t.Fatalf("expected 2 events, got %d", len(history))
		}
		for _, event := range history {
			if event.Msg != "module_start" {
				t.Errorf("expected Msg = 'module_start', got %q", event.Msg)
			}
		}
	})

	t.Run("filters by step range", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		for step := 0; step < 4; step++ {
			emitter.Emit(Event{ExecutionID: "exec-001", Step: step, Msg: "module_start"})
		}

		minStep, maxStep := 1, 2
		history := emitter.GetHistoryWithFilter("exec-001", HistoryFilter{MinStep: &minStep, MaxStep: &maxStep})
		if len(history) != 2 {
			t.Fatalf("expected 2 events, got %d", len(history))
		}
		if history[0].Step != 1 || history[1].Step != 2 {
			t.Error("expected steps 1 and 2")
		}
	})

	t.Run("combines multiple filters", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{ExecutionID: "exec-001", Step: 1, NodeID: "add", Msg: "module_start"},
			{ExecutionID: "exec-001", Step: 1, NodeID: "shout", Msg: "module_start"},
			{ExecutionID: "exec-001", Step: 2, NodeID: "add", Msg: "module_start"},
			{ExecutionID: "exec-001", Step: 1, NodeID: "add", Msg: "module_complete"},
		}
		for _, event := range events {
			emitter.Emit(event)
		}

		step := 1
		history := emitter.GetHistoryWithFilter("exec-001", HistoryFilter{
			NodeID:  "add",
			Msg:     "module_start",
			MinStep: &step,
			MaxStep: &step,
		})
		if len(history) != 1 {
			t.Fatalf("expected 1 event, got %d", len(history))
		}
	})

	t.Run("empty filter returns all events", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		for i := 0; i < 3; i++ {
			emitter.Emit(Event{ExecutionID: "exec-001", Msg: "module_start"})
		}

		history := emitter.GetHistoryWithFilter("exec-001", HistoryFilter{})
		if len(history) != 3 {
			t.Fatalf("expected 3 events, got %d", len(history))
		}
	})
}

func TestBufferedEmitter_Clear(t *testing.T) {
	t.Run("clears events for one executionID", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		emitter.Emit(Event{ExecutionID: "exec-001", Msg: "execution_start"})
		emitter.Emit(Event{ExecutionID: "exec-002", Msg: "execution_start"})

		emitter.Clear("exec-001")

		if len(emitter.GetHistory("exec-001")) != 0 {
			t.Errorf("expected 0 events for exec-001, got %d", len(emitter.GetHistory("exec-001")))
		}
		if len(emitter.GetHistory("exec-002")) != 1 {
			t.Errorf("expected 1 event for exec-002, got %d", len(emitter.GetHistory("exec-002")))
		}
	})

	t.Run("clears all events when executionID is empty", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		emitter.Emit(Event{ExecutionID: "exec-001", Msg: "execution_start"})
		emitter.Emit(Event{ExecutionID: "exec-002", Msg: "execution_start"})

		emitter.Clear("")

		if len(emitter.GetHistory("exec-001")) != 0 || len(emitter.GetHistory("exec-002")) != 0 {
			t.Error("expected all events to be cleared")
		}
	})
}

func TestBufferedEmitter_ThreadSafety(t *testing.T) {
	emitter := NewBufferedEmitter()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				emitter.Emit(Event{ExecutionID: "exec-001", Step: j, Msg: "module_start"})
			}
			done <- true
		}()
	}

	readDone := make(chan bool)
	go func() {
		for i := 0; i < 100; i++ {
			emitter.GetHistory("exec-001")
			time.Sleep(time.Millisecond)
		}
		readDone <- true
	}()

	for i := 0; i < 10; i++ {
		<-done
	}
	<-readDone

	if len(emitter.GetHistory("exec-001")) != 1000 {
		t.Errorf("expected 1000 events, got %d", len(emitter.GetHistory("exec-001")))
	}
}

func TestBufferedEmitter_InterfaceContract(_ *testing.T) {
	var _ Emitter = NewBufferedEmitter()
}
