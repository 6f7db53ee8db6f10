package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitter_TextOutput(t *testing.T) {
	t.Run("emits event with all fields", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, false)

		emitter.Emit(Event{
			ExecutionID: "exec-001",
			Step:        0,
			NodeID:      "add",
			Msg:         "module_start",
			Meta:        map[string]interface{}{"cache": "hit"},
		})

		output := buf.String()
		if output == "" {
			t.Fatal("expected output, got empty string")
		}
		if !strings.Contains(output, "exec-001") {
			t.Errorf("expected output to contain ExecutionID 'exec-001', got: %s", output)
		}
		if !strings.Contains(output, "add") {
			t.Errorf("expected output to contain NodeID 'add', got: %s", output)
		}
		if !strings.Contains(output, "module_start") {
			t.Errorf("expected output to contain Msg 'module_start', got: %s", output)
		}
	})

	t.Run("emits multiple events", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, false)

		emitter.Emit(Event{ExecutionID: "exec-001", NodeID: "add", Msg: "module_start"})
		emitter.Emit(Event{ExecutionID: "exec-001", NodeID: "add", Msg: "module_complete"})

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 2 {
			t.Errorf("expected 2 lines of output, got %d", len(lines))
		}
	})
}

func TestLogEmitter_JSONFormatting(t *testing.T) {
	t.Run("emits valid JSON when JSON mode enabled", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, true)

		emitter.Emit(Event{
			ExecutionID: "exec-001",
			Step:        2,
			NodeID:      "shout",
			Msg:         "module_complete",
			Meta:        map[string]interface{}{"duration_ms": float64(42)},
		})

		output := buf.String()
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(output), &parsed); err != nil {
			t.Fatalf("expected valid JSON, got error: %v\nOutput: %s", err, output)
		}

		if parsed["executionID"] != "exec-001" {
			t.Errorf("expected executionID 'exec-001', got %v", parsed["executionID"])
		}
		if parsed["step"] != float64(2) {
			t.Errorf("expected step 2, got %v", parsed["step"])
		}
		if parsed["nodeID"] != "shout" {
			t.Errorf("expected nodeID 'shout', got %v", parsed["nodeID"])
		}
		if parsed["msg"] != "module_complete" {
			t.Errorf("expected msg 'module_complete', got %v", parsed["msg"])
		}

		meta, ok := parsed["meta"].(map[string]interface{})
		if !ok {
			t.Fatal("expected meta to be a map")
		}
		if meta["duration_ms"] != float64(42) {
			t.Errorf("expected duration_ms 42, got %v", meta["duration_ms"])
		}
	})

	t.Run("emits multiple JSON events on separate lines", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, true)

		emitter.Emit(Event{ExecutionID: "exec-001", NodeID: "add", Msg: "module_start"})
		emitter.Emit(Event{ExecutionID: "exec-001", NodeID: "add", Msg: "module_complete"})

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 2 {
			t.Errorf("expected 2 lines of JSON, got %d", len(lines))
		}
		for i, line := range lines {
			var parsed map[string]interface{}
			if err := json.Unmarshal([]byte(line), &parsed); err != nil {
				t.Errorf("line %d: expected valid JSON, got error: %v\nLine: %s", i, err, line)
			}
		}
	})
}

func TestLogEmitter_EmitBatch(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)

	events := []Event{
		{ExecutionID: "exec-001", NodeID: "add", Msg: "module_start"},
		{ExecutionID: "exec-001", NodeID: "add", Msg: "module_complete"},
		{ExecutionID: "exec-001", NodeID: "shout", Msg: "module_start"},
	}
	if err := emitter.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("EmitBatch failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Errorf("expected 3 lines, got %d", len(lines))
	}
}

func TestLogEmitter_EmitBatchEmpty(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)

	if err := emitter.EmitBatch(context.Background(), nil); err != nil {
		t.Fatalf("EmitBatch failed on empty batch: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty batch, got: %s", buf.String())
	}
}

func TestLogEmitter_Flush(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)

	if err := emitter.Flush(context.Background()); err != nil {
		t.Errorf("expected Flush to be a no-op, got error: %v", err)
	}
}

func TestLogEmitter_InterfaceContract(t *testing.T) {
	var buf bytes.Buffer
	var _ Emitter = NewLogEmitter(&buf, false)
}
