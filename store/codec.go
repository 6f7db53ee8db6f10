package store

import (
	"encoding/json"
	"fmt"

	"github.com/constellation-run/constellation/dag"
	"github.com/constellation-run/constellation/semtype"
	"github.com/constellation-run/constellation/wire"
)

// wireEntry is one element of the on-disk JSON arrays for
// Checkpoint.CompletedData and Checkpoint.Inputs: each value is rendered
// through wire.EncodeValue so the stored payload is the same tagged §6
// wire format used at the external interface boundary, not a bespoke
// Go-only encoding.
type wireEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func encodeCompletedData(m map[dag.DataNodeId]semtype.Value) ([]byte, error) {
	entries := make([]wireEntry, 0, len(m))
	for id, v := range m {
		raw, err := wire.EncodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("store: encoding data node %d: %w", id, err)
		}
		entries = append(entries, wireEntry{Key: fmt.Sprintf("%d", id), Value: raw})
	}
	return json.Marshal(entries)
}

func decodeCompletedData(data []byte) (map[dag.DataNodeId]semtype.Value, error) {
	if len(data) == 0 {
		return map[dag.DataNodeId]semtype.Value{}, nil
	}
	var entries []wireEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	out := make(map[dag.DataNodeId]semtype.Value, len(entries))
	for _, e := range entries {
		var id uint64
		if _, err := fmt.Sscanf(e.Key, "%d", &id); err != nil {
			return nil, fmt.Errorf("store: bad data node key %q: %w", e.Key, err)
		}
		v, err := wire.DecodeValue(e.Value)
		if err != nil {
			return nil, err
		}
		out[dag.DataNodeId(id)] = v
	}
	return out, nil
}

func encodeInputs(m map[string]semtype.Value) ([]byte, error) {
	entries := make([]wireEntry, 0, len(m))
	for name, v := range m {
		raw, err := wire.EncodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("store: encoding input %q: %w", name, err)
		}
		entries = append(entries, wireEntry{Key: name, Value: raw})
	}
	return json.Marshal(entries)
}

func decodeInputs(data []byte) (map[string]semtype.Value, error) {
	if len(data) == 0 {
		return map[string]semtype.Value{}, nil
	}
	var entries []wireEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	out := make(map[string]semtype.Value, len(entries))
	for _, e := range entries {
		v, err := wire.DecodeValue(e.Value)
		if err != nil {
			return nil, err
		}
		out[e.Key] = v
	}
	return out, nil
}
