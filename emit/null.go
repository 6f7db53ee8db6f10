package emit

import "context"

// NullEmitter discards every event. Useful as the default Emitter when an
// execution has no observability backend configured.
type NullEmitter struct{}

func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

func (n *NullEmitter) Emit(event Event) {}

func (n *NullEmitter) EmitBatch(ctx context.Context, events []Event) error {
	return nil
}

func (n *NullEmitter) Flush(ctx context.Context) error {
	return nil
}
