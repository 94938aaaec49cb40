package events

import "context"

// Publisher pushes a raw frame to one channel of the push transport.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Record is a persisted entity handed to downstream collaborators
// (audit log, analytics) after the write committed.
type Record struct {
	Kind    string
	Key     string
	Payload any
}

// RecordSink receives persisted records. Failures never affect the write
// that produced the record.
type RecordSink interface {
	Emit(ctx context.Context, rec Record) error
}

type NopSink struct{}

func (NopSink) Emit(context.Context, Record) error { return nil }
