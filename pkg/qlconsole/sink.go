package qlconsole

import "sync/atomic"

// Sink receives roster deltas. Publish is called synchronously by the
// projector after each accepted mutation and must not block; a sink that
// needs to do I/O should hand the delta off, e.g. through a ChannelSink.
type Sink interface {
	Publish(RosterDelta)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(RosterDelta)

// Publish calls f(d).
func (f SinkFunc) Publish(d RosterDelta) {
	f(d)
}

// MultiSink publishes to each sink in order. A panicking sink does not stop
// delivery to the sinks after it; the first panic is re-raised once every
// sink has been called.
type MultiSink []Sink

// Publish implements Sink.
func (m MultiSink) Publish(d RosterDelta) {
	var first any
	for _, s := range m {
		if s == nil {
			continue
		}
		if r := publishRecover(s, d); r != nil && first == nil {
			first = r
		}
	}
	if first != nil {
		panic(first)
	}
}

func publishRecover(s Sink, d RosterDelta) (r any) {
	defer func() {
		r = recover()
	}()
	s.Publish(d)
	return nil
}

// ChannelSink delivers deltas on a buffered channel without blocking.
// Deltas that do not fit in the buffer are dropped and counted.
type ChannelSink struct {
	ch      chan RosterDelta
	dropped atomic.Uint64
}

// NewChannelSink returns a sink with the given buffer size (minimum 1).
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{ch: make(chan RosterDelta, buffer)}
}

// C returns the delivery channel. It is never closed.
func (s *ChannelSink) C() <-chan RosterDelta {
	return s.ch
}

// Publish implements Sink.
func (s *ChannelSink) Publish(d RosterDelta) {
	select {
	case s.ch <- d:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns how many deltas were dropped because the buffer was full.
func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.Load()
}
