package registry

import "time"

const defaultSendBuffer = 256

type options struct {
	sendBuffer int
	now        func() time.Time
}

func defaultOptions() options {
	return options{
		sendBuffer: defaultSendBuffer,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Option defines a functional configuration type for the registries.
type Option func(*options)

// WithSendBuffer sets the [BACKPRESSURE] threshold.
// It defines the mailbox capacity of every connector created by the Hub.
func WithSendBuffer(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.sendBuffer = size
		}
	}
}

// WithClock replaces the time source used for lastSeen stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
