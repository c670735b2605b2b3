package echoping

import (
	"errors"
	"time"
)

// Default run parameters, used when the caller does not override them
const (
	DefaultCount    = 10
	DefaultInterval = 1 // seconds between sends
	DefaultSize     = 32
	DefaultTimeout  = 1 // seconds to wait for a reply
)

// Valid run parameter ranges. A run never starts outside of them.
const (
	MinInterval = 1
	MaxInterval = 3600
	MinSize     = 4
	MaxSize     = 256
	MinTimeout  = 1
	MaxTimeout  = 30
)

const (
	// payload prefix carrying the send timestamp (microseconds, wraps)
	timeSliceLength = 4
	recvBufferSize  = 512
	ip6HeaderLength = 40

	// stop flag and reply slot are rechecked on every tick
	waitTick = 10 * time.Millisecond
	pollTick = time.Millisecond
)

// Session states
const (
	StateIdle = iota
	StateResolving
	StateRunning
	StateCompleted
	StateFailed
	StateStopped
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrInvalidValue = errors.New("invalid value")
	ErrInvalidAddr  = errors.New("invalid network address")
	ErrNameNotKnown = errors.New("name or service not known")
	ErrSendFailed   = errors.New("couldn't sendto")
	ErrSessionBusy  = errors.New("session busy")
)

// Observer receives intermediate run results, synchronously from within
// Ping: OnReceive after every completed sequence number (with the raw byte
// count of the reply, or of the last failed read attempt), OnWait on every
// pacing tick while idling between sends.
type Observer interface {
	OnReceive(bytes int)
	OnWait()
}
