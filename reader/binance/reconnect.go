package binance

import "time"

// connState tracks where the feed connection is in its lifecycle.
type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateStreaming
	stateReconnecting
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateStreaming:
		return "streaming"
	case stateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// reconnectPolicy is the backoff controller for the live feed connection.
// Every transport failure doubles the delay up to the ceiling; a successful
// connect resets it to the floor. Malformed messages are not transport
// failures and never reach this policy.
type reconnectPolicy struct {
	base  time.Duration
	max   time.Duration
	next  time.Duration
	state connState
}

func newReconnectPolicy(base, max time.Duration) *reconnectPolicy {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return &reconnectPolicy{
		base:  base,
		max:   max,
		next:  base,
		state: stateDisconnected,
	}
}

// connecting marks the start of a dial attempt.
func (p *reconnectPolicy) connecting() {
	p.state = stateConnecting
}

// streamOpened marks a successful connect and resets the backoff to its
// floor value.
func (p *reconnectPolicy) streamOpened() {
	p.state = stateStreaming
	p.next = p.base
}

// failure records a transport error (failed dial, read error, close frame or
// read timeout) and returns the delay to sleep before the next attempt.
func (p *reconnectPolicy) failure() time.Duration {
	p.state = stateReconnecting

	delay := p.next
	p.next *= 2
	if p.next > p.max {
		p.next = p.max
	}
	return delay
}
