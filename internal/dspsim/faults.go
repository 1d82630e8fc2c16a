package dspsim

import "sync"

// Faults injects misbehavior into a simulated adapter. The zero value
// injects nothing. Counters are consumed as the faults fire.
type Faults struct {
	mu        sync.Mutex
	stall     int
	hang      bool
	glitch    int
	timeouts  int
	shortRead int
	corrupt   int
	lostAcks  int
}

// Stall makes the DSP ignore the next n messages without running them.
func (f *Faults) Stall(n int) {
	f.mu.Lock()
	f.stall = n
	f.mu.Unlock()
}

// Hang stops the DSP responding to anything, resets included.
func (f *Faults) Hang(on bool) {
	f.mu.Lock()
	f.hang = on
	f.mu.Unlock()
}

// Hung reports whether the DSP is hung.
func (f *Faults) Hung() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hang
}

// Glitch makes the next n status register reads unstable.
func (f *Faults) Glitch(n int) {
	f.mu.Lock()
	f.glitch = n
	f.mu.Unlock()
}

// BridgeTimeout fails the next n bridged accesses with a bridge timeout.
func (f *Faults) BridgeTimeout(n int) {
	f.mu.Lock()
	f.timeouts = n
	f.mu.Unlock()
}

// ShortRead withholds n bytes from the next stream read.
func (f *Faults) ShortRead(n int) {
	f.mu.Lock()
	f.shortRead = n
	f.mu.Unlock()
}

// Corrupt makes the next n responses answer a different function.
func (f *Faults) Corrupt(n int) {
	f.mu.Lock()
	f.corrupt = n
	f.mu.Unlock()
}

// LoseAck makes the DSP run the next n messages but never acknowledge
// them, as if the acknowledge were lost on the bus.
func (f *Faults) LoseAck(n int) {
	f.mu.Lock()
	f.lostAcks = n
	f.mu.Unlock()
}

func take(n *int) bool {
	if *n > 0 {
		*n--
		return true
	}
	return false
}

func (f *Faults) drop() bool {
	if f == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hang || take(&f.stall)
}

// unstable returns a nonzero value, distinct from the previous one, while a
// glitch is in effect.
func (f *Faults) unstable() uint32 {
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.glitch == 0 {
		return 0
	}
	n := f.glitch
	f.glitch--
	return uint32(n)
}

func (f *Faults) timeout() bool {
	if f == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return take(&f.timeouts)
}

func (f *Faults) corrupted() bool {
	if f == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return take(&f.corrupt)
}

func (f *Faults) ackLost() bool {
	if f == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return take(&f.lostAcks)
}

func (f *Faults) withhold() int {
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.shortRead
	f.shortRead = 0
	return n
}

func (f *Faults) hung() bool {
	return f != nil && f.Hung()
}
