package bearer

import (
	"sync"
	"time"
)

// retransmitEntry tracks the frames of the one outstanding transaction
// awaiting an Ack. Acks sent in response to a peer's segments are not
// tracked here.
type retransmitEntry struct {
	transactionNum uint8
	frames         [][]byte
	sendCount      int
	timer          *time.Timer
	callback       func()
}

func (e *retransmitEntry) stop() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// retransmitTable drives PB-ADV's per-link retransmission of an
// unacknowledged transaction. There is at most one outstanding
// transaction per link at a time, so the table is keyed by transaction
// number purely for sanity checking rather than true concurrency.
type retransmitTable struct {
	mu      sync.Mutex
	entry   *retransmitEntry
	jitter  *JitterCalculator
	repeats int
}

func newRetransmitTable(jitter *JitterCalculator) *retransmitTable {
	if jitter == nil {
		jitter = NewJitterCalculator(nil)
	}
	return &retransmitTable{jitter: jitter}
}

// Add starts retransmitting frames every jittered interval until Ack or
// Remove is called.
func (t *retransmitTable) Add(transactionNum uint8, frames [][]byte, onTimeout func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entry != nil {
		t.entry.stop()
	}

	entry := &retransmitEntry{
		transactionNum: transactionNum,
		frames:         frames,
		sendCount:      1,
	}
	entry.callback = func() {
		if onTimeout != nil {
			onTimeout()
		}
	}
	entry.timer = time.AfterFunc(t.jitter.Delay(), entry.callback)
	t.entry = entry
}

// Ack clears the pending entry for transactionNum, returning true if one
// was found and cancelled.
func (t *retransmitTable) Ack(transactionNum uint8) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entry == nil || t.entry.transactionNum != transactionNum {
		return false
	}
	t.entry.stop()
	t.entry = nil
	return true
}

// Reschedule restarts the timer for another jittered retransmission,
// bumping the send count. Returns the frames to resend and the new send
// count.
func (t *retransmitTable) Reschedule(transactionNum uint8) ([][]byte, int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entry == nil || t.entry.transactionNum != transactionNum {
		return nil, 0, false
	}
	t.entry.sendCount++
	t.entry.stop()
	t.entry.timer = time.AfterFunc(t.jitter.Delay(), t.entry.callback)
	return t.entry.frames, t.entry.sendCount, true
}

// Remove cancels any pending entry regardless of transaction number.
func (t *retransmitTable) Remove() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entry != nil {
		t.entry.stop()
		t.entry = nil
	}
}

// Pending reports whether a retransmission is currently scheduled.
func (t *retransmitTable) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entry != nil
}
