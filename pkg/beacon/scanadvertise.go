package beacon

import (
	"sync"
	"time"
)

// Broadcaster is the minimal medium surface an Advertiser needs: the same
// Broadcast(from, data) shape bearer.VirtualAdvertisingMedium exposes.
// Kept as a narrow interface (rather than importing package bearer
// directly) so beacon has no dependency on the bearer's link/transaction
// concerns — it only ever broadcasts or listens for one advertisement
// type.
type Broadcaster interface {
	Broadcast(from int, data []byte)
}

// Advertiser periodically broadcasts a Server's unprovisioned-device
// beacon on a Broadcaster until Stop is called, mirroring
// discovery.Advertiser's service-registration lifecycle but for a
// periodic broadcast rather than a one-shot DNS-SD record.
type Advertiser struct {
	medium Broadcaster
	from   int

	mu   sync.Mutex
	stop chan struct{}
}

// NewAdvertiser returns an Advertiser that broadcasts as identity from
// on medium.
func NewAdvertiser(medium Broadcaster, from int) *Advertiser {
	return &Advertiser{medium: medium, from: from}
}

// Start begins broadcasting payload() every period until Stop is
// called. payload is invoked fresh for each transmission so the beacon
// can reflect state that changes after Start (it never does for this
// protocol, but the shape mirrors a real radio re-reading its
// advertisement buffer on each interval).
func (a *Advertiser) Start(period time.Duration, payload func() Beacon) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stop != nil {
		return
	}
	stop := make(chan struct{})
	a.stop = stop

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		a.medium.Broadcast(a.from, payload().Encode())
		for {
			select {
			case <-ticker.C:
				a.medium.Broadcast(a.from, payload().Encode())
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts periodic broadcasting. It is a no-op if Start was never
// called or Stop already ran.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stop == nil {
		return
	}
	close(a.stop)
	a.stop = nil
}

// ScanHandler is invoked once per well-formed beacon a Scanner observes.
type ScanHandler func(from int, b Beacon)

// Scanner implements bearer.AdvertisingListener, decoding every
// broadcast it observes as an unprovisioned-device beacon and
// forwarding well-formed ones to Handler. Malformed or foreign
// advertisements are dropped silently, the way a real scanner ignores
// AD structures of a type it isn't filtering for.
type Scanner struct {
	Handler ScanHandler
}

// NewScanner returns a Scanner that reports beacons to handler.
func NewScanner(handler ScanHandler) *Scanner {
	return &Scanner{Handler: handler}
}

// OnAdvertisingPDU implements bearer.AdvertisingListener.
func (s *Scanner) OnAdvertisingPDU(from int, data []byte) {
	b, err := Decode(data)
	if err != nil {
		return
	}
	if s.Handler != nil {
		s.Handler(from, b)
	}
}
