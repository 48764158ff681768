package bearer

import (
	"sync"
)

// AdvertisingListener receives every PDU broadcast on a
// VirtualAdvertisingMedium except those broadcast with its own Join id
// as the sender, the way a real advertising-channel radio does not hear
// its own advertisement but sees every peer's broadcast indiscriminately.
type AdvertisingListener interface {
	OnAdvertisingPDU(from int, data []byte)
}

// VirtualAdvertisingMedium is an in-memory stand-in for the Bluetooth
// LE advertising channels PB-ADV and the unprovisioned device beacon
// both broadcast on. Unlike a point-to-point pipe, every registered
// listener receives every broadcast PDU, since advertising has no
// notion of a destination address — bearer.Manager and beacon.Scanner
// implementations filter on link-id or device UUID themselves.
type VirtualAdvertisingMedium struct {
	mu        sync.RWMutex
	listeners map[int]AdvertisingListener
	nextID    int
}

// NewVirtualAdvertisingMedium returns an empty broadcast medium.
func NewVirtualAdvertisingMedium() *VirtualAdvertisingMedium {
	return &VirtualAdvertisingMedium{
		listeners: make(map[int]AdvertisingListener),
	}
}

// Join registers a listener and returns a handle identifying it as the
// "from" sender on its own future broadcasts.
func (m *VirtualAdvertisingMedium) Join(l AdvertisingListener) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	return id
}

// Leave deregisters a listener previously returned by Join.
func (m *VirtualAdvertisingMedium) Leave(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, id)
}

// Broadcast delivers data to every listener other than from. Delivery
// runs synchronously on the caller's goroutine, one listener at a time,
// so test code can assert on ordering without races.
func (m *VirtualAdvertisingMedium) Broadcast(from int, data []byte) {
	frame := make([]byte, len(data))
	copy(frame, data)

	m.mu.RLock()
	listeners := make(map[int]AdvertisingListener, len(m.listeners))
	for id, l := range m.listeners {
		listeners[id] = l
	}
	m.mu.RUnlock()

	for id, l := range listeners {
		if id == from {
			continue
		}
		l.OnAdvertisingPDU(from, frame)
	}
}
