// Package beacon implements the Bluetooth Mesh unprovisioned-device
// beacon: the advertisement a Server broadcasts while enabled on PB-ADV
// so a Client can discover it by device UUID before opening a link.
//
// Structured the way package discovery structures DNS-SD advertising:
// a factory/registration interface (Advertiser) paired with a
// browse/callback interface (Scanner), generalized here from IP
// multicast to the shared bearer.VirtualAdvertisingMedium broadcast
// domain a BLE advertising channel models.
package beacon

import "encoding/binary"

// BeaconType identifies the advertisement's AD type. Only the
// unprovisioned-device beacon type is used by this protocol.
const BeaconType = 0x00

// Sizes of the beacon's fixed and optional portions:
// type(1) || uuid(16) || oob_info(2) [|| uri_hash(4)].
const (
	MinSize = 1 + 16 + 2
	MaxSize = MinSize + 4
)

// Beacon is the unprovisioned-device beacon payload a Server broadcasts.
type Beacon struct {
	DeviceUUID [16]byte
	OOBInfo    uint16

	// HasURIHash reports whether URIHash is present; the beacon is 19
	// bytes without a URI hash, 23 bytes with one.
	HasURIHash bool
	URIHash    [4]byte
}

// Encode serializes the beacon to its 19- or 23-byte wire form.
func (b Beacon) Encode() []byte {
	size := MinSize
	if b.HasURIHash {
		size = MaxSize
	}
	buf := make([]byte, size)
	buf[0] = BeaconType
	copy(buf[1:17], b.DeviceUUID[:])
	binary.BigEndian.PutUint16(buf[17:19], b.OOBInfo)
	if b.HasURIHash {
		copy(buf[19:23], b.URIHash[:])
	}
	return buf
}

// Decode parses a beacon advertisement.
func Decode(buf []byte) (Beacon, error) {
	if len(buf) != MinSize && len(buf) != MaxSize {
		return Beacon{}, ErrInvalidSize
	}
	if buf[0] != BeaconType {
		return Beacon{}, ErrNotUnprovisionedBeacon
	}
	var b Beacon
	copy(b.DeviceUUID[:], buf[1:17])
	b.OOBInfo = binary.BigEndian.Uint16(buf[17:19])
	if len(buf) == MaxSize {
		b.HasURIHash = true
		copy(b.URIHash[:], buf[19:23])
	}
	return b, nil
}
