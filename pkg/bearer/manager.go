package bearer

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/kbell/bleprov/pkg/beacon"
	"github.com/pion/logging"
)

// RecvFunc delivers a fully reassembled Provisioning PDU to the upper
// layer (the Client or Server state machine).
type RecvFunc func(pdu []byte)

// EventFunc delivers a bearer lifecycle event to the upper layer.
type EventFunc func(Event)

// TransportKind selects which of the two provisioning bearers a Manager
// carries traffic over.
type TransportKind int

const (
	TransportNone TransportKind = iota
	TransportPBADV
	TransportPBGATT
)

// Config configures a Manager. Medium carries PB-ADV link/transaction
// traffic; BeaconMedium carries the separate unprovisioned-device
// beacon advertisement. They are kept as distinct virtual media — a
// simplification of the single real advertising channel both ride on —
// so a listener never has to disambiguate a beacon broadcast from a
// link-layer frame by shape alone.
type Config struct {
	LoggerFactory logging.LoggerFactory
	Medium        *VirtualAdvertisingMedium
	BeaconMedium  *VirtualAdvertisingMedium
	Random        RandomSource
}

// Manager implements the Provisioning Bearer contract of spec §4.1: link
// lifecycle and reliable, ordered, at-most-once delivery of Provisioning
// PDUs over PB-ADV (segmented, with retransmission) or PB-GATT
// (unsegmented, connection-oriented).
type Manager struct {
	mu       sync.Mutex
	log      logging.LeveledLogger
	cfg      Config
	jitter   *JitterCalculator
	ifaceID  int
	mediumID int // this Manager's own Join handle on cfg.Medium, used to suppress hearing its own broadcasts

	recv  RecvFunc
	event EventFunc

	transport TransportKind
	isServer  bool

	// PB-ADV state.
	mediumJoined bool
	deviceUUID   [16]byte
	linkID       uint32
	linkOpen     bool
	linkTimer    *time.Timer

	beaconAdv  *beacon.Advertiser
	beaconScan bool

	txTransNum    uint8
	txStarted     bool
	pendingOpcode byte
	retransmit    *retransmitTable

	rxTransNum  uint8
	rxStarted   bool
	rxDelivered bool
	reassembler *Reassembler

	// PB-GATT state.
	gattPeer   *Manager
	gattConnID int
}

// NewManager returns a Manager ready to be enabled as either a
// PB-ADV/PB-GATT client or server. loggerFactory may be nil.
func NewManager(cfg Config) *Manager {
	m := &Manager{cfg: cfg, jitter: NewJitterCalculator(cfg.Random)}
	if cfg.LoggerFactory != nil {
		m.log = cfg.LoggerFactory.NewLogger("bearer")
	}
	return m
}

// Register installs the upper layer's PDU and event callbacks. It must
// be called before enabling any transport.
func (m *Manager) Register(recv RecvFunc, event EventFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recv = recv
	m.event = event
}

// ConnectGATT wires two Managers together as a direct, in-memory PB-GATT
// connection, standing in for a real GATT write/notify pair.
func ConnectGATT(client, server *Manager) {
	client.mu.Lock()
	client.gattPeer = server
	client.mu.Unlock()

	server.mu.Lock()
	server.gattPeer = client
	server.mu.Unlock()
}

// EnablePBADVServer enables the Server role over PB-ADV, broadcasting
// the unprovisioned-device beacon for uuid every beaconPeriod until a
// link opens. uriHash is optional (nil omits the beacon's URI hash
// field).
func (m *Manager) EnablePBADVServer(ifaceID int, beaconPeriod time.Duration, uuid [16]byte, oobInfo uint16, uriHash *[4]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.Medium == nil || m.cfg.BeaconMedium == nil {
		return ErrNoMedium
	}
	m.transport = TransportPBADV
	m.isServer = true
	m.ifaceID = ifaceID
	m.deviceUUID = uuid
	m.reassembler = NewReassembler()
	m.retransmit = newRetransmitTable(m.jitter)
	m.mediumID = m.cfg.Medium.Join(managerListener{m})
	m.mediumJoined = true

	b := beacon.Beacon{DeviceUUID: uuid, OOBInfo: oobInfo}
	if uriHash != nil {
		b.HasURIHash = true
		b.URIHash = *uriHash
	}
	// -1 matches no Join id, so no BeaconMedium scanner is skipped.
	m.beaconAdv = beacon.NewAdvertiser(m.cfg.BeaconMedium, -1)
	m.beaconAdv.Start(beaconPeriod, func() beacon.Beacon { return b })
	return nil
}

// EnablePBADVClient enables the Client role over PB-ADV. It joins the
// advertising medium but does not scan or open a link until
// OpenPBADVLink is called.
func (m *Manager) EnablePBADVClient(ifaceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.Medium == nil || m.cfg.BeaconMedium == nil {
		return ErrNoMedium
	}
	m.transport = TransportPBADV
	m.isServer = false
	m.ifaceID = ifaceID
	m.reassembler = NewReassembler()
	m.retransmit = newRetransmitTable(m.jitter)
	m.mediumID = m.cfg.Medium.Join(managerListener{m})
	m.mediumJoined = true
	return nil
}

// EnablePBGATTServer enables the Server role over PB-GATT on the given
// (virtual) connection identifier.
func (m *Manager) EnablePBGATTServer(connID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transport = TransportPBGATT
	m.isServer = true
	m.gattConnID = connID
	m.linkOpen = true
	return nil
}

// EnablePBGATTClient enables the Client role over PB-GATT on the given
// (virtual) connection identifier.
func (m *Manager) EnablePBGATTClient(connID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transport = TransportPBGATT
	m.isServer = false
	m.gattConnID = connID
	m.linkOpen = true
	return nil
}

// OpenPBADVLink scans for an unprovisioned-device beacon matching uuid
// and, once seen, opens a PB-ADV link to it. It is a Client-only
// operation.
func (m *Manager) OpenPBADVLink(uuid [16]byte) error {
	m.mu.Lock()
	if m.transport != TransportPBADV || m.isServer {
		m.mu.Unlock()
		return ErrWrongTransport
	}
	if m.linkOpen {
		m.mu.Unlock()
		return ErrLinkAlreadyOpen
	}
	m.deviceUUID = uuid
	m.cfg.BeaconMedium.Join(beacon.NewScanner(func(from int, b beacon.Beacon) {
		m.onBeacon(b)
	}))
	m.linkTimer = time.AfterFunc(LinkTimeout, m.onLinkEstablishTimeout)
	m.mu.Unlock()
	return nil
}

// onBeacon fires (possibly many times) while scanning; it only acts
// once, on the first beacon matching the target UUID.
func (m *Manager) onBeacon(b beacon.Beacon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.linkOpen || m.txStarted || b.DeviceUUID != m.deviceUUID {
		return
	}
	var linkID [4]byte
	if _, err := rand.Read(linkID[:]); err != nil {
		return
	}
	m.linkID = beU32(linkID)
	m.txStarted = true
	m.sendLinkOpenLocked()
}

func (m *Manager) sendLinkOpenLocked() {
	frame := wrapFrame(m.linkID, 0, LinkOpenPDU{DeviceUUID: m.deviceUUID}.Encode())
	m.cfg.Medium.Broadcast(m.mediumID, frame)
	delay := m.jitter.Delay()
	time.AfterFunc(delay, m.retryLinkOpen)
}

func (m *Manager) retryLinkOpen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.linkOpen || m.transport != TransportPBADV || m.isServer {
		return
	}
	m.sendLinkOpenLocked()
}

func (m *Manager) onLinkEstablishTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.linkOpen {
		return
	}
	m.emitLocked(Event{Kind: EventLinkFailed})
}

// SendProvisioningPDU hands a Provisioning PDU (1..65 bytes) to the
// bearer for transmission. It returns false if the link is not open or
// the PDU exceeds the maximum size.
func (m *Manager) SendProvisioningPDU(pdu []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.linkOpen || len(pdu) < 1 || len(pdu) > 65 {
		return false
	}

	switch m.transport {
	case TransportPBGATT:
		peer := m.gattPeer
		if peer != nil {
			frame := append([]byte(nil), pdu...)
			go peer.deliverGATT(frame)
		}
		m.emitLocked(Event{Kind: EventPduSent, Opcode: pdu[0]})
		return true
	case TransportPBADV:
		frames, err := Segment(pdu)
		if err != nil {
			return false
		}
		transNum := m.nextTxTransNum()
		m.pendingOpcode = pdu[0]
		m.startTxTransactionLocked(transNum, frames)
		return true
	default:
		return false
	}
}

func (m *Manager) nextTxTransNum() uint8 {
	start, wrap := ClientTransactionStart, ClientTransactionWrap
	if m.isServer {
		start, wrap = ServerTransactionStart, ServerTransactionWrap
	}
	if !m.txStarted {
		m.txStarted = true
		m.txTransNum = start
		return m.txTransNum
	}
	if m.txTransNum >= wrap {
		m.txTransNum = start
	} else {
		m.txTransNum++
	}
	return m.txTransNum
}

func (m *Manager) startTxTransactionLocked(transNum uint8, frames [][]byte) {
	deadline := time.Now().Add(TransactionTimeout)
	m.broadcastFramesLocked(transNum, frames)

	var onTimeout func()
	onTimeout = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if time.Now().After(deadline) {
			m.retransmit.Remove()
			m.emitLocked(Event{Kind: EventSendTimeout})
			return
		}
		resend, _, ok := m.retransmit.Reschedule(transNum)
		if !ok {
			return
		}
		m.broadcastFramesLocked(transNum, resend)
	}
	m.retransmit.Add(transNum, frames, onTimeout)
}

func (m *Manager) broadcastFramesLocked(transNum uint8, frames [][]byte) {
	for _, f := range frames {
		m.cfg.Medium.Broadcast(m.mediumID, wrapFrame(m.linkID, transNum, f))
	}
}

// CloseLink tears down the current link with reason, for PB-ADV by
// sending a Link Close control PDU; it does not itself notify the
// upper layer (the caller already knows it asked to close).
func (m *Manager) CloseLink(reason CloseReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.transport {
	case TransportPBADV:
		if m.linkOpen {
			frame := wrapFrame(m.linkID, 0, LinkClosePDU{Reason: reason}.Encode())
			m.cfg.Medium.Broadcast(m.mediumID, frame)
		}
		m.teardownLocked()
	case TransportPBGATT:
		peer := m.gattPeer
		m.gattPeer = nil
		m.linkOpen = false
		if peer != nil {
			go peer.deliverConnClosed()
		}
	}
}

// CloseLinkSilent drops all local link state without notifying the peer.
func (m *Manager) CloseLinkSilent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
	if m.transport == TransportPBGATT {
		m.gattPeer = nil
		m.linkOpen = false
	}
}

func (m *Manager) teardownLocked() {
	m.linkOpen = false
	if m.linkTimer != nil {
		m.linkTimer.Stop()
		m.linkTimer = nil
	}
	if m.retransmit != nil {
		m.retransmit.Remove()
	}
	if m.reassembler != nil {
		m.reassembler.Reset()
	}
	m.rxStarted = false
	m.rxDelivered = false
	m.txStarted = false
	if m.beaconAdv != nil {
		m.beaconAdv.Stop()
	}
}

func (m *Manager) emitLocked(ev Event) {
	cb := m.event
	if cb == nil {
		return
	}
	go cb(ev)
}

// deliverGATT is invoked on the receiving Manager's goroutine when its
// PB-GATT peer sends a PDU.
func (m *Manager) deliverGATT(pdu []byte) {
	m.mu.Lock()
	cb := m.recv
	m.mu.Unlock()
	if cb != nil {
		cb(pdu)
	}
}

func (m *Manager) deliverConnClosed() {
	m.mu.Lock()
	m.linkOpen = false
	m.gattPeer = nil
	m.mu.Unlock()
	m.emitLocked(Event{Kind: EventConnClosed})
}

// managerListener adapts Manager to AdvertisingListener without
// exposing OnAdvertisingPDU as part of Manager's own public method set
// (avoiding confusion with the beacon medium's listener interface,
// which Manager never implements).
type managerListener struct{ m *Manager }

func (l managerListener) OnAdvertisingPDU(from int, data []byte) {
	l.m.onAdvertisingPDU(data)
}

func (m *Manager) onAdvertisingPDU(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	linkID, transNum, generic, err := unwrapFrame(frame)
	if err != nil || len(generic) < 1 {
		return
	}
	gpcf, _ := splitSegHeaderByte(generic[0])

	if gpcf == GPCFControl {
		m.handleControlLocked(linkID, transNum, generic)
		return
	}

	if !m.linkOpen || linkID != m.linkID {
		return
	}

	switch gpcf {
	case GPCFStart:
		seg, err := DecodeSegmentStart(generic)
		if err != nil {
			return
		}
		m.handleStartSegmentLocked(transNum, seg)
	case GPCFContinuation:
		seg, err := DecodeSegmentContinuation(generic)
		if err != nil {
			return
		}
		m.handleContinuationSegmentLocked(transNum, seg)
	case GPCFAck:
		if m.retransmit.Ack(transNum) {
			m.emitLocked(Event{Kind: EventPduSent, Opcode: m.pendingOpcode})
		}
	}
}

func (m *Manager) handleControlLocked(linkID uint32, transNum uint8, generic []byte) {
	_, op := splitSegHeaderByte(generic[0])
	switch LinkControlOpcode(op) {
	case LinkOpen:
		if m.isServer {
			open, err := DecodeLinkOpen(generic)
			if err != nil || open.DeviceUUID != m.deviceUUID {
				return
			}
			if m.linkOpen && linkID == m.linkID {
				// Peer missed our Ack; resend without re-opening.
				ack := wrapFrame(m.linkID, 0, LinkAckPDU{}.Encode())
				m.cfg.Medium.Broadcast(m.mediumID, ack)
				return
			}
			if m.linkOpen {
				return
			}
			m.linkID = linkID
			m.linkOpen = true
			if m.beaconAdv != nil {
				m.beaconAdv.Stop()
			}
			ack := wrapFrame(m.linkID, 0, LinkAckPDU{}.Encode())
			m.cfg.Medium.Broadcast(m.mediumID, ack)
			m.emitLocked(Event{Kind: EventLinkOpened})
		}
	case LinkAck:
		if !m.isServer && !m.linkOpen && m.txStarted && linkID == m.linkID {
			m.linkOpen = true
			if m.linkTimer != nil {
				m.linkTimer.Stop()
				m.linkTimer = nil
			}
			m.emitLocked(Event{Kind: EventLinkOpened})
		}
	case LinkClose:
		if m.linkOpen && linkID == m.linkID {
			closePDU, err := DecodeLinkClose(generic)
			reason := CloseFail
			if err == nil {
				reason = closePDU.Reason
			}
			m.teardownLocked()
			m.emitLocked(Event{Kind: EventLinkClosedByPeer, Reason: reason})
		}
	}
}

func (m *Manager) handleStartSegmentLocked(transNum uint8, seg SegmentStart) {
	if m.rxStarted && transNum == m.rxTransNum && m.rxDelivered {
		m.sendAckLocked(transNum)
		return
	}
	if !m.rxStarted || transNum != m.rxTransNum {
		m.reassembler.Reset()
		m.rxTransNum = transNum
		m.rxStarted = true
		m.rxDelivered = false
	}
	if err := m.reassembler.AddStart(seg); err != nil {
		return
	}
	m.maybeDeliverLocked(transNum)
}

func (m *Manager) handleContinuationSegmentLocked(transNum uint8, seg SegmentContinuation) {
	if !m.rxStarted || transNum != m.rxTransNum {
		return
	}
	if m.rxDelivered {
		m.sendAckLocked(transNum)
		return
	}
	if err := m.reassembler.AddContinuation(seg); err != nil {
		return
	}
	m.maybeDeliverLocked(transNum)
}

func (m *Manager) maybeDeliverLocked(transNum uint8) {
	if !m.reassembler.Complete() {
		return
	}
	payload := append([]byte(nil), m.reassembler.Payload()...)
	m.rxDelivered = true
	m.sendAckLocked(transNum)

	cb := m.recv
	if cb != nil {
		go cb(payload)
	}
}

func (m *Manager) sendAckLocked(transNum uint8) {
	ack := wrapFrame(m.linkID, transNum, AckPDU{}.Encode())
	m.cfg.Medium.Broadcast(m.mediumID, ack)
}
