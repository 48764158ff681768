package provisioning

import (
	"sync"
	"time"

	"github.com/kbell/bleprov/pkg/bearer"
	"github.com/kbell/bleprov/pkg/crypto"
	"github.com/kbell/bleprov/pkg/meshutil"
	"github.com/kbell/bleprov/pkg/pdu"
	"github.com/pion/logging"
)

// Server drives the Bluetooth Mesh Provisioning protocol as Device,
// §4.4. Only one session may be active at a time.
type Server struct {
	mu  sync.Mutex
	cfg ServerConfig
	log logging.LeveledLogger

	toolbox    *crypto.Toolbox
	cryptoDone chan crypto.CryptoDone

	generation uint64
	state      ServerState

	sel AuthSelection
	ci  pdu.ConfirmationInputs
	provData pdu.ProvisioningData

	ownKeyPair *crypto.P256KeyPair
	ecdhSecret [32]byte

	randomLocal [16]byte
	authValue   [16]byte

	confirmationSalt [16]byte
	confirmationKey  [16]byte
	peerConfirmation [16]byte
	peerRandom       [16]byte

	peerConfirmationReceived bool

	session sessionMaterial

	recvTimer *time.Timer
}

// NewServer creates a Server bound to cfg.Bearer. cfg.Bearer must be
// non-nil.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Bearer == nil {
		return nil, ErrNoBearer
	}
	s := &Server{
		cfg:        cfg,
		state:      ServerIdle,
		cryptoDone: make(chan crypto.CryptoDone, 8),
	}
	if cfg.LoggerFactory != nil {
		s.log = cfg.LoggerFactory.NewLogger("provisioning-server")
	}
	s.toolbox = crypto.NewToolbox(s.cryptoDone, cfg.LoggerFactory)
	cfg.Bearer.Register(s.onRecv, s.onBearerEvent)
	go s.cryptoLoop()
	return s, nil
}

// State returns the Server's current state.
func (s *Server) State() ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EnterPBADV enables the Server role over PB-ADV on ifaceID, broadcasting
// the unprovisioned-device beacon until a Provisioner opens a link.
func (s *Server) EnterPBADV(ifaceID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ServerIdle {
		return ErrSessionActive
	}
	s.beginSession()
	d := s.cfg.Device
	if err := s.cfg.Bearer.EnablePBADVServer(ifaceID, d.BeaconPeriod, d.UUID, d.OOBInfo, d.URIHash); err != nil {
		s.state = ServerIdle
		return err
	}
	s.state = ServerWaitLink
	return nil
}

// EnterPBGATT enables the Server role over an already-connected PB-GATT
// link on connID.
func (s *Server) EnterPBGATT(connID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ServerIdle {
		return ErrSessionActive
	}
	s.beginSession()
	if err := s.cfg.Bearer.EnablePBGATTServer(connID); err != nil {
		s.state = ServerIdle
		return err
	}
	s.state = ServerWaitInvite
	s.armRecvTimer()
	s.emitEvent(ServerEvent{Kind: ServerEventLinkOpened})
	return nil
}

func (s *Server) beginSession() {
	s.generation++
	s.ci = pdu.ConfirmationInputs{}
	s.ownKeyPair = s.cfg.Device.KeyPair
	s.peerConfirmationReceived = false
}

// Cancel aborts the in-progress session, if any.
func (s *Server) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == ServerIdle {
		return ErrNoSession
	}
	s.failLocal(FailProtocolError)
	return nil
}

// InputComplete reports the value the user typed into the device for
// Input OOB authentication. size is 0 for numeric (data holds a 4-byte
// big-endian number) or 1..8 for alphanumeric.
func (s *Server) InputComplete(size uint8, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ServerWaitInput {
		return ErrUnexpectedAction
	}
	auth, err := meshutil.PackOOBToAuthValue(data, size)
	if err != nil {
		return err
	}
	s.authValue = auth
	s.state = ServerSendInputComplete
	s.send(pdu.InputCompletePDU{}.Encode())
	return nil
}

func (s *Server) send(buf []byte) {
	if !s.cfg.Bearer.SendProvisioningPDU(buf) {
		s.failLocal(FailProtocolError)
	}
}

func (s *Server) armRecvTimer() {
	s.stopRecvTimer()
	s.recvTimer = time.AfterFunc(recvTimeout, s.onRecvTimeout)
}

func (s *Server) stopRecvTimer() {
	if s.recvTimer != nil {
		s.recvTimer.Stop()
		s.recvTimer = nil
	}
}

func (s *Server) onRecvTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case ServerWaitInvite, ServerWaitStart, ServerWaitPubKey, ServerWaitConfirmation, ServerWaitRandom, ServerWaitData:
		s.failLocal(FailRecvTimeout)
	case ServerLinkFailed:
		s.cfg.Bearer.CloseLink(bearer.CloseFail)
		s.generation++
		s.state = ServerIdle
	}
}

// failLocal resets to Idle without notifying the peer over the wire: used
// for bearer-level failures (link loss, timeouts) where there is no PDU
// exchange left to have a protocol opinion about.
func (s *Server) failLocal(reason FailReason) {
	if s.log != nil {
		s.log.Debugf("server: failing from %s: %s", s.state, reason)
	}
	s.stopRecvTimer()
	if s.state != ServerIdle {
		s.cfg.Bearer.CloseLink(bearer.CloseFail)
	}
	s.generation++
	s.state = ServerIdle
	s.emitEvent(ServerEvent{Kind: ServerEventProvisioningFailed, FailReason: reason})
}

// sendFailedAndSink reports a protocol-semantic failure to the peer with
// the given wire code, then enters the LinkFailed sink state rather than
// closing the link itself, per §4.4.
func (s *Server) sendFailedAndSink(code pdu.FailedCode, reason FailReason) {
	if s.log != nil {
		s.log.Debugf("server: sending Failed(%s) from %s", code, s.state)
	}
	s.cfg.Bearer.SendProvisioningPDU(pdu.FailedPDU{ErrorCode: code}.Encode())
	s.stopRecvTimer()
	s.generation++
	s.state = ServerLinkFailed
	s.armRecvTimer()
	s.emitEvent(ServerEvent{Kind: ServerEventProvisioningFailed, FailReason: reason})
}

func (s *Server) finishSuccess() {
	s.stopRecvTimer()
	s.state = ServerIdle
	s.emitEvent(ServerEvent{
		Kind:        ServerEventProvisioningComplete,
		DeviceKey:   s.session.DeviceKey,
		NetKey:      s.provData.NetKey,
		NetKeyIndex: s.provData.NetKeyIndex,
		Flags:       s.provData.Flags,
		IVIndex:     s.provData.IVIndex,
		Address:     s.provData.PrimaryAddress,
	})
}

func (s *Server) emitEvent(ev ServerEvent) {
	if s.cfg.OnEvent != nil {
		go s.cfg.OnEvent(ev)
	}
}

func (s *Server) onBearerEvent(ev bearer.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case bearer.EventLinkOpened:
		if s.state == ServerWaitLink {
			s.state = ServerWaitInvite
			s.armRecvTimer()
			s.emitEvent(ServerEvent{Kind: ServerEventLinkOpened})
		}
	case bearer.EventPduSent:
		s.onPduSent(ev.Opcode)
	case bearer.EventSendTimeout:
		if s.state != ServerLinkFailed {
			s.failLocal(FailSendTimeout)
		}
	case bearer.EventLinkClosedByPeer:
		if s.state != ServerIdle {
			if s.state != ServerLinkFailed {
				s.failLocal(FailLinkClosedByPeer)
			} else {
				s.stopRecvTimer()
				s.state = ServerIdle
			}
		}
	case bearer.EventConnClosed:
		if s.state != ServerIdle {
			if s.state != ServerLinkFailed {
				s.failLocal(FailLinkClosedByPeer)
			} else {
				s.stopRecvTimer()
				s.state = ServerIdle
			}
		}
	}
}

func (s *Server) onPduSent(opcode byte) {
	switch s.state {
	case ServerSendCapabilities:
		if pdu.Opcode(opcode) == pdu.Capabilities {
			s.state = ServerWaitStart
			s.armRecvTimer()
		}
	case ServerSendPubKey:
		if pdu.Opcode(opcode) == pdu.PublicKey {
			s.state = ServerWaitPubKey
			s.armRecvTimer()
		}
	case ServerSendInputComplete:
		if pdu.Opcode(opcode) == pdu.InputComplete {
			s.state = ServerCalcConfirmation
			s.beginConfirmationCalc()
		}
	case ServerSendConfirmation:
		if pdu.Opcode(opcode) == pdu.Confirmation {
			if s.peerConfirmationReceived {
				s.state = ServerSendRandom
				s.send(pdu.RandomPDU{Value: s.randomLocal}.Encode())
			} else {
				s.state = ServerWaitConfirmation
				s.armRecvTimer()
			}
		}
	case ServerSendRandom:
		if pdu.Opcode(opcode) == pdu.Random {
			s.state = ServerWaitRandom
			s.armRecvTimer()
		}
	case ServerSendComplete:
		if pdu.Opcode(opcode) == pdu.Complete {
			s.finishSuccess()
		}
	}
}

func (s *Server) onRecv(buf []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, err := pdu.DecodeOpcode(buf)
	if err != nil {
		if s.state != ServerLinkFailed {
			s.sendFailedAndSink(pdu.FailedInvalidPDU, FailProtocolError)
		}
		return
	}

	if s.state == ServerLinkFailed {
		s.cfg.Bearer.SendProvisioningPDU(pdu.FailedPDU{ErrorCode: pdu.FailedUnexpectedPDU}.Encode())
		s.armRecvTimer()
		return
	}

	switch s.state {
	case ServerWaitInvite:
		if op != pdu.Invite {
			s.sendFailedAndSink(pdu.FailedUnexpectedPDU, FailProtocolError)
			return
		}
		invite, err := pdu.DecodeInvite(buf)
		if err != nil {
			s.sendFailedAndSink(pdu.FailedInvalidPDU, FailProtocolError)
			return
		}
		if err := s.ci.SetInvite(invite.AttentionDuration); err != nil {
			s.sendFailedAndSink(pdu.FailedUnexpectedError, FailProtocolError)
			return
		}
		if invite.AttentionDuration != 0 {
			if s.cfg.OnDrawAttention != nil {
				s.cfg.OnDrawAttention(invite.AttentionDuration)
			} else {
				s.emitEvent(ServerEvent{Kind: ServerEventDrawAttention, AttentionSeconds: invite.AttentionDuration})
			}
		}
		caps := sampleCapabilitiesOverride(s.cfg.Device.Capabilities)
		if err := s.ci.SetCapabilities(caps.Param()); err != nil {
			s.sendFailedAndSink(pdu.FailedUnexpectedError, FailProtocolError)
			return
		}
		s.stopRecvTimer()
		s.state = ServerSendCapabilities
		s.send(caps.Encode())

	case ServerWaitStart:
		if op != pdu.Start {
			s.sendFailedAndSink(pdu.FailedUnexpectedPDU, FailProtocolError)
			return
		}
		start, err := pdu.DecodeStart(buf)
		if err != nil {
			s.sendFailedAndSink(pdu.FailedInvalidPDU, FailProtocolError)
			return
		}
		if !s.validateStart(start) {
			s.sendFailedAndSink(pdu.FailedInvalidFormat, FailProtocolError)
			return
		}
		s.sel = AuthSelection{
			Algorithm:  start.Algorithm,
			PublicKey:  start.PublicKey,
			AuthMethod: start.AuthMethod,
			AuthAction: start.AuthAction,
			AuthSize:   start.AuthSize,
		}
		if err := s.ci.SetStart(start.Param()); err != nil {
			s.sendFailedAndSink(pdu.FailedUnexpectedError, FailProtocolError)
			return
		}
		s.stopRecvTimer()
		s.state = ServerGeneratePubKey
		s.beginGenerateKeyPair()

	case ServerWaitPubKey:
		if op != pdu.PublicKey {
			s.sendFailedAndSink(pdu.FailedUnexpectedPDU, FailProtocolError)
			return
		}
		provPDU, err := pdu.DecodePublicKey(buf)
		if err != nil {
			s.sendFailedAndSink(pdu.FailedInvalidPDU, FailProtocolError)
			return
		}
		if err := s.ci.SetProvisionerPublicKey(provPDU.Param()); err != nil {
			s.sendFailedAndSink(pdu.FailedUnexpectedError, FailProtocolError)
			return
		}
		s.stopRecvTimer()
		s.state = ServerValidatePubKey
		s.beginECDH(provPDU.X, provPDU.Y)

	case ServerCalcConfirmation, ServerSendConfirmation:
		if op != pdu.Confirmation {
			s.sendFailedAndSink(pdu.FailedUnexpectedPDU, FailProtocolError)
			return
		}
		confPDU, err := pdu.DecodeConfirmation(buf)
		if err != nil {
			s.sendFailedAndSink(pdu.FailedInvalidPDU, FailProtocolError)
			return
		}
		s.peerConfirmation = confPDU.Value
		s.peerConfirmationReceived = true

	case ServerWaitConfirmation:
		if op != pdu.Confirmation {
			s.sendFailedAndSink(pdu.FailedUnexpectedPDU, FailProtocolError)
			return
		}
		confPDU, err := pdu.DecodeConfirmation(buf)
		if err != nil {
			s.sendFailedAndSink(pdu.FailedInvalidPDU, FailProtocolError)
			return
		}
		s.peerConfirmation = confPDU.Value
		s.stopRecvTimer()
		s.state = ServerSendRandom
		s.send(pdu.RandomPDU{Value: s.randomLocal}.Encode())

	case ServerWaitRandom:
		if op != pdu.Random {
			s.sendFailedAndSink(pdu.FailedUnexpectedPDU, FailProtocolError)
			return
		}
		randPDU, err := pdu.DecodeRandom(buf)
		if err != nil {
			s.sendFailedAndSink(pdu.FailedInvalidPDU, FailProtocolError)
			return
		}
		s.peerRandom = randPDU.Value
		s.stopRecvTimer()
		s.state = ServerCheckConfirmation
		data := append(append([]byte(nil), s.peerRandom[:]...), s.authValue[:]...)
		s.toolbox.SubmitCMAC(cryptoCtx{tagOwnConfirmation, s.generation}, s.confirmationKey[:], data)

	case ServerWaitData:
		if op != pdu.Data {
			s.sendFailedAndSink(pdu.FailedUnexpectedPDU, FailProtocolError)
			return
		}
		dataPDU, err := pdu.DecodeData(buf)
		if err != nil {
			s.sendFailedAndSink(pdu.FailedInvalidPDU, FailProtocolError)
			return
		}
		s.stopRecvTimer()
		s.state = ServerDecryptData
		s.beginDecryptData(dataPDU)

	default:
		s.sendFailedAndSink(pdu.FailedUnexpectedPDU, FailProtocolError)
	}
}

// validateStart checks the Start PDU's fields against this device's
// advertised Capabilities, §4.4.
func (s *Server) validateStart(start pdu.StartPDU) bool {
	caps := sampleCapabilitiesOverride(s.cfg.Device.Capabilities)
	if start.Algorithm != pdu.AlgorithmFIPSP256 {
		return false
	}
	if caps.Algorithms&(1<<uint16(start.Algorithm)) == 0 {
		return false
	}
	if start.PublicKey == pdu.PublicKeyOOB {
		if caps.PublicKeyType == 0 || s.cfg.Device.KeyPair == nil {
			return false
		}
	}
	if !start.AuthMethod.IsValid() {
		return false
	}
	switch start.AuthMethod {
	case pdu.AuthMethodStaticOOB:
		if caps.StaticOOBType == 0 || s.cfg.Device.StaticOOB == nil {
			return false
		}
	case pdu.AuthMethodOutputOOB:
		if caps.OutputOOBSize == 0 || start.AuthAction >= 16 || caps.OutputOOBAction&(1<<start.AuthAction) == 0 {
			return false
		}
		if start.AuthSize == 0 || start.AuthSize > caps.OutputOOBSize {
			return false
		}
	case pdu.AuthMethodInputOOB:
		if caps.InputOOBSize == 0 || start.AuthAction >= 16 || caps.InputOOBAction&(1<<start.AuthAction) == 0 {
			return false
		}
		if start.AuthSize == 0 || start.AuthSize > caps.InputOOBSize {
			return false
		}
	}
	return true
}

func (s *Server) beginGenerateKeyPair() {
	if s.ownKeyPair != nil {
		s.onKeyPairReady(s.ownKeyPair)
		return
	}
	s.toolbox.SubmitGenerateP256KeyPair(cryptoCtx{tagGenerateKeyPair, s.generation})
}

func (s *Server) onKeyPairReady(kp *crypto.P256KeyPair) {
	s.ownKeyPair = kp
	pub := kp.P256PublicKey()
	var x, y [32]byte
	copy(x[:], pub[1:33])
	copy(y[:], pub[33:65])
	ownPDU := pdu.PublicKeyPDU{X: x, Y: y}
	if err := s.ci.SetDevicePublicKey(ownPDU.Param()); err != nil {
		s.sendFailedAndSink(pdu.FailedUnexpectedError, FailProtocolError)
		return
	}
	if s.sel.PublicKey == pdu.PublicKeyOOB {
		// The Provisioner already has our public key out-of-band; skip
		// transmitting it and wait for the Provisioner's own.
		s.state = ServerWaitPubKey
		s.armRecvTimer()
		return
	}
	s.state = ServerSendPubKey
	s.send(ownPDU.Encode())
}

func (s *Server) beginECDH(peerX, peerY [32]byte) {
	s.toolbox.SubmitECDH(cryptoCtx{tagECDH, s.generation}, s.ownKeyPair, peerX, peerY)
}

func (s *Server) onECDHDone(ok bool, secret [32]byte) {
	if !ok {
		s.sendFailedAndSink(pdu.FailedInvalidFormat, FailInvalidPublicKey)
		return
	}
	s.ecdhSecret = secret
	s.state = ServerPrepareOob
	s.prepareOob()
}

func (s *Server) prepareOob() {
	switch s.sel.AuthMethod {
	case pdu.AuthMethodNoOOB:
		s.authValue = [16]byte{}
		s.state = ServerCalcConfirmation
		s.beginConfirmationCalc()
	case pdu.AuthMethodStaticOOB:
		if s.cfg.Device.StaticOOB != nil {
			s.authValue = *s.cfg.Device.StaticOOB
		}
		s.state = ServerCalcConfirmation
		s.beginConfirmationCalc()
	case pdu.AuthMethodOutputOOB:
		var ev ServerEvent
		ev.Kind = ServerEventOutputOob
		ev.OutputOobAction = s.sel.AuthAction
		ev.OutputOobSize = s.sel.AuthSize
		if s.sel.AuthSize == 0 {
			n, err := meshutil.GenerateRandomNumeric(8)
			if err != nil {
				s.sendFailedAndSink(pdu.FailedUnexpectedError, FailProtocolError)
				return
			}
			ev.OutputOobNumber = n
			s.authValue = meshutil.PackNumericOOBToAuthValue(n)
		} else {
			buf := make([]byte, s.sel.AuthSize)
			if err := meshutil.GenerateRandomAlphanumeric(buf); err != nil {
				s.sendFailedAndSink(pdu.FailedUnexpectedError, FailProtocolError)
				return
			}
			ev.OutputOobData = buf
			auth, err := meshutil.PackOOBToAuthValue(buf, s.sel.AuthSize)
			if err != nil {
				s.sendFailedAndSink(pdu.FailedUnexpectedError, FailProtocolError)
				return
			}
			s.authValue = auth
		}
		s.emitEvent(ev)
		// Output OOB is non-blocking on the device side: there is no
		// "wait for output acknowledged" state, unlike the Client's
		// WaitInput. The device has nothing further to do but compute
		// its Confirmation.
		s.emitEvent(ServerEvent{Kind: ServerEventOutputConfirmed})
		s.state = ServerCalcConfirmation
		s.beginConfirmationCalc()
	case pdu.AuthMethodInputOOB:
		s.state = ServerWaitInput
		s.emitEvent(ServerEvent{Kind: ServerEventInputOob, InputOobAction: s.sel.AuthAction})
	}
}

func (s *Server) beginConfirmationCalc() {
	if err := sampleRandomFill(&s.randomLocal); err != nil {
		s.sendFailedAndSink(pdu.FailedUnexpectedError, FailProtocolError)
		return
	}
	ciBytes, err := s.ci.Bytes()
	if err != nil {
		s.sendFailedAndSink(pdu.FailedUnexpectedError, FailProtocolError)
		return
	}
	s.toolbox.SubmitS1(cryptoCtx{tagConfirmationSalt, s.generation}, ciBytes[:])
}

func (s *Server) onConfirmationSaltDone(salt [16]byte) {
	s.confirmationSalt = salt
	s.toolbox.SubmitK1(cryptoCtx{tagConfirmationKey, s.generation}, salt, s.ecdhSecret[:], []byte("prck"))
}

func (s *Server) onConfirmationKeyDone(key [16]byte) {
	s.confirmationKey = key
	data := append(append([]byte(nil), s.randomLocal[:]...), s.authValue[:]...)
	s.toolbox.SubmitCMAC(cryptoCtx{tagOwnConfirmation, s.generation}, key[:], data)
}

func (s *Server) onOwnConfirmationDone(mac [16]byte) {
	s.state = ServerSendConfirmation
	s.send(pdu.ConfirmationPDU{Value: mac}.Encode())
}

func (s *Server) onCheckConfirmationDone(mac [16]byte) {
	if mac != s.peerConfirmation {
		s.sendFailedAndSink(pdu.FailedConfirmationFailed, FailConfirmation)
		return
	}
	s.state = ServerCalcSessionKey
	s.session = deriveSessionMaterial(s.confirmationSalt, s.peerRandom, s.randomLocal, s.ecdhSecret)
	s.state = ServerWaitData
	s.armRecvTimer()
}

func (s *Server) beginDecryptData(dataPDU pdu.DataPDU) {
	var key [crypto.AESCCMKeySize]byte
	copy(key[:], s.session.SessionKey[:])
	var nonce [crypto.AESCCMNonceSize]byte
	copy(nonce[:], s.session.SessionNonce[:])
	s.toolbox.SubmitCCMDecrypt(cryptoCtx{tagCCMDecrypt, s.generation}, key, nonce, dataPDU.CiphertextAndMIC(), pdu.DataMICSize)
}

func (s *Server) onDataDecrypted(plain []byte) {
	data, err := pdu.DecodeProvisioningData(plain)
	if err != nil {
		s.sendFailedAndSink(pdu.FailedDecryptionFailed, FailProtocolError)
		return
	}
	s.provData = data
	s.state = ServerSendComplete
	s.send(pdu.CompletePDU{}.Encode())
}

func (s *Server) cryptoLoop() {
	for done := range s.cryptoDone {
		ctx, ok := done.Context.(cryptoCtx)
		if !ok {
			continue
		}
		s.mu.Lock()
		if ctx.generation != s.generation {
			s.mu.Unlock()
			continue
		}
		if done.Err != nil {
			if ctx.tag == tagCCMDecrypt {
				s.sendFailedAndSink(pdu.FailedDecryptionFailed, FailProtocolError)
			} else {
				s.sendFailedAndSink(pdu.FailedUnexpectedError, FailProtocolError)
			}
			s.mu.Unlock()
			continue
		}
		switch ctx.tag {
		case tagGenerateKeyPair:
			s.onKeyPairReady(done.KeyPair)
		case tagECDH:
			s.onECDHDone(done.Valid, done.Secret)
		case tagConfirmationSalt:
			s.onConfirmationSaltDone(done.MAC)
		case tagConfirmationKey:
			s.onConfirmationKeyDone(done.MAC)
		case tagOwnConfirmation:
			if s.state == ServerCalcConfirmation {
				s.onOwnConfirmationDone(done.MAC)
			} else if s.state == ServerCheckConfirmation {
				s.onCheckConfirmationDone(done.MAC)
			}
		case tagCCMDecrypt:
			s.onDataDecrypted(done.Out)
		}
		s.mu.Unlock()
	}
}
