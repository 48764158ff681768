package provisioning

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/kbell/bleprov/pkg/bearer"
	"github.com/kbell/bleprov/pkg/crypto"
	"github.com/kbell/bleprov/pkg/meshutil"
	"github.com/kbell/bleprov/pkg/pdu"
	"github.com/pion/logging"
)

// recvTimeout is the transaction timer bound, armed whenever the Client
// or Server is waiting for a Provisioning PDU, §5.
const recvTimeout = 60 * time.Second

// Client drives the Bluetooth Mesh Provisioning protocol as Provisioner,
// §4.3. Only one session may be active at a time; a second Start* call
// while one is in progress is rejected.
type Client struct {
	mu  sync.Mutex
	cfg ClientConfig
	log logging.LeveledLogger

	toolbox    *crypto.Toolbox
	cryptoDone chan crypto.CryptoDone

	generation uint64
	state      ClientState

	info SessionInfo
	sel  AuthSelection
	ci   pdu.ConfirmationInputs

	deviceCaps pdu.CapabilitiesPDU

	ownKeyPair *crypto.P256KeyPair
	ecdhSecret [32]byte

	randomLocal [16]byte
	authValue   [16]byte

	confirmationSalt [16]byte
	confirmationKey  [16]byte
	peerConfirmation [16]byte
	peerRandom       [16]byte

	session sessionMaterial

	recvTimer *time.Timer
}

// NewClient creates a Client bound to cfg.Bearer. cfg.Bearer must be
// non-nil.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Bearer == nil {
		return nil, ErrNoBearer
	}
	c := &Client{
		cfg:        cfg,
		state:      ClientIdle,
		cryptoDone: make(chan crypto.CryptoDone, 8),
	}
	if cfg.LoggerFactory != nil {
		c.log = cfg.LoggerFactory.NewLogger("provisioning-client")
	}
	c.toolbox = crypto.NewToolbox(c.cryptoDone, cfg.LoggerFactory)
	cfg.Bearer.Register(c.onRecv, c.onBearerEvent)
	go c.cryptoLoop()
	return c, nil
}

// State returns the Client's current state.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartPBADV begins a provisioning attempt over PB-ADV: enable the PB-ADV
// client role on ifaceID and open a link to info.DeviceUUID.
func (c *Client) StartPBADV(ifaceID int, info SessionInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ClientIdle {
		return ErrSessionActive
	}
	c.beginSession(info)
	if err := c.cfg.Bearer.EnablePBADVClient(ifaceID); err != nil {
		c.state = ClientIdle
		return err
	}
	if err := c.cfg.Bearer.OpenPBADVLink(info.DeviceUUID); err != nil {
		c.state = ClientIdle
		return err
	}
	c.state = ClientWaitLink
	return nil
}

// StartPBGATT begins a provisioning attempt over an already-connected
// PB-GATT link on connID.
func (c *Client) StartPBGATT(connID int, info SessionInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ClientIdle {
		return ErrSessionActive
	}
	c.beginSession(info)
	if err := c.cfg.Bearer.EnablePBGATTClient(connID); err != nil {
		c.state = ClientIdle
		return err
	}
	c.emitEvent(ClientEvent{Kind: ClientEventLinkOpened})
	c.sendInvite()
	return nil
}

func (c *Client) beginSession(info SessionInfo) {
	c.generation++
	c.info = info
	c.ci = pdu.ConfirmationInputs{}
	c.ownKeyPair = info.KeyPair
}

// Cancel aborts the in-progress session, if any. This is treated as a
// protocol error: the link is closed with Fail and a Failed event is
// emitted.
func (c *Client) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ClientIdle {
		return ErrNoSession
	}
	c.fail(FailProtocolError)
	return nil
}

// SelectAuthentication records the application's choice of Start-PDU
// parameters, made in response to ClientEventRecvCapabilities, and sends
// the Start PDU.
func (c *Client) SelectAuthentication(sel AuthSelection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ClientWaitSelectAuth {
		return ErrUnexpectedAction
	}
	if !sel.AuthMethod.IsValid() {
		return ErrInvalidAuthSelection
	}
	if sel.AuthMethod == pdu.AuthMethodStaticOOB && c.info.StaticOOB == nil {
		return ErrInvalidAuthSelection
	}
	if sel.PublicKey == pdu.PublicKeyOOB && c.info.DeviceOOBPublicKey == nil {
		return ErrMissingOOBPublicKey
	}
	c.sel = sel
	param := pdu.StartPDU{
		Algorithm:  sel.Algorithm,
		PublicKey:  sel.PublicKey,
		AuthMethod: sel.AuthMethod,
		AuthAction: sel.AuthAction,
		AuthSize:   sel.AuthSize,
	}.Param()
	if err := c.ci.SetStart(param); err != nil {
		c.fail(FailProtocolError)
		return nil
	}
	c.state = ClientSendStart
	c.send(pdu.StartPDU{
		Algorithm:  sel.Algorithm,
		PublicKey:  sel.PublicKey,
		AuthMethod: sel.AuthMethod,
		AuthAction: sel.AuthAction,
		AuthSize:   sel.AuthSize,
	}.Encode())
	return nil
}

// EnterOutputOOB reports the OOB value the user read off the device's
// display, blink count, etc. size is 0 for a numeric value (data holds a
// 4-byte big-endian number) or 1..8 for an alphanumeric value.
func (c *Client) EnterOutputOOB(size uint8, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ClientWaitInput {
		return ErrUnexpectedAction
	}
	auth, err := meshutil.PackOOBToAuthValue(data, size)
	if err != nil {
		return err
	}
	c.authValue = auth
	c.state = ClientCalcConfirmation
	c.beginConfirmationCalc()
	return nil
}

func (c *Client) sendInvite() {
	param := c.info.AttentionDuration
	if err := c.ci.SetInvite(param); err != nil {
		c.fail(FailProtocolError)
		return
	}
	c.state = ClientSendInvite
	c.send(pdu.InvitePDU{AttentionDuration: param}.Encode())
}

func (c *Client) send(buf []byte) {
	if !c.cfg.Bearer.SendProvisioningPDU(buf) {
		c.fail(FailProtocolError)
	}
}

func (c *Client) closeLink(reason bearer.CloseReason) {
	c.cfg.Bearer.CloseLink(reason)
}

func (c *Client) armRecvTimer() {
	c.stopRecvTimer()
	c.recvTimer = time.AfterFunc(recvTimeout, c.onRecvTimeout)
}

func (c *Client) stopRecvTimer() {
	if c.recvTimer != nil {
		c.recvTimer.Stop()
		c.recvTimer = nil
	}
}

func (c *Client) onRecvTimeout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ClientWaitComplete {
		c.finishSuccess()
		return
	}
	switch c.state {
	case ClientWaitCapabilities, ClientWaitPubKey, ClientWaitInputComplete, ClientWaitConfirmation, ClientWaitRandom:
		c.fail(FailRecvTimeout)
	}
}

// fail runs the common failure transition: stop timers, close the link
// with Fail, bump the generation (discarding any in-flight crypto
// completion), reset to Idle and emit a typed Failed event.
func (c *Client) fail(reason FailReason) {
	if c.log != nil {
		c.log.Debugf("client: failing from %s: %s", c.state, reason)
	}
	c.stopRecvTimer()
	if c.state != ClientIdle {
		c.closeLink(bearer.CloseFail)
	}
	c.generation++
	c.state = ClientIdle
	c.emitEvent(ClientEvent{Kind: ClientEventProvisioningFailed, FailReason: reason})
}

func (c *Client) finishSuccess() {
	c.stopRecvTimer()
	uuid := c.info.DeviceUUID
	c.state = ClientIdle
	c.emitEvent(ClientEvent{
		Kind:        ClientEventProvisioningComplete,
		DeviceUUID:  uuid,
		Address:     c.info.Data.PrimaryAddress,
		NumElements: c.deviceCaps.NumElements,
		DeviceKey:   c.session.DeviceKey,
	})
}

func (c *Client) emitEvent(ev ClientEvent) {
	if c.cfg.OnEvent != nil {
		go c.cfg.OnEvent(ev)
	}
}

// onBearerEvent handles events from the bearer Manager.
func (c *Client) onBearerEvent(ev bearer.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case bearer.EventLinkOpened:
		if c.state == ClientWaitLink {
			c.emitEvent(ClientEvent{Kind: ClientEventLinkOpened})
			c.sendInvite()
		}
	case bearer.EventLinkFailed:
		if c.state == ClientWaitLink {
			c.fail(FailLinkNotEstablished)
		}
	case bearer.EventPduSent:
		c.onPduSent(ev.Opcode)
	case bearer.EventSendTimeout:
		c.fail(FailSendTimeout)
	case bearer.EventLinkClosedByPeer:
		if c.state == ClientWaitComplete && ev.Reason == bearer.CloseSuccess {
			c.finishSuccess()
			return
		}
		if c.state != ClientIdle {
			c.fail(FailLinkClosedByPeer)
		}
	case bearer.EventConnClosed:
		if c.state == ClientWaitComplete {
			c.finishSuccess()
			return
		}
		if c.state != ClientIdle {
			c.fail(FailLinkClosedByPeer)
		}
	}
}

func (c *Client) onPduSent(opcode byte) {
	switch c.state {
	case ClientSendInvite:
		if pdu.Opcode(opcode) == pdu.Invite {
			c.state = ClientWaitCapabilities
			c.armRecvTimer()
		}
	case ClientSendStart:
		if pdu.Opcode(opcode) == pdu.Start {
			c.state = ClientGeneratePubKey
			c.beginGenerateKeyPair()
		}
	case ClientSendPubKey:
		if pdu.Opcode(opcode) == pdu.PublicKey {
			if c.sel.PublicKey == pdu.PublicKeyOOB {
				c.state = ClientValidatePubKey
				c.useOOBDevicePublicKey()
			} else {
				c.state = ClientWaitPubKey
				c.armRecvTimer()
			}
		}
	case ClientSendConfirmation:
		if pdu.Opcode(opcode) == pdu.Confirmation {
			c.state = ClientWaitConfirmation
			c.armRecvTimer()
		}
	case ClientSendRandom:
		if pdu.Opcode(opcode) == pdu.Random {
			c.state = ClientWaitRandom
			c.armRecvTimer()
		}
	case ClientSendData:
		if pdu.Opcode(opcode) == pdu.Data {
			c.state = ClientWaitComplete
			c.armRecvTimer()
		}
	}
}

func (c *Client) beginGenerateKeyPair() {
	if c.ownKeyPair != nil {
		c.onKeyPairReady(c.ownKeyPair)
		return
	}
	c.toolbox.SubmitGenerateP256KeyPair(cryptoCtx{tagGenerateKeyPair, c.generation})
}

func (c *Client) onKeyPairReady(kp *crypto.P256KeyPair) {
	c.ownKeyPair = kp
	pub := kp.P256PublicKey()
	var x, y [32]byte
	copy(x[:], pub[1:33])
	copy(y[:], pub[33:65])
	ppdu := pdu.PublicKeyPDU{X: x, Y: y}
	if err := c.ci.SetProvisionerPublicKey(ppdu.Param()); err != nil {
		c.fail(FailProtocolError)
		return
	}
	c.state = ClientSendPubKey
	c.send(ppdu.Encode())
}

func (c *Client) useOOBDevicePublicKey() {
	var x, y [32]byte
	copy(x[:], c.info.DeviceOOBPublicKey[0:32])
	copy(y[:], c.info.DeviceOOBPublicKey[32:64])
	devPDU := pdu.PublicKeyPDU{X: x, Y: y}
	if err := c.ci.SetDevicePublicKey(devPDU.Param()); err != nil {
		c.fail(FailProtocolError)
		return
	}
	c.beginECDH(x, y)
}

func (c *Client) beginECDH(peerX, peerY [32]byte) {
	c.toolbox.SubmitECDH(cryptoCtx{tagECDH, c.generation}, c.ownKeyPair, peerX, peerY)
}

func (c *Client) onECDHDone(ok bool, secret [32]byte) {
	if !ok {
		c.fail(FailInvalidPublicKey)
		return
	}
	c.ecdhSecret = secret
	c.state = ClientPrepareOob
	c.prepareOob()
}

func (c *Client) prepareOob() {
	switch c.sel.AuthMethod {
	case pdu.AuthMethodNoOOB:
		c.authValue = [16]byte{}
		c.state = ClientCalcConfirmation
		c.beginConfirmationCalc()
	case pdu.AuthMethodStaticOOB:
		if c.info.StaticOOB != nil {
			c.authValue = *c.info.StaticOOB
		}
		c.state = ClientCalcConfirmation
		c.beginConfirmationCalc()
	case pdu.AuthMethodOutputOOB:
		c.state = ClientWaitInput
		c.emitEvent(ClientEvent{Kind: ClientEventEnterOutputOob, OutputOobAction: c.sel.AuthAction})
	case pdu.AuthMethodInputOOB:
		var ev ClientEvent
		ev.Kind = ClientEventDisplayInputOob
		ev.InputOobAction = c.sel.AuthAction
		ev.InputOobSize = c.sel.AuthSize
		if c.sel.AuthSize == 0 {
			n, err := meshutil.GenerateRandomNumeric(8)
			if err != nil {
				c.fail(FailProtocolError)
				return
			}
			ev.InputOobNumber = n
			c.authValue = meshutil.PackNumericOOBToAuthValue(n)
		} else {
			buf := make([]byte, c.sel.AuthSize)
			if err := meshutil.GenerateRandomAlphanumeric(buf); err != nil {
				c.fail(FailProtocolError)
				return
			}
			ev.InputOobData = buf
			auth, err := meshutil.PackOOBToAuthValue(buf, c.sel.AuthSize)
			if err != nil {
				c.fail(FailProtocolError)
				return
			}
			c.authValue = auth
		}
		c.state = ClientWaitInputComplete
		c.armRecvTimer()
		c.emitEvent(ev)
	}
}

func (c *Client) beginConfirmationCalc() {
	if _, err := rand.Read(c.randomLocal[:]); err != nil {
		c.fail(FailProtocolError)
		return
	}
	ciBytes, err := c.ci.Bytes()
	if err != nil {
		c.fail(FailProtocolError)
		return
	}
	c.toolbox.SubmitS1(cryptoCtx{tagConfirmationSalt, c.generation}, ciBytes[:])
}

func (c *Client) onConfirmationSaltDone(salt [16]byte) {
	c.confirmationSalt = salt
	c.toolbox.SubmitK1(cryptoCtx{tagConfirmationKey, c.generation}, salt, c.ecdhSecret[:], []byte("prck"))
}

func (c *Client) onConfirmationKeyDone(key [16]byte) {
	c.confirmationKey = key
	data := append(append([]byte(nil), c.randomLocal[:]...), c.authValue[:]...)
	c.toolbox.SubmitCMAC(cryptoCtx{tagOwnConfirmation, c.generation}, key[:], data)
}

func (c *Client) onOwnConfirmationDone(mac [16]byte) {
	c.state = ClientSendConfirmation
	c.send(pdu.ConfirmationPDU{Value: mac}.Encode())
}

// onRecv handles a reassembled Provisioning PDU from the bearer.
func (c *Client) onRecv(buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	op, err := pdu.DecodeOpcode(buf)
	if err != nil {
		c.fail(FailProtocolError)
		return
	}

	switch c.state {
	case ClientWaitCapabilities:
		if op != pdu.Capabilities {
			c.fail(FailProtocolError)
			return
		}
		capsPDU, err := pdu.DecodeCapabilities(buf)
		if err != nil {
			c.fail(FailProtocolError)
			return
		}
		if err := c.ci.SetCapabilities(capsPDU.Param()); err != nil {
			c.fail(FailProtocolError)
			return
		}
		c.deviceCaps = capsPDU
		c.stopRecvTimer()
		c.state = ClientWaitSelectAuth
		c.emitEvent(ClientEvent{Kind: ClientEventRecvCapabilities, Capabilities: capsPDU})

	case ClientWaitPubKey:
		if op != pdu.PublicKey {
			c.fail(FailProtocolError)
			return
		}
		devPDU, err := pdu.DecodePublicKey(buf)
		if err != nil {
			c.fail(FailProtocolError)
			return
		}
		if err := c.ci.SetDevicePublicKey(devPDU.Param()); err != nil {
			c.fail(FailProtocolError)
			return
		}
		c.stopRecvTimer()
		c.state = ClientValidatePubKey
		c.beginECDH(devPDU.X, devPDU.Y)

	case ClientWaitInputComplete:
		if op != pdu.InputComplete {
			c.fail(FailProtocolError)
			return
		}
		c.stopRecvTimer()
		c.state = ClientCalcConfirmation
		c.beginConfirmationCalc()

	case ClientWaitConfirmation:
		if op != pdu.Confirmation {
			c.fail(FailProtocolError)
			return
		}
		confPDU, err := pdu.DecodeConfirmation(buf)
		if err != nil {
			c.fail(FailProtocolError)
			return
		}
		c.peerConfirmation = confPDU.Value
		c.stopRecvTimer()
		c.state = ClientSendRandom
		c.send(pdu.RandomPDU{Value: c.randomLocal}.Encode())

	case ClientWaitRandom:
		if op != pdu.Random {
			c.fail(FailProtocolError)
			return
		}
		randPDU, err := pdu.DecodeRandom(buf)
		if err != nil {
			c.fail(FailProtocolError)
			return
		}
		c.peerRandom = randPDU.Value
		c.stopRecvTimer()
		c.state = ClientCheckConfirmation
		data := append(append([]byte(nil), c.peerRandom[:]...), c.authValue[:]...)
		c.toolbox.SubmitCMAC(cryptoCtx{tagOwnConfirmation, c.generation}, c.confirmationKey[:], data)
		// Reuse tagOwnConfirmation's slot in the check-confirmation phase;
		// disambiguated by state (CheckConfirmation vs CalcConfirmation).

	case ClientWaitComplete:
		if op != pdu.Complete {
			c.fail(FailProtocolError)
			return
		}
		c.finishSuccess()

	default:
		c.fail(FailProtocolError)
	}
}

func (c *Client) onCheckConfirmationDone(mac [16]byte) {
	if mac != c.peerConfirmation {
		c.fail(FailConfirmation)
		return
	}
	c.state = ClientCalcSessionKey
	c.session = deriveSessionMaterial(c.confirmationSalt, c.randomLocal, c.peerRandom, c.ecdhSecret)
	c.state = ClientEncryptData
	c.beginEncryptData()
}

func (c *Client) beginEncryptData() {
	plain := c.info.Data.Encode()
	var key [crypto.AESCCMKeySize]byte
	copy(key[:], c.session.SessionKey[:])
	var nonce [crypto.AESCCMNonceSize]byte
	copy(nonce[:], c.session.SessionNonce[:])
	c.toolbox.SubmitCCMEncrypt(cryptoCtx{tagCCMEncrypt, c.generation}, key, nonce, plain[:], pdu.DataMICSize)
}

func (c *Client) onDataEncrypted(sealed []byte) {
	dataPDU, err := pdu.NewDataPDU(sealed)
	if err != nil {
		c.fail(FailProtocolError)
		return
	}
	c.state = ClientSendData
	c.send(dataPDU.Encode())
}

// cryptoLoop reads Toolbox completions and dispatches them under the
// Client's mutex. A completion whose generation no longer matches the
// live session is a stale, post-terminal callback and is discarded.
func (c *Client) cryptoLoop() {
	for done := range c.cryptoDone {
		ctx, ok := done.Context.(cryptoCtx)
		if !ok {
			continue
		}
		c.mu.Lock()
		if ctx.generation != c.generation {
			c.mu.Unlock()
			continue
		}
		if done.Err != nil {
			c.fail(FailProtocolError)
			c.mu.Unlock()
			continue
		}
		switch ctx.tag {
		case tagGenerateKeyPair:
			c.onKeyPairReady(done.KeyPair)
		case tagECDH:
			c.onECDHDone(done.Valid, done.Secret)
		case tagConfirmationSalt:
			c.onConfirmationSaltDone(done.MAC)
		case tagConfirmationKey:
			c.onConfirmationKeyDone(done.MAC)
		case tagOwnConfirmation:
			if c.state == ClientCalcConfirmation {
				c.onOwnConfirmationDone(done.MAC)
			} else if c.state == ClientCheckConfirmation {
				c.onCheckConfirmationDone(done.MAC)
			}
		case tagCCMEncrypt:
			c.onDataEncrypted(done.Out)
		}
		c.mu.Unlock()
	}
}
