package crypto

import (
	"github.com/pion/logging"
)

// CryptoOp identifies which Crypto Toolbox primitive a CryptoDone event
// reports the completion of.
type CryptoOp int

const (
	OpCMAC CryptoOp = iota
	OpS1
	OpK1
	OpGenerateKeyPair
	OpECDH
	OpCCMEncrypt
	OpCCMDecrypt
)

// String implements fmt.Stringer.
func (op CryptoOp) String() string {
	switch op {
	case OpCMAC:
		return "CMAC"
	case OpS1:
		return "S1"
	case OpK1:
		return "K1"
	case OpGenerateKeyPair:
		return "GenerateKeyPair"
	case OpECDH:
		return "ECDH"
	case OpCCMEncrypt:
		return "CCMEncrypt"
	case OpCCMDecrypt:
		return "CCMDecrypt"
	default:
		return "Unknown"
	}
}

// CryptoDone is the tagged-union event a Toolbox delivers when a primitive
// submitted with one of the Submit* methods finishes. Context is the
// opaque value passed to the matching Submit call, letting a state
// machine correlate a completion with the request that produced it
// without keeping any crypto state of its own. Only the fields relevant
// to Op are populated; the rest are zero.
type CryptoDone struct {
	Op      CryptoOp
	Context any
	Err     error

	MAC     [aesBlockSize]byte
	KeyPair *P256KeyPair
	Valid   bool
	Secret  [32]byte
	Out     []byte
}

// Toolbox runs Crypto Toolbox primitives on worker goroutines and reports
// each completion as a CryptoDone event on a caller-supplied channel, so
// that a Client/Server state machine never blocks its own message loop
// waiting on a cryptographic operation.
type Toolbox struct {
	done chan<- CryptoDone
	log  logging.LeveledLogger
}

// NewToolbox creates a Toolbox that reports completions on done.
// loggerFactory may be nil, in which case the Toolbox logs nothing.
func NewToolbox(done chan<- CryptoDone, loggerFactory logging.LoggerFactory) *Toolbox {
	t := &Toolbox{done: done}
	if loggerFactory != nil {
		t.log = loggerFactory.NewLogger("crypto")
	}
	return t
}

// SubmitCMAC runs CMAC(key, data) on a worker goroutine.
func (t *Toolbox) SubmitCMAC(ctx any, key, data []byte) {
	go func() {
		mac, err := CMACSum(key, data)
		t.emit(CryptoDone{Op: OpCMAC, Context: ctx, Err: err, MAC: mac})
	}()
}

// SubmitS1 runs S1(data) on a worker goroutine.
func (t *Toolbox) SubmitS1(ctx any, data []byte) {
	go func() {
		t.emit(CryptoDone{Op: OpS1, Context: ctx, MAC: S1(data)})
	}()
}

// SubmitK1 runs K1(salt, n, p) on a worker goroutine.
func (t *Toolbox) SubmitK1(ctx any, salt [aesBlockSize]byte, n, p []byte) {
	go func() {
		t.emit(CryptoDone{Op: OpK1, Context: ctx, MAC: K1(salt, n, p)})
	}()
}

// SubmitGenerateP256KeyPair generates a fresh P-256 key pair on a worker
// goroutine.
func (t *Toolbox) SubmitGenerateP256KeyPair(ctx any) {
	go func() {
		kp, err := GenerateP256KeyPair()
		t.emit(CryptoDone{Op: OpGenerateKeyPair, Context: ctx, Err: err, KeyPair: kp})
	}()
}

// SubmitECDH computes the ECDH shared secret on a worker goroutine.
func (t *Toolbox) SubmitECDH(ctx any, priv *P256KeyPair, peerX, peerY [32]byte) {
	go func() {
		ok, secret := ECDHSharedSecret(priv, peerX, peerY)
		t.emit(CryptoDone{Op: OpECDH, Context: ctx, Valid: ok, Secret: secret})
	}()
}

// SubmitCCMEncrypt runs CCMEncrypt on a worker goroutine.
func (t *Toolbox) SubmitCCMEncrypt(ctx any, key [AESCCMKeySize]byte, nonce [AESCCMNonceSize]byte, plaintext []byte, micSize int) {
	go func() {
		out, err := CCMEncrypt(key, nonce, plaintext, micSize)
		t.emit(CryptoDone{Op: OpCCMEncrypt, Context: ctx, Err: err, Out: out})
	}()
}

// SubmitCCMDecrypt runs CCMDecrypt on a worker goroutine.
func (t *Toolbox) SubmitCCMDecrypt(ctx any, key [AESCCMKeySize]byte, nonce [AESCCMNonceSize]byte, ciphertext []byte, micSize int) {
	go func() {
		out, err := CCMDecrypt(key, nonce, ciphertext, micSize)
		t.emit(CryptoDone{Op: OpCCMDecrypt, Context: ctx, Err: err, Out: out})
	}()
}

func (t *Toolbox) emit(done CryptoDone) {
	if t.log != nil {
		if done.Err != nil {
			t.log.Debugf("crypto op %s failed: %v", done.Op, done.Err)
		} else {
			t.log.Tracef("crypto op %s complete", done.Op)
		}
	}
	t.done <- done
}
