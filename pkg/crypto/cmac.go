// AES-CMAC implementation for the provisioning Crypto Toolbox.
// This implements AES-CMAC as defined in RFC 4493, built on crypto/aes the
// same way aesccm.go builds its CBC-MAC core on the raw block cipher.

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

// cmacRb is the RFC 4493 constant Rb for a 128-bit block cipher.
const cmacRb = 0x87

// ErrCMACInvalidKeySize is returned when the CMAC key is not 16 bytes.
var ErrCMACInvalidKeySize = errors.New("cmac: invalid key size, must be 16 bytes")

// CMAC is a reusable AES-128-CMAC instance holding the derived subkeys.
type CMAC struct {
	block cipher.Block
	k1    [aesBlockSize]byte
	k2    [aesBlockSize]byte
}

// NewCMAC creates a CMAC instance for a 16-byte key, deriving its subkeys once.
func NewCMAC(key []byte) (*CMAC, error) {
	if len(key) != aesBlockSize {
		return nil, ErrCMACInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	var zero, l [aesBlockSize]byte
	block.Encrypt(l[:], zero[:])

	c := &CMAC{block: block}
	c.k1 = cmacShiftXorRb(l)
	c.k2 = cmacShiftXorRb(c.k1)
	return c, nil
}

// Sum computes the AES-CMAC over the given message.
func (c *CMAC) Sum(message []byte) [aesBlockSize]byte {
	n := len(message)
	aligned := n != 0 && n%aesBlockSize == 0

	var fullBlocks int
	var lastBlock [aesBlockSize]byte

	if aligned {
		fullBlocks = n/aesBlockSize - 1
		copy(lastBlock[:], message[n-aesBlockSize:])
		xorBlock(&lastBlock, &c.k1)
	} else {
		fullBlocks = n / aesBlockSize
		copy(lastBlock[:], cmacPad(message[fullBlocks*aesBlockSize:]))
		xorBlock(&lastBlock, &c.k2)
	}

	var mac [aesBlockSize]byte
	for i := 0; i < fullBlocks; i++ {
		var block [aesBlockSize]byte
		copy(block[:], message[i*aesBlockSize:(i+1)*aesBlockSize])
		xorBlock(&mac, &block)
		c.block.Encrypt(mac[:], mac[:])
	}

	xorBlock(&mac, &lastBlock)
	c.block.Encrypt(mac[:], mac[:])

	return mac
}

// CMACSum is a convenience one-shot function: CMAC(key, data).
func CMACSum(key, data []byte) ([aesBlockSize]byte, error) {
	c, err := NewCMAC(key)
	if err != nil {
		return [aesBlockSize]byte{}, err
	}
	return c.Sum(data), nil
}

// cmacPad implements the RFC 4493 padding function: append a single 1 bit
// followed by as many 0 bits as needed to reach the block size.
func cmacPad(message []byte) []byte {
	padded := make([]byte, aesBlockSize)
	copy(padded, message)
	padded[len(message)] = 0x80
	return padded
}

// cmacShiftXorRb implements the RFC 4493 subkey generation step:
// if MSB(L) == 0 then K = L << 1 else K = (L << 1) xor Rb.
func cmacShiftXorRb(l [aesBlockSize]byte) [aesBlockSize]byte {
	msb := l[0]&0x80 != 0
	var out [aesBlockSize]byte

	var carry byte
	for i := aesBlockSize - 1; i >= 0; i-- {
		out[i] = (l[i] << 1) | carry
		carry = l[i] >> 7
	}
	if msb {
		out[aesBlockSize-1] ^= cmacRb
	}
	return out
}

func xorBlock(dst, src *[aesBlockSize]byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}
