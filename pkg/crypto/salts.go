package crypto

// zeroKey is the all-zero AES-128 key used as the CMAC key in s1.
var zeroKey [aesBlockSize]byte

// S1 is the salt generation function s1(M) = AES-CMAC_zero(M).
func S1(data []byte) [aesBlockSize]byte {
	c, err := NewCMAC(zeroKey[:])
	if err != nil {
		// zeroKey is always a valid 16-byte key; NewCMAC cannot fail here.
		panic(err)
	}
	return c.Sum(data)
}

// K1 is the key derivation function k1(N, SALT, P):
//
//	T = AES-CMAC_SALT(N)
//	k1 = AES-CMAC_T(P)
func K1(salt [aesBlockSize]byte, n, p []byte) [aesBlockSize]byte {
	t, err := CMACSum(salt[:], n)
	if err != nil {
		panic(err)
	}
	out, err := CMACSum(t[:], p)
	if err != nil {
		panic(err)
	}
	return out
}
