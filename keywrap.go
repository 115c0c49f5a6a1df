package cms

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
)

// aesKeyWrap implements the RFC 3394 AES key wrap.
// kek must be 16 or 32 bytes; cek must be a multiple of 8 bytes.
func aesKeyWrap(kek, cek []byte) ([]byte, error) {
	if len(cek)%8 != 0 {
		return nil, newError(CodeInvalidConfiguration, "AES key wrap: CEK length must be a multiple of 8 bytes")
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, wrapError(CodeInvalidConfiguration, "AES key wrap: creating cipher", err)
	}

	n := len(cek) / 8
	r := make([][]byte, n)
	for i := range r {
		r[i] = make([]byte, 8)
		copy(r[i], cek[i*8:])
	}

	// Initial value per RFC 3394 §2.2.3.
	a := make([]byte, 8)
	for i := range a {
		a[i] = 0xA6
	}

	buf := make([]byte, 16)
	for j := 0; j < 6; j++ {
		for i := 0; i < n; i++ {
			copy(buf[:8], a)
			copy(buf[8:], r[i])
			block.Encrypt(buf, buf)
			t := uint64(n*j + i + 1)
			for k := 7; k >= 0; k-- {
				a[k] = buf[k] ^ byte(t)
				t >>= 8
			}
			copy(r[i], buf[8:])
		}
	}

	wrapped := make([]byte, 8*(n+1))
	copy(wrapped[:8], a)
	for i, ri := range r {
		copy(wrapped[8*(i+1):], ri)
	}
	return wrapped, nil
}

// aesKeyUnwrap implements the RFC 3394 AES key unwrap. All failure modes,
// including the integrity check, return the uniform errUnwrap.
func aesKeyUnwrap(kek, wrapped []byte) ([]byte, error) {
	if len(wrapped) < 16 || len(wrapped)%8 != 0 {
		return nil, errUnwrap
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, errUnwrap
	}

	n := len(wrapped)/8 - 1
	r := make([][]byte, n)
	for i := range r {
		r[i] = make([]byte, 8)
		copy(r[i], wrapped[8*(i+1):])
	}

	a := make([]byte, 8)
	copy(a, wrapped[:8])

	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n - 1; i >= 0; i-- {
			t := uint64(n*j + i + 1)
			tmp := make([]byte, 8)
			copy(tmp, a)
			for k := 7; k >= 0; k-- {
				tmp[k] ^= byte(t)
				t >>= 8
			}
			copy(buf[:8], tmp)
			copy(buf[8:], r[i])
			block.Decrypt(buf, buf)
			copy(a, buf[:8])
			copy(r[i], buf[8:])
		}
	}

	// Verify the integrity check value.
	var bad byte
	for _, v := range a {
		bad |= v ^ 0xA6
	}
	if bad != 0 {
		return nil, errUnwrap
	}

	cek := make([]byte, n*8)
	for i, ri := range r {
		copy(cek[i*8:], ri)
	}
	return cek, nil
}

// rfc3211Wrap implements the RFC 3211 key wrap used by PasswordRecipientInfo.
// The CEK is formatted as length byte, three check bytes (the complement of
// the first three key bytes), the key, and random padding to at least two
// AES blocks, then CBC-encrypted twice with the chaining state carried over
// between passes.
func rfc3211Wrap(kek, iv, cek []byte) ([]byte, error) {
	if len(cek) < 3 || len(cek) > 255 {
		return nil, newError(CodeInvalidConfiguration, "RFC 3211 wrap: invalid CEK length")
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, wrapError(CodeInvalidConfiguration, "RFC 3211 wrap: creating cipher", err)
	}

	formattedLen := 4 + len(cek)
	if rem := formattedLen % aes.BlockSize; rem != 0 {
		formattedLen += aes.BlockSize - rem
	}
	if formattedLen < 2*aes.BlockSize {
		formattedLen = 2 * aes.BlockSize
	}

	formatted := make([]byte, formattedLen)
	formatted[0] = byte(len(cek))
	formatted[1] = ^cek[0]
	formatted[2] = ^cek[1]
	formatted[3] = ^cek[2]
	copy(formatted[4:], cek)
	if _, err := rand.Read(formatted[4+len(cek):]); err != nil {
		return nil, wrapError(CodeInvalidConfiguration, "RFC 3211 wrap: generating padding", err)
	}

	// Two CBC passes over the same BlockMode: the second pass starts from the
	// chaining state left by the first, as RFC 3211 §2.3.1 requires.
	enc := cipher.NewCBCEncrypter(block, iv)
	inner := make([]byte, formattedLen)
	enc.CryptBlocks(inner, formatted)
	wrapped := make([]byte, formattedLen)
	enc.CryptBlocks(wrapped, inner)
	return wrapped, nil
}

// rfc3211Unwrap inverts rfc3211Wrap. All failure modes return the uniform
// errUnwrap so the result cannot serve as a padding or format oracle.
func rfc3211Unwrap(kek, iv, wrapped []byte) ([]byte, error) {
	if len(wrapped) < 2*aes.BlockSize || len(wrapped)%aes.BlockSize != 0 {
		return nil, errUnwrap
	}
	if len(iv) != aes.BlockSize {
		return nil, errUnwrap
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, errUnwrap
	}

	n := len(wrapped) / aes.BlockSize
	lastBlock := wrapped[(n-1)*aes.BlockSize:]
	prevBlock := wrapped[(n-2)*aes.BlockSize : (n-1)*aes.BlockSize]

	// Strip the outer CBC pass. Its implicit IV is the last block of the inner
	// ciphertext, which is recovered first from the final two wrapped blocks.
	innerLast := make([]byte, aes.BlockSize)
	block.Decrypt(innerLast, lastBlock)
	subtle.XORBytes(innerLast, innerLast, prevBlock)

	inner := make([]byte, len(wrapped))
	cipher.NewCBCDecrypter(block, innerLast).CryptBlocks(inner[:(n-1)*aes.BlockSize], wrapped[:(n-1)*aes.BlockSize])
	copy(inner[(n-1)*aes.BlockSize:], innerLast)

	// Strip the inner CBC pass with the IV from the algorithm parameters.
	formatted := make([]byte, len(inner))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(formatted, inner)

	keyLen := int(formatted[0])
	if keyLen < 3 || 4+keyLen > len(formatted) {
		return nil, errUnwrap
	}
	cek := formatted[4 : 4+keyLen]
	bad := (formatted[1] ^ ^cek[0]) | (formatted[2] ^ ^cek[1]) | (formatted[3] ^ ^cek[2])
	if bad != 0 {
		return nil, errUnwrap
	}
	out := make([]byte, keyLen)
	copy(out, cek)
	return out, nil
}
