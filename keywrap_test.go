package cms

import (
	"crypto/aes"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// TestAESKeyWrap_RFC3394Vectors checks the wrap output against the test
// vectors published in RFC 3394 §4.
func TestAESKeyWrap_RFC3394Vectors(t *testing.T) {
	tests := []struct {
		name    string
		kek     string
		key     string
		wrapped string
	}{
		{
			name:    "128-bit KEK wraps 128-bit key",
			kek:     "000102030405060708090a0b0c0d0e0f",
			key:     "00112233445566778899aabbccddeeff",
			wrapped: "1fa68b0a8112b447aef34bd8fb5a7b829d3e862371d2cfe5",
		},
		{
			name:    "256-bit KEK wraps 128-bit key",
			kek:     "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
			key:     "00112233445566778899aabbccddeeff",
			wrapped: "64e8c3f9ce0f5ba263e9777905818a2a93c8191e7d6e8ae7",
		},
		{
			name:    "256-bit KEK wraps 256-bit key",
			kek:     "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
			key:     "00112233445566778899aabbccddeeff000102030405060708090a0b0c0d0e0f",
			wrapped: "28c9f404c4b810f4cbccb35cfb87f8263f5786e2d80ed326cbc7f0e71a99f43bfb988b9b7a02dd21",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kek := mustHex(t, tt.kek)
			key := mustHex(t, tt.key)

			wrapped, err := aesKeyWrap(kek, key)
			require.NoError(t, err)
			assert.Equal(t, mustHex(t, tt.wrapped), wrapped)

			unwrapped, err := aesKeyUnwrap(kek, wrapped)
			require.NoError(t, err)
			assert.Equal(t, key, unwrapped)
		})
	}
}

func TestAESKeyWrap_BadCEKLength(t *testing.T) {
	kek := make([]byte, 32)
	_, err := aesKeyWrap(kek, make([]byte, 13))
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}

// TestAESKeyUnwrap_Failures verifies that every unwrap failure mode returns
// the identical uniform error value.
func TestAESKeyUnwrap_Failures(t *testing.T) {
	kek := make([]byte, 32)
	wrongKEK := make([]byte, 32)
	wrongKEK[0] = 1

	wrapped, err := aesKeyWrap(kek, make([]byte, 32))
	require.NoError(t, err)

	tests := []struct {
		name string
		kek  []byte
		in   []byte
	}{
		{"too short", kek, wrapped[:8]},
		{"not 8-byte aligned", kek, wrapped[:17]},
		{"bad KEK length", make([]byte, 7), wrapped},
		{"wrong KEK", wrongKEK, wrapped},
		{"corrupted ciphertext", kek, append([]byte{0xFF}, wrapped[1:]...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := aesKeyUnwrap(tt.kek, tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrKeyUnwrapFailed)
			assert.EqualError(t, err, "content encryption key unwrap failed")
		})
	}
}

// TestRFC3211Wrap_RoundTrip wraps and unwraps CEKs of several lengths,
// including ones that force padding up to the two-block minimum.
func TestRFC3211Wrap_RoundTrip(t *testing.T) {
	kek := make([]byte, 32)
	_, err := rand.Read(kek)
	require.NoError(t, err)

	for _, cekLen := range []int{16, 24, 32, 33} {
		cek := make([]byte, cekLen)
		_, err := rand.Read(cek)
		require.NoError(t, err)

		iv := make([]byte, aes.BlockSize)
		_, err = rand.Read(iv)
		require.NoError(t, err)

		wrapped, err := rfc3211Wrap(kek, iv, cek)
		require.NoError(t, err, "CEK length %d", cekLen)
		require.GreaterOrEqual(t, len(wrapped), 2*aes.BlockSize)
		require.Zero(t, len(wrapped)%aes.BlockSize)

		got, err := rfc3211Unwrap(kek, iv, wrapped)
		require.NoError(t, err, "CEK length %d", cekLen)
		assert.Equal(t, cek, got)
	}
}

func TestRFC3211Unwrap_Failures(t *testing.T) {
	kek := make([]byte, 32)
	wrongKEK := make([]byte, 32)
	wrongKEK[0] = 1
	iv := make([]byte, aes.BlockSize)
	wrongIV := make([]byte, aes.BlockSize)
	wrongIV[0] = 1

	cek := make([]byte, 32)
	wrapped, err := rfc3211Wrap(kek, iv, cek)
	require.NoError(t, err)

	tests := []struct {
		name string
		kek  []byte
		iv   []byte
		in   []byte
	}{
		{"too short", kek, iv, wrapped[:aes.BlockSize]},
		{"not block aligned", kek, iv, wrapped[:len(wrapped)-1]},
		{"bad IV length", kek, iv[:8], wrapped},
		{"wrong KEK", wrongKEK, iv, wrapped},
		{"wrong IV", kek, wrongIV, wrapped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rfc3211Unwrap(tt.kek, tt.iv, tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrKeyUnwrapFailed)
		})
	}
}

func TestRFC3211Wrap_InvalidCEKLength(t *testing.T) {
	kek := make([]byte, 32)
	iv := make([]byte, aes.BlockSize)

	_, err := rfc3211Wrap(kek, iv, make([]byte, 2))
	require.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = rfc3211Wrap(kek, iv, make([]byte, 256))
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}
