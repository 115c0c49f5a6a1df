package cms

import (
	"crypto/aes"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	pkiasn1 "github.com/smartiq/cms/internal/asn1"
)

// Password recipient parameters (RFC 3211). The KEK is derived with
// PBKDF2-HMAC-SHA256 and the CEK is wrapped with the RFC 3211 key wrap under
// AES-256-CBC.
const (
	pwriSaltSize   = 16
	pwriIterations = 100_000
	pwriKEKLength  = 32

	// pwriMaxIterations caps the iteration count accepted from a message.
	// An attacker-chosen count near 2^31 would otherwise pin the CPU in the
	// KDF before the unwrap ever runs.
	pwriMaxIterations = 10_000_000
)

// buildPasswordRecipientInfo builds a PasswordRecipientInfo ([3] in the
// RecipientInfo CHOICE) wrapping cek under a key derived from password.
func buildPasswordRecipientInfo(password, cek []byte) (asn1.RawValue, error) {
	salt := make([]byte, pwriSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return asn1.RawValue{}, wrapError(CodeMalformedEncoding, "generating PBKDF2 salt", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return asn1.RawValue{}, wrapError(CodeMalformedEncoding, "generating key wrap IV", err)
	}

	kek := pbkdf2.Key(password, salt, pwriIterations, pwriKEKLength, sha256.New)

	wrappedCEK, err := rfc3211Wrap(kek, iv, cek)
	if err != nil {
		return asn1.RawValue{}, err
	}

	kdfParams, err := asn1.Marshal(pkiasn1.PBKDF2Params{
		Salt:           salt,
		IterationCount: pwriIterations,
		KeyLength:      pwriKEKLength,
		PRF:            pkix.AlgorithmIdentifier{Algorithm: pkiasn1.OIDHMACSHA256},
	})
	if err != nil {
		return asn1.RawValue{}, wrapError(CodeMalformedEncoding, "marshal PBKDF2 parameters", err)
	}

	// id-alg-PWRI-KEK parameters carry the AlgorithmIdentifier of the
	// underlying block cipher, with the wrap IV as its parameter.
	rawIV, err := asn1.Marshal(iv)
	if err != nil {
		return asn1.RawValue{}, wrapError(CodeMalformedEncoding, "marshal key wrap IV", err)
	}
	innerAlg, err := asn1.Marshal(pkix.AlgorithmIdentifier{
		Algorithm:  pkiasn1.OIDContentEncryptionAES256CBC,
		Parameters: asn1.RawValue{FullBytes: rawIV},
	})
	if err != nil {
		return asn1.RawValue{}, wrapError(CodeMalformedEncoding, "marshal PWRI key encryption AlgID", err)
	}

	pwri := pkiasn1.PasswordRecipientInfo{
		Version: 0,
		KeyDerivationAlgorithm: pkix.AlgorithmIdentifier{
			Algorithm:  pkiasn1.OIDPBKDF2,
			Parameters: asn1.RawValue{FullBytes: kdfParams},
		},
		KeyEncryptionAlgorithm: pkix.AlgorithmIdentifier{
			Algorithm:  pkiasn1.OIDAlgPWRIKEK,
			Parameters: asn1.RawValue{FullBytes: innerAlg},
		},
		EncryptedKey: wrappedCEK,
	}

	der, err := asn1.Marshal(pwri)
	if err != nil {
		return asn1.RawValue{}, wrapError(CodeMalformedEncoding, "marshal PasswordRecipientInfo", err)
	}
	der[0] = tagPWRI
	return asn1.RawValue{FullBytes: der}, nil
}

// tryDecryptPWRI attempts to recover the CEK from a PasswordRecipientInfo.
// A wrong password is not distinguishable here; the caller reports the uniform
// unwrap failure.
func tryDecryptPWRI(ri asn1.RawValue, password []byte) ([]byte, error) {
	var pwri pkiasn1.PasswordRecipientInfo
	if _, err := asn1.Unmarshal(retag(ri.FullBytes, tagKTRI), &pwri); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing PasswordRecipientInfo", err)
	}

	if !pwri.KeyDerivationAlgorithm.Algorithm.Equal(pkiasn1.OIDPBKDF2) {
		return nil, newError(CodeUnsupportedAlgorithm,
			"PasswordRecipientInfo uses an unsupported key derivation algorithm")
	}
	var kdfParams pkiasn1.PBKDF2Params
	if _, err := asn1.Unmarshal(pwri.KeyDerivationAlgorithm.Parameters.FullBytes, &kdfParams); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing PBKDF2 parameters", err)
	}
	if len(kdfParams.PRF.Algorithm) > 0 && !kdfParams.PRF.Algorithm.Equal(pkiasn1.OIDHMACSHA256) {
		return nil, newError(CodeUnsupportedAlgorithm,
			"PasswordRecipientInfo uses an unsupported PBKDF2 pseudorandom function")
	}
	if kdfParams.IterationCount < 1 || kdfParams.IterationCount > pwriMaxIterations {
		return nil, newError(CodeUnsupportedAlgorithm,
			fmt.Sprintf("PBKDF2 iteration count %d is outside the accepted range [1, %d]",
				kdfParams.IterationCount, pwriMaxIterations))
	}
	keyLen := kdfParams.KeyLength
	if keyLen == 0 {
		keyLen = pwriKEKLength
	}
	if keyLen != 16 && keyLen != 24 && keyLen != 32 {
		return nil, newError(CodeUnsupportedAlgorithm, "PBKDF2 derived key length is not an AES key size")
	}

	if !pwri.KeyEncryptionAlgorithm.Algorithm.Equal(pkiasn1.OIDAlgPWRIKEK) {
		return nil, newError(CodeUnsupportedAlgorithm,
			"PasswordRecipientInfo uses an unsupported key encryption algorithm")
	}
	var innerAlg pkix.AlgorithmIdentifier
	if _, err := asn1.Unmarshal(pwri.KeyEncryptionAlgorithm.Parameters.FullBytes, &innerAlg); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing PWRI key encryption AlgID", err)
	}
	if !innerAlg.Algorithm.Equal(pkiasn1.OIDContentEncryptionAES256CBC) &&
		!innerAlg.Algorithm.Equal(pkiasn1.OIDContentEncryptionAES128CBC) {
		return nil, newError(CodeUnsupportedAlgorithm,
			"PWRI key wrap uses an unsupported block cipher")
	}
	var iv []byte
	if _, err := asn1.Unmarshal(innerAlg.Parameters.FullBytes, &iv); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing PWRI key wrap IV", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, newError(CodeMalformedEncoding, "PWRI key wrap IV has wrong length")
	}

	kek := pbkdf2.Key(password, kdfParams.Salt, kdfParams.IterationCount, keyLen, sha256.New)

	cek, err := rfc3211Unwrap(kek, iv, pwri.EncryptedKey)
	if err != nil {
		return nil, nil // uniform failure reported by the caller
	}
	return cek, nil
}
