package cms

import (
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"io"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"golang.org/x/crypto/hkdf"

	pkiasn1 "github.com/smartiq/cms/internal/asn1"
)

// kemriKEKLength is the AES-256 key wrap KEK length used for ML-KEM-768 recipients.
const kemriKEKLength = 32

// buildKEMRecipientInfo builds an OtherRecipientInfo ([4] in the RecipientInfo
// CHOICE) carrying a KEMRecipientInfo (RFC 9629). The shared secret from
// ML-KEM-768 encapsulation is expanded with HKDF-SHA256 into an AES-256 KEK,
// with the DER-encoded CMSORIforKEMOtherInfo binding the wrap parameters.
func buildKEMRecipientInfo(keyID []byte, pub *mlkem768.PublicKey, ukm, cek []byte) (asn1.RawValue, error) {
	ct := make([]byte, mlkem768.CiphertextSize)
	ss := make([]byte, mlkem768.SharedKeySize)
	pub.EncapsulateTo(ct, ss, nil)

	wrapAlgID := pkix.AlgorithmIdentifier{Algorithm: pkiasn1.OIDKeyWrapAES256}

	kek, err := kemDeriveKEK(ss, wrapAlgID, kemriKEKLength, ukm)
	if err != nil {
		return asn1.RawValue{}, err
	}

	wrappedCEK, err := aesKeyWrap(kek, cek)
	if err != nil {
		return asn1.RawValue{}, err
	}

	rid, err := asn1.Marshal(asn1.RawValue{
		Class: asn1.ClassContextSpecific,
		Tag:   0,
		Bytes: keyID,
	})
	if err != nil {
		return asn1.RawValue{}, wrapError(CodeMalformedEncoding, "marshal KEM recipient key identifier", err)
	}

	kemri := pkiasn1.KEMRecipientInfo{
		Version:      0,
		RID:          asn1.RawValue{FullBytes: rid},
		KEM:          pkix.AlgorithmIdentifier{Algorithm: pkiasn1.OIDKEMMLKEM768},
		KEMCT:        ct,
		KDF:          pkix.AlgorithmIdentifier{Algorithm: pkiasn1.OIDKDFHKDFSHA256},
		KEKLength:    kemriKEKLength,
		UKM:          ukm,
		Wrap:         wrapAlgID,
		EncryptedKey: wrappedCEK,
	}

	kemriBytes, err := asn1.Marshal(kemri)
	if err != nil {
		return asn1.RawValue{}, wrapError(CodeMalformedEncoding, "marshal KEMRecipientInfo", err)
	}

	ori := pkiasn1.OtherRecipientInfo{
		ORIType:  pkiasn1.OIDORIKEM,
		ORIValue: asn1.RawValue{FullBytes: kemriBytes},
	}
	der, err := asn1.Marshal(ori)
	if err != nil {
		return asn1.RawValue{}, wrapError(CodeMalformedEncoding, "marshal OtherRecipientInfo", err)
	}
	der[0] = tagORI
	return asn1.RawValue{FullBytes: der}, nil
}

// tryDecryptKEMRI attempts to recover the CEK from an OtherRecipientInfo
// carrying a KEMRecipientInfo whose recipient identifier equals keyID.
// found reports whether the identifier matched.
func tryDecryptKEMRI(ri asn1.RawValue, keyID []byte, priv *mlkem768.PrivateKey) (cek []byte, found bool, err error) {
	var ori pkiasn1.OtherRecipientInfo
	if _, err := asn1.Unmarshal(retag(ri.FullBytes, tagKTRI), &ori); err != nil {
		return nil, false, wrapError(CodeMalformedEncoding, "parsing OtherRecipientInfo", err)
	}
	if !ori.ORIType.Equal(pkiasn1.OIDORIKEM) {
		return nil, false, nil
	}

	var kemri pkiasn1.KEMRecipientInfo
	if _, err := asn1.Unmarshal(ori.ORIValue.FullBytes, &kemri); err != nil {
		return nil, false, wrapError(CodeMalformedEncoding, "parsing KEMRecipientInfo", err)
	}

	if len(kemri.RID.FullBytes) == 0 || kemri.RID.FullBytes[0] != 0x80 {
		return nil, false, nil
	}
	var ski []byte
	if _, err := asn1.UnmarshalWithParams(kemri.RID.FullBytes, &ski, "tag:0"); err != nil {
		return nil, false, nil
	}
	if !bytesEqual(ski, keyID) {
		return nil, false, nil
	}

	if !kemri.KEM.Algorithm.Equal(pkiasn1.OIDKEMMLKEM768) {
		return nil, true, newError(CodeUnsupportedAlgorithm,
			"KEMRecipientInfo uses an unsupported KEM algorithm")
	}
	if !kemri.KDF.Algorithm.Equal(pkiasn1.OIDKDFHKDFSHA256) {
		return nil, true, newError(CodeUnsupportedAlgorithm,
			"KEMRecipientInfo uses an unsupported key derivation function")
	}
	if _, err := kekLengthForWrapOID(kemri.Wrap.Algorithm); err != nil {
		return nil, true, err
	}
	if kemri.KEKLength != 16 && kemri.KEKLength != 24 && kemri.KEKLength != 32 {
		return nil, true, newError(CodeUnsupportedAlgorithm, "KEM KEK length is not an AES key size")
	}
	if len(kemri.KEMCT) != mlkem768.CiphertextSize {
		return nil, true, nil // uniform failure reported by the caller
	}

	ss := make([]byte, mlkem768.SharedKeySize)
	priv.DecapsulateTo(ss, kemri.KEMCT)

	kek, err := kemDeriveKEK(ss, kemri.Wrap, kemri.KEKLength, kemri.UKM)
	if err != nil {
		return nil, true, err
	}

	cek, unwrapErr := aesKeyUnwrap(kek, kemri.EncryptedKey)
	if unwrapErr != nil {
		return nil, true, nil // uniform failure reported by the caller
	}
	return cek, true, nil
}

// kemDeriveKEK expands the KEM shared secret into the key-encryption key with
// HKDF-SHA256. The info input is the DER encoding of CMSORIforKEMOtherInfo,
// binding the wrap algorithm, KEK length, and UKM into the derivation.
func kemDeriveKEK(ss []byte, wrap pkix.AlgorithmIdentifier, kekLen int, ukm []byte) ([]byte, error) {
	info, err := asn1.Marshal(pkiasn1.CMSORIforKEMOtherInfo{
		Wrap:      wrap,
		KEKLength: kekLen,
		UKM:       ukm,
	})
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "marshal CMSORIforKEMOtherInfo", err)
	}

	kek := make([]byte, kekLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ss, nil, info), kek); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "deriving KEK from KEM shared secret", err)
	}
	return kek, nil
}
