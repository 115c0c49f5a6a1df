package cms

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"math/big"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"

	pkiasn1 "github.com/smartiq/cms/internal/asn1"
)

// ContentEncryptionAlgorithm identifies the symmetric cipher used to encrypt
// EnvelopedData and EncryptedData content.
type ContentEncryptionAlgorithm int

const (
	// AES256GCM selects AES-256 in GCM mode. This is the default.
	AES256GCM ContentEncryptionAlgorithm = iota
	// AES128GCM selects AES-128 in GCM mode.
	AES128GCM
	// AES128CBC selects AES-128 in CBC mode with PKCS #7 padding.
	AES128CBC
	// AES256CBC selects AES-256 in CBC mode with PKCS #7 padding.
	AES256CBC
)

// gcmNonceSize is the standard 12-byte nonce for AES-GCM per RFC 5084.
const gcmNonceSize = 12

// RecipientInfo CHOICE tags on the wire.
const (
	tagKTRI  = 0x30 // SEQUENCE: KeyTransRecipientInfo
	tagKARI  = 0xA1 // [1]: KeyAgreeRecipientInfo
	tagKEKRI = 0xA2 // [2]: KEKRecipientInfo
	tagPWRI  = 0xA3 // [3]: PasswordRecipientInfo
	tagORI   = 0xA4 // [4]: OtherRecipientInfo
)

// recipientKind identifies the mechanism a configured recipient uses.
type recipientKind int

const (
	kindKeyTransport recipientKind = iota
	kindKeyAgreement
	kindKEK
	kindPassword
	kindKEM
)

// recipientSpec is one configured recipient in an Encryptor.
type recipientSpec struct {
	kind     recipientKind
	cert     *x509.Certificate
	useKeyID bool
	keyID    []byte
	kek      []byte
	password []byte
	kemPub   *mlkem768.PublicKey
}

// Encryptor builds a CMS EnvelopedData message using a fluent builder API.
// Builder methods accumulate configuration and errors; Encrypt reports all
// configuration errors at once. Encryptor methods are not safe for concurrent
// use; Encrypt is safe for concurrent use once the builder is fully configured.
type Encryptor struct {
	recipients    []recipientSpec
	contentAlg    ContentEncryptionAlgorithm
	contentType   asn1.ObjectIdentifier
	ukm           []byte
	maxSize       int64
	maxRecipients int
	errs          []error
}

// NewEncryptor returns a new Encryptor with default settings:
//   - AES-256-GCM content encryption
//   - id-data inner content type
//   - 64 MiB content size limit
//   - 64 recipient capacity
func NewEncryptor() *Encryptor {
	return &Encryptor{
		contentAlg:    AES256GCM,
		contentType:   pkiasn1.OIDData,
		maxSize:       DefaultMaxMessageSize,
		maxRecipients: DefaultMaxRecipients,
	}
}

// addRecipient appends spec unless the recipient capacity is exhausted, in
// which case ErrCapacityExceeded accumulates and the set is left unchanged.
func (e *Encryptor) addRecipient(spec recipientSpec) {
	if len(e.recipients) >= e.maxRecipients {
		e.errs = append(e.errs, newError(CodeCapacityExceeded,
			fmt.Sprintf("recipient count exceeds capacity of %d; use WithMaxRecipients to raise it", e.maxRecipients)))
		return
	}
	e.recipients = append(e.recipients, spec)
}

// WithRecipient adds a certificate recipient. The mechanism is auto-selected
// from the certificate's public key type: RSA keys use RSA-OAEP key transport;
// EC keys use ephemeral-static ECDH key agreement. The recipient is identified
// by issuer and serial number.
func (e *Encryptor) WithRecipient(cert *x509.Certificate) *Encryptor {
	return e.withCertRecipient(cert, false)
}

// WithRecipientKeyID adds a certificate recipient identified by the value of
// its subjectKeyIdentifier extension rather than issuer and serial number.
// For key transport this produces KeyTransRecipientInfo version 2.
func (e *Encryptor) WithRecipientKeyID(cert *x509.Certificate) *Encryptor {
	return e.withCertRecipient(cert, true)
}

func (e *Encryptor) withCertRecipient(cert *x509.Certificate, useKeyID bool) *Encryptor {
	if cert == nil {
		e.errs = append(e.errs, newConfigError("recipient certificate is nil"))
		return e
	}
	if useKeyID && len(cert.SubjectKeyId) == 0 {
		e.errs = append(e.errs, newConfigError(
			"recipient identified by key ID but certificate has no subjectKeyIdentifier extension"))
		return e
	}
	switch cert.PublicKey.(type) {
	case *rsa.PublicKey:
		e.addRecipient(recipientSpec{kind: kindKeyTransport, cert: cert, useKeyID: useKeyID})
	case *ecdsa.PublicKey:
		e.addRecipient(recipientSpec{kind: kindKeyAgreement, cert: cert, useKeyID: useKeyID})
	default:
		e.errs = append(e.errs, newError(CodeUnsupportedAlgorithm,
			fmt.Sprintf("unsupported recipient public key type %T", cert.PublicKey)))
	}
	return e
}

// WithPresharedKEK adds a recipient holding a previously distributed symmetric
// key-encryption key, identified by keyID. The KEK must be 16 or 32 bytes
// (AES-128 or AES-256 key wrap).
func (e *Encryptor) WithPresharedKEK(keyID, kek []byte) *Encryptor {
	if len(keyID) == 0 {
		e.errs = append(e.errs, newConfigError("pre-shared KEK key identifier is empty"))
		return e
	}
	if len(kek) != 16 && len(kek) != 32 {
		e.errs = append(e.errs, newConfigError("pre-shared KEK must be 16 or 32 bytes"))
		return e
	}
	e.addRecipient(recipientSpec{kind: kindKEK, keyID: keyID, kek: kek})
	return e
}

// WithPassword adds a password recipient (RFC 3211). The content-encryption
// key is wrapped under a key derived from the password with PBKDF2-HMAC-SHA256.
func (e *Encryptor) WithPassword(password []byte) *Encryptor {
	if len(password) == 0 {
		e.errs = append(e.errs, newConfigError("recipient password is empty"))
		return e
	}
	e.addRecipient(recipientSpec{kind: kindPassword, password: password})
	return e
}

// WithKEMRecipient adds an ML-KEM-768 recipient (RFC 9629), identified by
// keyID. The content-encryption key is wrapped under a KEK derived from the
// encapsulated shared secret with HKDF-SHA256.
func (e *Encryptor) WithKEMRecipient(keyID []byte, pub *mlkem768.PublicKey) *Encryptor {
	if len(keyID) == 0 {
		e.errs = append(e.errs, newConfigError("KEM recipient key identifier is empty"))
		return e
	}
	if pub == nil {
		e.errs = append(e.errs, newConfigError("KEM recipient public key is nil"))
		return e
	}
	e.addRecipient(recipientSpec{kind: kindKEM, keyID: keyID, kemPub: pub})
	return e
}

// WithUKM supplies user keying material mixed into the KDF of key agreement
// and KEM recipients, varying the derived KEK across messages that reuse the
// same keys. Ignored for other mechanisms.
func (e *Encryptor) WithUKM(ukm []byte) *Encryptor {
	e.ukm = ukm
	return e
}

// WithContentEncryption sets the symmetric cipher for content encryption.
// Defaults to AES256GCM.
func (e *Encryptor) WithContentEncryption(alg ContentEncryptionAlgorithm) *Encryptor {
	e.contentAlg = alg
	return e
}

// WithContentType sets the inner content type OID recorded in
// EncryptedContentInfo. Defaults to id-data.
func (e *Encryptor) WithContentType(oid asn1.ObjectIdentifier) *Encryptor {
	if len(oid) == 0 {
		e.errs = append(e.errs, newConfigError("content type OID is empty"))
		return e
	}
	e.contentType = oid
	return e
}

// WithMaxContentSize sets the maximum content size in bytes. Defaults to
// DefaultMaxMessageSize (64 MiB). Pass UnlimitedMessageSize to disable.
func (e *Encryptor) WithMaxContentSize(maxBytes int64) *Encryptor {
	e.maxSize = maxBytes
	return e
}

// WithMaxRecipients sets the recipient capacity. Defaults to DefaultMaxRecipients.
func (e *Encryptor) WithMaxRecipients(n int) *Encryptor {
	if n < 1 {
		e.errs = append(e.errs, newConfigError("recipient capacity must be at least 1"))
		return e
	}
	e.maxRecipients = n
	return e
}

// Encrypt reads plaintext from r, encrypts it for all configured recipients,
// and returns the DER-encoded CMS ContentInfo wrapping EnvelopedData.
// All builder configuration errors are reported here.
func (e *Encryptor) Encrypt(r io.Reader) ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	plaintext, err := readLimited(r, e.maxSize, "content for encryption")
	if err != nil {
		return nil, err
	}

	cek, ciphertext, encAlgID, err := encryptContent(plaintext, e.contentAlg)
	if err != nil {
		return nil, err
	}

	var recipInfos []asn1.RawValue
	version := 0
	for _, spec := range e.recipients {
		var ri asn1.RawValue
		var riErr error
		switch spec.kind {
		case kindKeyTransport:
			ri, riErr = buildKeyTransRecipientInfo(spec.cert, spec.useKeyID, cek)
			if spec.useKeyID {
				version = maxInt(version, 2)
			}
		case kindKeyAgreement:
			ri, riErr = buildKeyAgreeRecipientInfo(spec.cert, e.ukm, cek)
			version = maxInt(version, 2)
		case kindKEK:
			ri, riErr = buildKEKRecipientInfo(spec.keyID, spec.kek, cek)
			version = maxInt(version, 2)
		case kindPassword:
			ri, riErr = buildPasswordRecipientInfo(spec.password, cek)
			version = maxInt(version, 3)
		case kindKEM:
			ri, riErr = buildKEMRecipientInfo(spec.keyID, spec.kemPub, e.ukm, cek)
			version = maxInt(version, 3)
		}
		if riErr != nil {
			return nil, riErr
		}
		recipInfos = append(recipInfos, ri)
	}

	eci := pkiasn1.EncryptedContentInfo{
		ContentType:                e.contentType,
		ContentEncryptionAlgorithm: encAlgID,
		EncryptedContent:           asn1.RawValue{Bytes: ciphertext, Tag: 0, Class: asn1.ClassContextSpecific},
	}

	ed := pkiasn1.EnvelopedData{
		Version:              version,
		RecipientInfos:       recipInfos,
		EncryptedContentInfo: eci,
	}

	edBytes, err := asn1.Marshal(ed)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "marshal EnvelopedData", err)
	}
	return wrapContentInfo(pkiasn1.OIDEnvelopedData, edBytes)
}

// validate checks builder state and returns a joined error for all problems.
func (e *Encryptor) validate() error {
	var errs []error
	errs = append(errs, e.errs...)
	if len(e.recipients) == 0 && len(e.errs) == 0 {
		errs = append(errs, newConfigError("at least one recipient is required"))
	}
	return joinErrors(errs)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// --- Parsing and decryption ---

// RecipientKind identifies the key management mechanism of a RecipientInfo.
type RecipientKind int

const (
	// RecipientKeyTransport is RSA key transport (KeyTransRecipientInfo).
	RecipientKeyTransport RecipientKind = iota
	// RecipientKeyAgreement is ephemeral-static ECDH (KeyAgreeRecipientInfo).
	RecipientKeyAgreement
	// RecipientKEK is a pre-shared key-encryption key (KEKRecipientInfo).
	RecipientKEK
	// RecipientPassword is password-based key wrap (PasswordRecipientInfo).
	RecipientPassword
	// RecipientKEM is a key encapsulation mechanism (KEMRecipientInfo via
	// OtherRecipientInfo).
	RecipientKEM
	// RecipientUnknown is a RecipientInfo alternative this package does not
	// interpret. The entry is preserved and skipped during decryption.
	RecipientUnknown
)

// Recipient summarizes one RecipientInfo entry of a parsed EnvelopedData.
type Recipient struct {
	// Kind is the key management mechanism.
	Kind RecipientKind
	// KeyID is the key identifier when the recipient is identified by one:
	// the KEKIdentifier for RecipientKEK, the subjectKeyIdentifier for key
	// transport and KEM recipients using that form. Nil otherwise.
	KeyID []byte
	// SerialNumber is the certificate serial number when the recipient is
	// identified by issuer and serial. Nil otherwise.
	SerialNumber *big.Int
}

// ParsedEnvelopedData wraps a parsed EnvelopedData structure for decryption.
type ParsedEnvelopedData struct {
	envelopedData pkiasn1.EnvelopedData
}

// ParseEnvelopedData parses a BER- or DER-encoded CMS ContentInfo wrapping
// EnvelopedData. A message carrying more recipients than the configured
// capacity is rejected with ErrCapacityExceeded.
func ParseEnvelopedData(r io.Reader, opts ...ParseOption) (*ParsedEnvelopedData, error) {
	cfg := newParseConfig(opts)
	derBytes, err := readNormalized(r, cfg)
	if err != nil {
		return nil, err
	}
	return parseEnvelopedDataDER(derBytes, cfg)
}

func parseEnvelopedDataDER(derBytes []byte, cfg *parseConfig) (*ParsedEnvelopedData, error) {
	ci, err := parseContentInfo(derBytes)
	if err != nil {
		return nil, err
	}
	inner, err := unwrapContent(ci, pkiasn1.OIDEnvelopedData, "EnvelopedData")
	if err != nil {
		return nil, err
	}

	var ed pkiasn1.EnvelopedData
	if _, err := asn1.Unmarshal(inner, &ed); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing EnvelopedData", err)
	}
	if len(ed.RecipientInfos) > cfg.maxRecipients {
		return nil, newError(CodeCapacityExceeded,
			fmt.Sprintf("EnvelopedData carries %d recipients, exceeding the limit of %d", len(ed.RecipientInfos), cfg.maxRecipients))
	}

	return &ParsedEnvelopedData{envelopedData: ed}, nil
}

// Recipients summarizes the RecipientInfo entries in encoded order. Entries
// that fail to parse or use an unrecognized CHOICE alternative are reported
// as RecipientUnknown rather than failing the whole message.
func (p *ParsedEnvelopedData) Recipients() []Recipient {
	recipients := make([]Recipient, 0, len(p.envelopedData.RecipientInfos))
	for _, ri := range p.envelopedData.RecipientInfos {
		recipients = append(recipients, summarizeRecipient(ri))
	}
	return recipients
}

func summarizeRecipient(ri asn1.RawValue) Recipient {
	if len(ri.FullBytes) == 0 {
		return Recipient{Kind: RecipientUnknown}
	}
	switch ri.FullBytes[0] {
	case tagKTRI:
		var ktri pkiasn1.KeyTransRecipientInfo
		if _, err := asn1.Unmarshal(ri.FullBytes, &ktri); err != nil {
			return Recipient{Kind: RecipientUnknown}
		}
		r := Recipient{Kind: RecipientKeyTransport}
		fillRecipientID(&r, ktri.RID)
		return r

	case tagKARI:
		var kari pkiasn1.KeyAgreeRecipientInfo
		if _, err := asn1.Unmarshal(retag(ri.FullBytes, tagKTRI), &kari); err != nil {
			return Recipient{Kind: RecipientUnknown}
		}
		r := Recipient{Kind: RecipientKeyAgreement}
		if len(kari.RecipientEncryptedKeys) > 0 {
			fillRecipientID(&r, kari.RecipientEncryptedKeys[0].RID)
		}
		return r

	case tagKEKRI:
		var kekri pkiasn1.KEKRecipientInfo
		if _, err := asn1.Unmarshal(retag(ri.FullBytes, tagKTRI), &kekri); err != nil {
			return Recipient{Kind: RecipientUnknown}
		}
		return Recipient{Kind: RecipientKEK, KeyID: kekri.KEKID.KeyIdentifier}

	case tagPWRI:
		return Recipient{Kind: RecipientPassword}

	case tagORI:
		var ori pkiasn1.OtherRecipientInfo
		if _, err := asn1.Unmarshal(retag(ri.FullBytes, tagKTRI), &ori); err != nil {
			return Recipient{Kind: RecipientUnknown}
		}
		if !ori.ORIType.Equal(pkiasn1.OIDORIKEM) {
			return Recipient{Kind: RecipientUnknown}
		}
		var kemri pkiasn1.KEMRecipientInfo
		if _, err := asn1.Unmarshal(ori.ORIValue.FullBytes, &kemri); err != nil {
			return Recipient{Kind: RecipientUnknown}
		}
		r := Recipient{Kind: RecipientKEM}
		fillRecipientID(&r, kemri.RID)
		return r

	default:
		return Recipient{Kind: RecipientUnknown}
	}
}

// fillRecipientID decodes a RecipientIdentifier CHOICE into the summary.
func fillRecipientID(r *Recipient, rid asn1.RawValue) {
	if len(rid.FullBytes) == 0 {
		return
	}
	switch rid.FullBytes[0] {
	case tagKTRI: // SEQUENCE: IssuerAndSerialNumber
		var isn pkiasn1.IssuerAndSerialNumber
		if _, err := asn1.Unmarshal(rid.FullBytes, &isn); err == nil {
			r.SerialNumber = isn.SerialNumber
		}
	case 0x80: // [0] IMPLICIT OCTET STRING: subjectKeyIdentifier
		var ski []byte
		if _, err := asn1.UnmarshalWithParams(rid.FullBytes, &ski, "tag:0"); err == nil {
			r.KeyID = ski
		}
	}
}

// UnprotectedAttributes returns the decoded unprotected attributes of the
// message, or nil when none are present.
func (p *ParsedEnvelopedData) UnprotectedAttributes() ([]Attribute, error) {
	raw := p.envelopedData.UnprotectedAttrs
	if len(raw.FullBytes) == 0 {
		return nil, nil
	}
	return decodeAttributeSet(retagAsSet(raw.FullBytes))
}

// Decrypt finds the RecipientInfo matching cert, recovers the content
// encryption key with key, and returns the plaintext content.
//
// Recipients are tried in encoded order. A recipient that matches cert but
// fails to unwrap returns ErrKeyUnwrapFailed with no further detail. If no
// recipient matches, ErrNoMatchingRecipient is returned.
func (p *ParsedEnvelopedData) Decrypt(key crypto.PrivateKey, cert *x509.Certificate) ([]byte, error) {
	cek, err := p.decryptCEK(key, cert)
	if err != nil {
		return nil, err
	}
	return decryptContent(p.envelopedData.EncryptedContentInfo, cek)
}

// DecryptWithKEK recovers the content using a pre-shared key-encryption key.
// Only KEKRecipientInfo entries whose KEKIdentifier equals keyID are tried.
func (p *ParsedEnvelopedData) DecryptWithKEK(keyID, kek []byte) ([]byte, error) {
	matched := false
	for _, ri := range p.envelopedData.RecipientInfos {
		if len(ri.FullBytes) == 0 || ri.FullBytes[0] != tagKEKRI {
			continue
		}
		cek, found, err := tryDecryptKEKRI(ri, keyID, kek)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		matched = true
		if cek != nil {
			return decryptContent(p.envelopedData.EncryptedContentInfo, cek)
		}
	}
	if matched {
		return nil, errUnwrap
	}
	return nil, newError(CodeNoMatchingRecipient,
		"no KEKRecipientInfo found matching the provided key identifier")
}

// DecryptWithPassword recovers the content using a password. Every
// PasswordRecipientInfo entry is tried in encoded order.
func (p *ParsedEnvelopedData) DecryptWithPassword(password []byte) ([]byte, error) {
	matched := false
	for _, ri := range p.envelopedData.RecipientInfos {
		if len(ri.FullBytes) == 0 || ri.FullBytes[0] != tagPWRI {
			continue
		}
		matched = true
		cek, err := tryDecryptPWRI(ri, password)
		if err != nil {
			return nil, err
		}
		if cek != nil {
			return decryptContent(p.envelopedData.EncryptedContentInfo, cek)
		}
	}
	if matched {
		return nil, errUnwrap
	}
	return nil, newError(CodeNoMatchingRecipient, "message carries no PasswordRecipientInfo")
}

// DecryptWithKEM recovers the content using an ML-KEM-768 decapsulation key.
// Only KEMRecipientInfo entries whose recipient identifier equals keyID are tried.
func (p *ParsedEnvelopedData) DecryptWithKEM(keyID []byte, priv *mlkem768.PrivateKey) ([]byte, error) {
	matched := false
	for _, ri := range p.envelopedData.RecipientInfos {
		if len(ri.FullBytes) == 0 || ri.FullBytes[0] != tagORI {
			continue
		}
		cek, found, err := tryDecryptKEMRI(ri, keyID, priv)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		matched = true
		if cek != nil {
			return decryptContent(p.envelopedData.EncryptedContentInfo, cek)
		}
	}
	if matched {
		return nil, errUnwrap
	}
	return nil, newError(CodeNoMatchingRecipient,
		"no KEMRecipientInfo found matching the provided key identifier")
}

// decryptCEK iterates RecipientInfos in encoded order and recovers the CEK
// from the first entry matching cert.
func (p *ParsedEnvelopedData) decryptCEK(key crypto.PrivateKey, cert *x509.Certificate) ([]byte, error) {
	for _, ri := range p.envelopedData.RecipientInfos {
		if len(ri.FullBytes) == 0 {
			continue
		}
		switch ri.FullBytes[0] {
		case tagKTRI:
			cek, err := tryDecryptKTRI(ri, key, cert)
			if err != nil || cek != nil {
				return cek, err
			}
		case tagKARI:
			cek, err := tryDecryptKARI(ri, key, cert)
			if err != nil || cek != nil {
				return cek, err
			}
		}
	}
	return nil, newError(CodeNoMatchingRecipient,
		"no RecipientInfo found matching the provided certificate")
}

// tryDecryptKTRI attempts to recover the CEK from a KeyTransRecipientInfo.
// Returns (nil, nil) if the RID does not match cert. A matching entry that
// fails to unwrap returns the uniform errUnwrap.
func tryDecryptKTRI(ri asn1.RawValue, key crypto.PrivateKey, cert *x509.Certificate) ([]byte, error) {
	var ktri pkiasn1.KeyTransRecipientInfo
	if _, err := asn1.Unmarshal(ri.FullBytes, &ktri); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing KeyTransRecipientInfo", err)
	}

	if !matchRIDToCert(ktri.RID, cert) {
		return nil, nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, newError(CodeInvalidConfiguration,
			"KeyTransRecipientInfo matched but private key is not RSA")
	}

	cek, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, rsaKey, ktri.EncryptedKey, nil)
	if err != nil {
		return nil, errUnwrap
	}
	return cek, nil
}

// tryDecryptKARI attempts to recover the CEK from a KeyAgreeRecipientInfo.
// Returns (nil, nil) if no RecipientEncryptedKey matches cert.
func tryDecryptKARI(ri asn1.RawValue, key crypto.PrivateKey, cert *x509.Certificate) ([]byte, error) {
	// Retag [1] → SEQUENCE so asn1.Unmarshal can parse KeyAgreeRecipientInfo.
	var kari pkiasn1.KeyAgreeRecipientInfo
	if _, err := asn1.Unmarshal(retag(ri.FullBytes, tagKTRI), &kari); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing KeyAgreeRecipientInfo", err)
	}

	var encryptedKey []byte
	for _, rek := range kari.RecipientEncryptedKeys {
		if matchRIDToCert(rek.RID, cert) {
			encryptedKey = rek.EncryptedKey
			break
		}
	}
	if encryptedKey == nil {
		return nil, nil
	}

	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, newError(CodeInvalidConfiguration,
			"KeyAgreeRecipientInfo matched but private key is not ECDSA")
	}

	// Parse the ephemeral originator public key from Originator [0] EXPLICIT.
	ephemeralPub, err := parseOriginatorPublicKey(kari.Originator)
	if err != nil {
		return nil, err
	}

	keyWrapOID, err := keyWrapOIDFromKEA(kari.KeyEncryptionAlgorithm)
	if err != nil {
		return nil, err
	}
	kekLen, err := kekLengthForWrapOID(keyWrapOID)
	if err != nil {
		return nil, err
	}

	recipPriv, err := ecKey.ECDH()
	if err != nil {
		return nil, wrapError(CodeInvalidConfiguration, "converting ECDSA private key to ECDH", err)
	}
	sharedSecret, err := recipPriv.ECDH(ephemeralPub)
	if err != nil {
		return nil, errUnwrap
	}

	kek, err := x963KDF(sharedSecret, kari.UKM, kekLen, kari.KeyEncryptionAlgorithm)
	if err != nil {
		return nil, err
	}

	return aesKeyUnwrap(kek, encryptedKey)
}

// tryDecryptKEKRI attempts to recover the CEK from a KEKRecipientInfo whose
// KEKIdentifier equals keyID. found reports whether the identifier matched.
func tryDecryptKEKRI(ri asn1.RawValue, keyID, kek []byte) (cek []byte, found bool, err error) {
	var kekri pkiasn1.KEKRecipientInfo
	if _, err := asn1.Unmarshal(retag(ri.FullBytes, tagKTRI), &kekri); err != nil {
		return nil, false, wrapError(CodeMalformedEncoding, "parsing KEKRecipientInfo", err)
	}
	if !bytesEqual(kekri.KEKID.KeyIdentifier, keyID) {
		return nil, false, nil
	}
	if _, err := kekLengthForWrapOID(kekri.KeyEncryptionAlgorithm.Algorithm); err != nil {
		return nil, true, err
	}
	cek, unwrapErr := aesKeyUnwrap(kek, kekri.EncryptedKey)
	if unwrapErr != nil {
		return nil, true, nil // uniform failure reported by the caller
	}
	return cek, true, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// matchRIDToCert returns true if the RecipientIdentifier RawValue matches cert,
// by IssuerAndSerialNumber (SEQUENCE) or subjectKeyIdentifier ([0] IMPLICIT).
func matchRIDToCert(rid asn1.RawValue, cert *x509.Certificate) bool {
	if len(rid.FullBytes) == 0 {
		return false
	}
	switch rid.FullBytes[0] {
	case tagKTRI: // SEQUENCE: IssuerAndSerialNumber
		var isn pkiasn1.IssuerAndSerialNumber
		if _, err := asn1.Unmarshal(rid.FullBytes, &isn); err != nil {
			return false
		}
		return cert.SerialNumber.Cmp(isn.SerialNumber) == 0 &&
			bytesEqual(isn.Issuer.FullBytes, cert.RawIssuer)

	case 0x80: // [0] IMPLICIT OCTET STRING: subjectKeyIdentifier
		var ski []byte
		if _, err := asn1.UnmarshalWithParams(rid.FullBytes, &ski, "tag:0"); err != nil {
			return false
		}
		return len(cert.SubjectKeyId) > 0 && bytesEqual(ski, cert.SubjectKeyId)

	default:
		return false
	}
}

// --- RecipientInfo construction ---

// buildKeyTransRecipientInfo builds a KeyTransRecipientInfo for an RSA
// recipient using RSA-OAEP with SHA-256.
func buildKeyTransRecipientInfo(cert *x509.Certificate, useKeyID bool, cek []byte) (asn1.RawValue, error) {
	rsaPub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return asn1.RawValue{}, newError(CodeUnsupportedAlgorithm, "recipient has non-RSA key")
	}

	encCEK, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, rsaPub, cek, nil)
	if err != nil {
		return asn1.RawValue{}, wrapError(CodeMalformedEncoding, "RSA-OAEP CEK encryption failed", err)
	}

	rid, version, err := buildRecipientID(cert, useKeyID)
	if err != nil {
		return asn1.RawValue{}, err
	}

	oaepAlgID, err := rsaOAEPAlgID()
	if err != nil {
		return asn1.RawValue{}, err
	}

	ktri := pkiasn1.KeyTransRecipientInfo{
		Version:                version,
		RID:                    rid,
		KeyEncryptionAlgorithm: oaepAlgID,
		EncryptedKey:           encCEK,
	}

	der, err := asn1.Marshal(ktri)
	if err != nil {
		return asn1.RawValue{}, wrapError(CodeMalformedEncoding, "marshal KeyTransRecipientInfo", err)
	}
	return asn1.RawValue{FullBytes: der}, nil
}

// buildRecipientID encodes the RecipientIdentifier CHOICE for cert and returns
// the KeyTransRecipientInfo version it implies: 0 for IssuerAndSerialNumber,
// 2 for subjectKeyIdentifier.
func buildRecipientID(cert *x509.Certificate, useKeyID bool) (asn1.RawValue, int, error) {
	if !useKeyID {
		ridBytes, err := marshalIssuerSerial(cert)
		if err != nil {
			return asn1.RawValue{}, 0, err
		}
		return asn1.RawValue{FullBytes: ridBytes}, 0, nil
	}

	encoded, err := asn1.Marshal(asn1.RawValue{
		Class: asn1.ClassContextSpecific,
		Tag:   0,
		Bytes: cert.SubjectKeyId,
	})
	if err != nil {
		return asn1.RawValue{}, 0, wrapError(CodeMalformedEncoding, "marshal recipient subjectKeyIdentifier", err)
	}
	return asn1.RawValue{FullBytes: encoded}, 2, nil
}

// buildKeyAgreeRecipientInfo builds a KeyAgreeRecipientInfo for an EC recipient
// using ephemeral-static ECDH with the X9.63 KDF and AES key wrap.
func buildKeyAgreeRecipientInfo(cert *x509.Certificate, ukm, cek []byte) (asn1.RawValue, error) {
	ecPub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return asn1.RawValue{}, newError(CodeUnsupportedAlgorithm, "recipient has non-ECDSA key")
	}

	recipPub, err := ecPub.ECDH()
	if err != nil {
		return asn1.RawValue{}, wrapError(CodeUnsupportedAlgorithm,
			"converting recipient ECDSA public key to ECDH", err)
	}

	// Generate an ephemeral key on the same curve.
	ephemPriv, err := recipPub.Curve().GenerateKey(rand.Reader)
	if err != nil {
		return asn1.RawValue{}, wrapError(CodeMalformedEncoding, "generating ephemeral ECDH key", err)
	}

	sharedSecret, err := ephemPriv.ECDH(recipPub)
	if err != nil {
		return asn1.RawValue{}, wrapError(CodeMalformedEncoding, "computing ECDH shared secret", err)
	}

	kaOID, kwOID, err := ecdhOIDsForCurve(recipPub.Curve())
	if err != nil {
		return asn1.RawValue{}, err
	}
	kekLen, err := kekLengthForWrapOID(kwOID)
	if err != nil {
		return asn1.RawValue{}, err
	}

	keaAlgID, err := ecdhKEAAlgID(kaOID, kwOID)
	if err != nil {
		return asn1.RawValue{}, err
	}

	kek, err := x963KDF(sharedSecret, ukm, kekLen, keaAlgID)
	if err != nil {
		return asn1.RawValue{}, err
	}

	wrappedCEK, err := aesKeyWrap(kek, cek)
	if err != nil {
		return asn1.RawValue{}, err
	}

	ridBytes, err := marshalIssuerSerial(cert)
	if err != nil {
		return asn1.RawValue{}, err
	}

	originatorBytes, err := marshalOriginatorPublicKey(ephemPriv.PublicKey(), recipPub.Curve())
	if err != nil {
		return asn1.RawValue{}, err
	}

	kari := pkiasn1.KeyAgreeRecipientInfo{
		Version:                3,
		Originator:             asn1.RawValue{FullBytes: originatorBytes},
		UKM:                    ukm,
		KeyEncryptionAlgorithm: keaAlgID,
		RecipientEncryptedKeys: []pkiasn1.RecipientEncryptedKey{{
			RID:          asn1.RawValue{FullBytes: ridBytes},
			EncryptedKey: wrappedCEK,
		}},
	}

	// Marshal KARI as SEQUENCE first, then retag as [1] CONSTRUCTED for the
	// RecipientInfo CHOICE.
	der, err := asn1.Marshal(kari)
	if err != nil {
		return asn1.RawValue{}, wrapError(CodeMalformedEncoding, "marshal KeyAgreeRecipientInfo", err)
	}
	der[0] = tagKARI
	return asn1.RawValue{FullBytes: der}, nil
}

// buildKEKRecipientInfo builds a KEKRecipientInfo wrapping the CEK under a
// pre-shared AES key-encryption key.
func buildKEKRecipientInfo(keyID, kek, cek []byte) (asn1.RawValue, error) {
	kwOID := pkiasn1.OIDKeyWrapAES256
	if len(kek) == 16 {
		kwOID = pkiasn1.OIDKeyWrapAES128
	}

	wrappedCEK, err := aesKeyWrap(kek, cek)
	if err != nil {
		return asn1.RawValue{}, err
	}

	kekri := pkiasn1.KEKRecipientInfo{
		Version:                4,
		KEKID:                  pkiasn1.KEKIdentifier{KeyIdentifier: keyID},
		KeyEncryptionAlgorithm: pkix.AlgorithmIdentifier{Algorithm: kwOID},
		EncryptedKey:           wrappedCEK,
	}

	der, err := asn1.Marshal(kekri)
	if err != nil {
		return asn1.RawValue{}, wrapError(CodeMalformedEncoding, "marshal KEKRecipientInfo", err)
	}
	der[0] = tagKEKRI
	return asn1.RawValue{FullBytes: der}, nil
}

// --- Content encryption ---

// encryptContent generates a random CEK, encrypts plaintext with the chosen
// algorithm, and returns the CEK, ciphertext, and AlgorithmIdentifier.
func encryptContent(plaintext []byte, alg ContentEncryptionAlgorithm) (cek, ciphertext []byte, algID pkix.AlgorithmIdentifier, err error) {
	switch alg {
	case AES256GCM:
		return encryptAESGCM(plaintext, 32)
	case AES128GCM:
		return encryptAESGCM(plaintext, 16)
	case AES256CBC:
		return encryptAESCBC(plaintext, 32)
	case AES128CBC:
		return encryptAESCBC(plaintext, 16)
	default:
		return nil, nil, pkix.AlgorithmIdentifier{},
			newError(CodeUnsupportedAlgorithm, fmt.Sprintf("unsupported content encryption algorithm %d", alg))
	}
}

// encryptAESGCM generates a fresh random CEK and encrypts plaintext with AES-GCM.
func encryptAESGCM(plaintext []byte, keyLen int) (cek, ciphertext []byte, algID pkix.AlgorithmIdentifier, err error) {
	cek = make([]byte, keyLen)
	if _, err = rand.Read(cek); err != nil {
		return nil, nil, pkix.AlgorithmIdentifier{}, wrapError(CodeMalformedEncoding, "generating AES-GCM key", err)
	}
	ciphertext, algID, err = sealAESGCM(plaintext, cek)
	return cek, ciphertext, algID, err
}

// encryptAESCBC generates a fresh random CEK and encrypts plaintext with
// AES-CBC (PKCS #7 padded).
func encryptAESCBC(plaintext []byte, keyLen int) (cek, ciphertext []byte, algID pkix.AlgorithmIdentifier, err error) {
	cek = make([]byte, keyLen)
	if _, err = rand.Read(cek); err != nil {
		return nil, nil, pkix.AlgorithmIdentifier{}, wrapError(CodeMalformedEncoding, "generating AES-CBC key", err)
	}
	ciphertext, algID, err = sealAESCBC(plaintext, cek)
	return cek, ciphertext, algID, err
}

// sealAESGCM encrypts plaintext with AES-GCM under key using a fresh random nonce.
func sealAESGCM(plaintext, key []byte) (ciphertext []byte, algID pkix.AlgorithmIdentifier, err error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err = rand.Read(nonce); err != nil {
		return nil, pkix.AlgorithmIdentifier{}, wrapError(CodeMalformedEncoding, "generating AES-GCM nonce", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, pkix.AlgorithmIdentifier{}, wrapError(CodeMalformedEncoding, "creating AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, pkix.AlgorithmIdentifier{}, wrapError(CodeMalformedEncoding, "creating AES-GCM cipher", err)
	}
	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)

	rawParams, err := asn1.Marshal(pkiasn1.GCMParameters{Nonce: nonce})
	if err != nil {
		return nil, pkix.AlgorithmIdentifier{}, wrapError(CodeMalformedEncoding, "marshal GCM parameters", err)
	}

	oid := pkiasn1.OIDContentEncryptionAES256GCM
	if len(key) == 16 {
		oid = pkiasn1.OIDContentEncryptionAES128GCM
	}
	algID = pkix.AlgorithmIdentifier{
		Algorithm:  oid,
		Parameters: asn1.RawValue{FullBytes: rawParams},
	}
	return ciphertext, algID, nil
}

// sealAESCBC encrypts plaintext with AES-CBC (PKCS #7 padded) under key using
// a fresh random IV. The IV is encoded as an OCTET STRING parameter.
func sealAESCBC(plaintext, key []byte) (ciphertext []byte, algID pkix.AlgorithmIdentifier, err error) {
	iv := make([]byte, aes.BlockSize)
	if _, err = rand.Read(iv); err != nil {
		return nil, pkix.AlgorithmIdentifier{}, wrapError(CodeMalformedEncoding, "generating AES-CBC IV", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, pkix.AlgorithmIdentifier{}, wrapError(CodeMalformedEncoding, "creating AES cipher", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	rawIV, err := asn1.Marshal(iv)
	if err != nil {
		return nil, pkix.AlgorithmIdentifier{}, wrapError(CodeMalformedEncoding, "marshal AES-CBC IV", err)
	}

	oid := pkiasn1.OIDContentEncryptionAES256CBC
	if len(key) == 16 {
		oid = pkiasn1.OIDContentEncryptionAES128CBC
	}
	algID = pkix.AlgorithmIdentifier{
		Algorithm:  oid,
		Parameters: asn1.RawValue{FullBytes: rawIV},
	}
	return ciphertext, algID, nil
}

// decryptContent decrypts the ciphertext in eci using cek.
func decryptContent(eci pkiasn1.EncryptedContentInfo, cek []byte) ([]byte, error) {
	if len(eci.EncryptedContent.FullBytes) == 0 {
		return nil, newError(CodeMalformedEncoding, "EncryptedContentInfo carries no encrypted content")
	}
	ciphertext := eci.EncryptedContent.Bytes
	algOID := eci.ContentEncryptionAlgorithm.Algorithm

	switch {
	case algOID.Equal(pkiasn1.OIDContentEncryptionAES128GCM) ||
		algOID.Equal(pkiasn1.OIDContentEncryptionAES256GCM):
		return decryptAESGCM(ciphertext, cek, eci.ContentEncryptionAlgorithm)

	case algOID.Equal(pkiasn1.OIDContentEncryptionAES128CBC) ||
		algOID.Equal(pkiasn1.OIDContentEncryptionAES256CBC):
		return decryptAESCBC(ciphertext, cek, eci.ContentEncryptionAlgorithm)

	default:
		return nil, newError(CodeUnsupportedAlgorithm,
			fmt.Sprintf("unsupported content encryption algorithm OID %s", algOID))
	}
}

// decryptAESGCM decrypts AES-GCM ciphertext.
func decryptAESGCM(ciphertext, cek []byte, algID pkix.AlgorithmIdentifier) ([]byte, error) {
	var params pkiasn1.GCMParameters
	if _, err := asn1.Unmarshal(algID.Parameters.FullBytes, &params); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing GCM parameters", err)
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "creating AES cipher for GCM decryption", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(params.Nonce))
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "creating AES-GCM cipher", err)
	}

	plaintext, err := gcm.Open(nil, params.Nonce, ciphertext, nil)
	if err != nil {
		return nil, newError(CodeBadPadding, "AES-GCM authentication tag verification failed")
	}
	return plaintext, nil
}

// decryptAESCBC decrypts AES-CBC ciphertext and removes PKCS #7 padding.
func decryptAESCBC(ciphertext, cek []byte, algID pkix.AlgorithmIdentifier) ([]byte, error) {
	var iv []byte
	if _, err := asn1.Unmarshal(algID.Parameters.FullBytes, &iv); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing AES-CBC IV", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, newError(CodeMalformedEncoding,
			fmt.Sprintf("AES-CBC IV must be %d bytes, got %d", aes.BlockSize, len(iv)))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, newError(CodeMalformedEncoding,
			"AES-CBC ciphertext length is not a multiple of block size")
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "creating AES cipher for CBC decryption", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext, aes.BlockSize)
}

// --- Key agreement support ---

// marshalOriginatorPublicKey encodes the ephemeral public key as the [0] EXPLICIT
// Originator field content expected by KeyAgreeRecipientInfo.
//
// RFC 5652 §6.2.2: Originator is [0] EXPLICIT CHOICE; the OriginatorPublicKey
// alternative is [1] IMPLICIT { AlgorithmIdentifier, BIT STRING }.
func marshalOriginatorPublicKey(pub *ecdh.PublicKey, curve ecdh.Curve) ([]byte, error) {
	curveOID, err := curveToOID(curve)
	if err != nil {
		return nil, err
	}

	curveOIDBytes, err := asn1.Marshal(curveOID)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "marshal curve OID for originator key", err)
	}

	opk := pkiasn1.OriginatorPublicKey{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  pkiasn1.OIDECPublicKey,
			Parameters: asn1.RawValue{FullBytes: curveOIDBytes},
		},
		PublicKey: asn1.BitString{Bytes: pub.Bytes(), BitLength: len(pub.Bytes()) * 8},
	}

	opkBytes, err := asn1.Marshal(opk)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "marshal OriginatorPublicKey", err)
	}
	// Retag SEQUENCE (0x30) → [1] CONSTRUCTED (0xA1) for the CHOICE.
	opkBytes[0] = 0xA1

	// Wrap in [0] EXPLICIT for the Originator field.
	wrapped, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        0,
		IsCompound: true,
		Bytes:      opkBytes,
	})
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "marshal Originator [0] EXPLICIT wrapper", err)
	}
	return wrapped, nil
}

// parseOriginatorPublicKey extracts the ephemeral *ecdh.PublicKey from the
// Originator RawValue in a KeyAgreeRecipientInfo.
func parseOriginatorPublicKey(originator asn1.RawValue) (*ecdh.PublicKey, error) {
	// originator is the [0] EXPLICIT wrapper; its Bytes contain the
	// [1] IMPLICIT OriginatorPublicKey.
	inner := originator.Bytes
	if len(inner) == 0 {
		return nil, newError(CodeMalformedEncoding, "Originator field is empty")
	}

	var opk pkiasn1.OriginatorPublicKey
	if _, err := asn1.Unmarshal(retag(inner, tagKTRI), &opk); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing OriginatorPublicKey", err)
	}

	var curveOID asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(opk.Algorithm.Parameters.FullBytes, &curveOID); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing EC curve OID from OriginatorPublicKey", err)
	}

	curve, err := oidToCurve(curveOID)
	if err != nil {
		return nil, err
	}

	pub, err := curve.NewPublicKey(opk.PublicKey.Bytes)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing ephemeral EC public key bytes", err)
	}
	return pub, nil
}

// rsaOAEPAlgID returns the AlgorithmIdentifier for RSA-OAEP with SHA-256 per RFC 4055.
func rsaOAEPAlgID() (pkix.AlgorithmIdentifier, error) {
	hashAlgID := pkix.AlgorithmIdentifier{Algorithm: pkiasn1.OIDDigestAlgorithmSHA256}
	mgfParams, err := asn1.Marshal(hashAlgID)
	if err != nil {
		return pkix.AlgorithmIdentifier{}, wrapError(CodeMalformedEncoding, "marshal MGF1 hash AlgID", err)
	}

	params := pkiasn1.RSAOAEPParams{
		HashAlgorithm: hashAlgID,
		MaskGenAlgorithm: pkix.AlgorithmIdentifier{
			Algorithm:  pkiasn1.OIDMGF1,
			Parameters: asn1.RawValue{FullBytes: mgfParams},
		},
	}
	rawParams, err := asn1.Marshal(params)
	if err != nil {
		return pkix.AlgorithmIdentifier{}, wrapError(CodeMalformedEncoding, "marshal RSAES-OAEP params", err)
	}

	return pkix.AlgorithmIdentifier{
		Algorithm:  pkiasn1.OIDKeyTransportRSAOAEP,
		Parameters: asn1.RawValue{FullBytes: rawParams},
	}, nil
}

// ecdhKEAAlgID builds the KeyEncryptionAlgorithm AlgorithmIdentifier for ECDH.
// The parameters field contains the key wrap AlgorithmIdentifier.
func ecdhKEAAlgID(kaOID, kwOID asn1.ObjectIdentifier) (pkix.AlgorithmIdentifier, error) {
	kwBytes, err := asn1.Marshal(pkix.AlgorithmIdentifier{Algorithm: kwOID})
	if err != nil {
		return pkix.AlgorithmIdentifier{}, wrapError(CodeMalformedEncoding, "marshal key wrap AlgID", err)
	}
	return pkix.AlgorithmIdentifier{
		Algorithm:  kaOID,
		Parameters: asn1.RawValue{FullBytes: kwBytes},
	}, nil
}

// ecdhOIDsForCurve returns the key agreement OID and key wrap OID for an ECDH curve.
func ecdhOIDsForCurve(curve ecdh.Curve) (kaOID, kwOID asn1.ObjectIdentifier, err error) {
	switch curve {
	case ecdh.P256():
		return pkiasn1.OIDKeyAgreeECDHSHA256, pkiasn1.OIDKeyWrapAES128, nil
	case ecdh.P384():
		return pkiasn1.OIDKeyAgreeECDHSHA384, pkiasn1.OIDKeyWrapAES256, nil
	case ecdh.P521():
		return pkiasn1.OIDKeyAgreeECDHSHA512, pkiasn1.OIDKeyWrapAES256, nil
	default:
		return nil, nil, newError(CodeUnsupportedAlgorithm,
			fmt.Sprintf("unsupported ECDH curve %v", curve))
	}
}

// keyWrapOIDFromKEA extracts the key wrap OID from the KeyEncryptionAlgorithm params.
func keyWrapOIDFromKEA(keaAlgID pkix.AlgorithmIdentifier) (asn1.ObjectIdentifier, error) {
	var kwAlgID pkix.AlgorithmIdentifier
	if _, err := asn1.Unmarshal(keaAlgID.Parameters.FullBytes, &kwAlgID); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing key wrap AlgID from KARI KeyEncryptionAlgorithm", err)
	}
	return kwAlgID.Algorithm, nil
}

// kekLengthForWrapOID returns the KEK length in bytes for the given key wrap OID.
func kekLengthForWrapOID(oid asn1.ObjectIdentifier) (int, error) {
	switch {
	case oid.Equal(pkiasn1.OIDKeyWrapAES128):
		return 16, nil
	case oid.Equal(pkiasn1.OIDKeyWrapAES256):
		return 32, nil
	default:
		return 0, newError(CodeUnsupportedAlgorithm,
			fmt.Sprintf("unsupported key wrap OID %s", oid))
	}
}

// curveToOID maps an ecdh.Curve to its named curve OID.
func curveToOID(curve ecdh.Curve) (asn1.ObjectIdentifier, error) {
	switch curve {
	case ecdh.P256():
		return pkiasn1.OIDNamedCurveP256, nil
	case ecdh.P384():
		return pkiasn1.OIDNamedCurveP384, nil
	case ecdh.P521():
		return pkiasn1.OIDNamedCurveP521, nil
	default:
		return nil, newError(CodeUnsupportedAlgorithm,
			fmt.Sprintf("unsupported EC curve %v", curve))
	}
}

// oidToCurve maps a named curve OID to an ecdh.Curve.
func oidToCurve(oid asn1.ObjectIdentifier) (ecdh.Curve, error) {
	switch {
	case oid.Equal(pkiasn1.OIDNamedCurveP256):
		return ecdh.P256(), nil
	case oid.Equal(pkiasn1.OIDNamedCurveP384):
		return ecdh.P384(), nil
	case oid.Equal(pkiasn1.OIDNamedCurveP521):
		return ecdh.P521(), nil
	default:
		return nil, newError(CodeUnsupportedAlgorithm,
			fmt.Sprintf("unsupported EC curve OID %s", oid))
	}
}

// x963KDF implements the ANS X9.63 / SP 800-56A key derivation function used
// for ECDH key agreement. Z is the shared secret and keydatalen the desired
// output length in bytes. The OtherInfo structure is
// AlgorithmID || PartyUInfo || PartyVInfo || SuppPubInfo, where AlgorithmID is
// the DER of the key wrap OID, PartyUInfo carries the UKM (length-prefixed,
// empty when absent), PartyVInfo is empty, and SuppPubInfo is the 4-byte
// big-endian bit length of the KEK.
func x963KDF(z, ukm []byte, keydatalen int, algID pkix.AlgorithmIdentifier) ([]byte, error) {
	kwOID, err := keyWrapOIDFromKEA(algID)
	if err != nil {
		return nil, err
	}
	algorithmIDBytes, err := asn1.Marshal(kwOID)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "encoding key wrap OID for X9.63 KDF", err)
	}

	suppPubInfo := make([]byte, 4)
	binary.BigEndian.PutUint32(suppPubInfo, uint32(keydatalen*8))

	ukmLen := make([]byte, 4)
	binary.BigEndian.PutUint32(ukmLen, uint32(len(ukm)))

	h, err := kdfHashForKAOID(algID.Algorithm)
	if err != nil {
		return nil, err
	}

	var result []byte
	counterBytes := make([]byte, 4)
	for counter := uint32(1); len(result) < keydatalen; counter++ {
		binary.BigEndian.PutUint32(counterBytes, counter)

		h.Reset()
		h.Write(z)
		h.Write(counterBytes)
		h.Write(algorithmIDBytes)
		h.Write(ukmLen) // PartyUInfo: 4-byte length + UKM
		h.Write(ukm)
		h.Write([]byte{0, 0, 0, 0}) // PartyVInfo length = 0
		h.Write(suppPubInfo)
		result = append(result, h.Sum(nil)...)
	}

	return result[:keydatalen], nil
}

// kdfHashForKAOID returns the hash.Hash for the given ECDH key agreement OID.
func kdfHashForKAOID(oid asn1.ObjectIdentifier) (hash.Hash, error) {
	switch {
	case oid.Equal(pkiasn1.OIDKeyAgreeECDHSHA256):
		return sha256.New(), nil
	case oid.Equal(pkiasn1.OIDKeyAgreeECDHSHA384):
		return sha512.New384(), nil
	case oid.Equal(pkiasn1.OIDKeyAgreeECDHSHA512):
		return sha512.New(), nil
	default:
		return nil, newError(CodeUnsupportedAlgorithm,
			fmt.Sprintf("unsupported key agreement OID for KDF: %s", oid))
	}
}
