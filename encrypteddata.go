package cms

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"io"

	pkiasn1 "github.com/smartiq/cms/internal/asn1"
)

// SymmetricEncryptor builds a CMS EncryptedData message using a fluent builder
// API. The caller supplies the symmetric key directly; key management happens
// out of band. Builder methods accumulate configuration and errors; Encrypt
// reports all configuration errors at once. SymmetricEncryptor methods are not
// safe for concurrent use; Encrypt is safe for concurrent use once the builder
// is fully configured.
type SymmetricEncryptor struct {
	key              []byte
	contentAlg       ContentEncryptionAlgorithm
	contentType      asn1.ObjectIdentifier
	unprotectedAttrs []pkiasn1.Attribute
	maxSize          int64
	errs             []error
}

// NewSymmetricEncryptor returns a new SymmetricEncryptor with default settings:
//   - AES-256-GCM content encryption
//   - id-data content type
//   - 64 MiB content size limit
func NewSymmetricEncryptor() *SymmetricEncryptor {
	return &SymmetricEncryptor{
		contentAlg:  AES256GCM,
		contentType: pkiasn1.OIDData,
		maxSize:     DefaultMaxMessageSize,
	}
}

// WithKey sets the symmetric content encryption key. Must be 16 bytes (AES-128)
// or 32 bytes (AES-256) — the exact length depends on WithContentEncryption.
// Required.
func (se *SymmetricEncryptor) WithKey(key []byte) *SymmetricEncryptor {
	if len(key) == 0 {
		se.errs = append(se.errs, newConfigError("key must not be empty"))
		return se
	}
	se.key = key
	return se
}

// WithContentEncryption sets the symmetric cipher. Defaults to AES256GCM.
// The key length must match: 16 bytes for AES-128, 32 bytes for AES-256.
func (se *SymmetricEncryptor) WithContentEncryption(alg ContentEncryptionAlgorithm) *SymmetricEncryptor {
	se.contentAlg = alg
	return se
}

// WithContentType sets a custom content type OID in EncryptedContentInfo.
// Default is id-data.
func (se *SymmetricEncryptor) WithContentType(oid asn1.ObjectIdentifier) *SymmetricEncryptor {
	if len(oid) == 0 {
		se.errs = append(se.errs, newConfigError("content type OID is empty"))
		return se
	}
	se.contentType = oid
	return se
}

// AddUnprotectedAttribute adds an attribute carried outside the encrypted
// content. Unprotected attributes are neither encrypted nor integrity
// protected; their presence raises the EncryptedData version to 2.
func (se *SymmetricEncryptor) AddUnprotectedAttribute(oid asn1.ObjectIdentifier, value any) *SymmetricEncryptor {
	attr, err := makeAttribute(oid, value)
	if err != nil {
		se.errs = append(se.errs, err)
		return se
	}
	se.unprotectedAttrs = append(se.unprotectedAttrs, attr)
	return se
}

// WithMaxContentSize sets the maximum content size in bytes. Defaults to
// DefaultMaxMessageSize (64 MiB). Pass UnlimitedMessageSize to disable.
func (se *SymmetricEncryptor) WithMaxContentSize(maxBytes int64) *SymmetricEncryptor {
	se.maxSize = maxBytes
	return se
}

// Encrypt reads plaintext from r, encrypts it with the configured key and
// algorithm, and returns the DER-encoded ContentInfo wrapping EncryptedData.
// All builder configuration errors are reported here.
func (se *SymmetricEncryptor) Encrypt(r io.Reader) ([]byte, error) {
	if err := se.validate(); err != nil {
		return nil, err
	}

	content, err := readLimited(r, se.maxSize, "content for encryption")
	if err != nil {
		return nil, err
	}

	ciphertext, encAlgID, err := encryptWithKey(content, se.contentAlg, se.key)
	if err != nil {
		return nil, err
	}

	ed := pkiasn1.EncryptedData{
		Version: 0,
		EncryptedContentInfo: pkiasn1.EncryptedContentInfo{
			ContentType:                se.contentType,
			ContentEncryptionAlgorithm: encAlgID,
			EncryptedContent:           asn1.RawValue{Bytes: ciphertext, Tag: 0, Class: asn1.ClassContextSpecific},
		},
	}

	if len(se.unprotectedAttrs) > 0 {
		attrBytes, err := marshalAttributes(se.unprotectedAttrs)
		if err != nil {
			return nil, err
		}
		ed.Version = 2
		ed.UnprotectedAttrs = asn1.RawValue{FullBytes: retagAsImplicit1(attrBytes)}
	}

	edBytes, err := asn1.Marshal(ed)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "marshal EncryptedData", err)
	}
	return wrapContentInfo(pkiasn1.OIDEncryptedData, edBytes)
}

// validate checks that all accumulated configuration errors are nil and that
// the key is present with the correct length for the chosen algorithm.
func (se *SymmetricEncryptor) validate() error {
	var errs []error
	errs = append(errs, se.errs...)
	if se.key == nil && len(se.errs) == 0 {
		errs = append(errs, newConfigError("key is required"))
	} else if se.key != nil {
		if err := validateSymKey(se.key, se.contentAlg); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}

// ParsedEncryptedData wraps a parsed EncryptedData for decryption.
type ParsedEncryptedData struct {
	encryptedData pkiasn1.EncryptedData
}

// ParseEncryptedData parses a BER- or DER-encoded CMS ContentInfo wrapping
// EncryptedData.
func ParseEncryptedData(r io.Reader, opts ...ParseOption) (*ParsedEncryptedData, error) {
	cfg := newParseConfig(opts)
	derBytes, err := readNormalized(r, cfg)
	if err != nil {
		return nil, err
	}
	return parseEncryptedDataDER(derBytes)
}

func parseEncryptedDataDER(derBytes []byte) (*ParsedEncryptedData, error) {
	ci, err := parseContentInfo(derBytes)
	if err != nil {
		return nil, err
	}
	inner, err := unwrapContent(ci, pkiasn1.OIDEncryptedData, "EncryptedData")
	if err != nil {
		return nil, err
	}

	var ed pkiasn1.EncryptedData
	if _, err := asn1.Unmarshal(inner, &ed); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing EncryptedData structure", err)
	}

	return &ParsedEncryptedData{encryptedData: ed}, nil
}

// ContentType returns the inner content type OID of the encrypted content.
func (p *ParsedEncryptedData) ContentType() asn1.ObjectIdentifier {
	return p.encryptedData.EncryptedContentInfo.ContentType
}

// UnprotectedAttributes returns the decoded unprotected attributes of the
// message, or nil when none are present.
func (p *ParsedEncryptedData) UnprotectedAttributes() ([]Attribute, error) {
	raw := p.encryptedData.UnprotectedAttrs
	if len(raw.FullBytes) == 0 {
		return nil, nil
	}
	return decodeAttributeSet(retagAsSet(raw.FullBytes))
}

// Decrypt decrypts the content using the supplied symmetric key and returns
// the plaintext. The key must match the algorithm used during encryption.
func (p *ParsedEncryptedData) Decrypt(key []byte) ([]byte, error) {
	alg, err := contentEncAlgFromOID(p.encryptedData.EncryptedContentInfo.ContentEncryptionAlgorithm.Algorithm)
	if err != nil {
		return nil, err
	}
	if err := validateSymKey(key, alg); err != nil {
		return nil, err
	}
	return decryptContent(p.encryptedData.EncryptedContentInfo, key)
}

// --- Internal helpers ---

// validateSymKey checks that key has the correct length for alg.
func validateSymKey(key []byte, alg ContentEncryptionAlgorithm) error {
	want := symKeyLen(alg)
	if len(key) != want {
		return newConfigError(
			fmt.Sprintf("key length %d is incorrect for algorithm (expected %d bytes)", len(key), want))
	}
	return nil
}

// symKeyLen returns the required key length in bytes for alg.
func symKeyLen(alg ContentEncryptionAlgorithm) int {
	switch alg {
	case AES128GCM, AES128CBC:
		return 16
	default: // AES256GCM, AES256CBC
		return 32
	}
}

// contentEncAlgFromOID maps a content encryption OID to a ContentEncryptionAlgorithm.
func contentEncAlgFromOID(oid asn1.ObjectIdentifier) (ContentEncryptionAlgorithm, error) {
	switch {
	case oid.Equal(pkiasn1.OIDContentEncryptionAES256GCM):
		return AES256GCM, nil
	case oid.Equal(pkiasn1.OIDContentEncryptionAES128GCM):
		return AES128GCM, nil
	case oid.Equal(pkiasn1.OIDContentEncryptionAES256CBC):
		return AES256CBC, nil
	case oid.Equal(pkiasn1.OIDContentEncryptionAES128CBC):
		return AES128CBC, nil
	default:
		return 0, newError(CodeUnsupportedAlgorithm,
			fmt.Sprintf("unsupported content encryption algorithm OID %s", oid))
	}
}

// encryptWithKey encrypts plaintext using the provided key and algorithm.
// The key length must already be validated to match alg.
func encryptWithKey(plaintext []byte, alg ContentEncryptionAlgorithm, key []byte) (ciphertext []byte, algID pkix.AlgorithmIdentifier, err error) {
	switch alg {
	case AES256GCM, AES128GCM:
		return sealAESGCM(plaintext, key)
	case AES256CBC, AES128CBC:
		return sealAESCBC(plaintext, key)
	default:
		return nil, pkix.AlgorithmIdentifier{},
			newError(CodeUnsupportedAlgorithm, fmt.Sprintf("unsupported content encryption algorithm %d", alg))
	}
}
