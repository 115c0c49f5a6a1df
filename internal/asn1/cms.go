package pkiasn1

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"
)

// ContentInfo is the top-level CMS wrapper structure as defined in RFC 5652,
// section 3. It associates a content type OID with the content itself.
type ContentInfo struct {
	// ContentType identifies the type of the encapsulated content.
	ContentType asn1.ObjectIdentifier
	// Content holds the DER encoding of the content, wrapped in an explicit [0] tag.
	Content asn1.RawValue `asn1:"explicit,tag:0"`
}

// SignedData represents the CMS SignedData content type as defined in RFC 5652,
// section 5.1. It is the primary structure for digitally signed messages.
type SignedData struct {
	// Version is the syntax version number. The value is determined by the
	// content and features used; see RFC 5652 section 5.1 for version rules.
	Version int
	// DigestAlgorithms is the SET of digest algorithm identifiers used by all
	// SignerInfos. Must contain every algorithm used across all signers.
	DigestAlgorithms []pkix.AlgorithmIdentifier `asn1:"set"`
	// EncapContentInfo holds the signed content and its type OID.
	EncapContentInfo EncapsulatedContentInfo
	// Certificates is an optional SET of certificate choices for chain building.
	// Encoded with IMPLICIT tag [0].
	Certificates []asn1.RawValue `asn1:"optional,tag:0"`
	// CRLs is an optional SET of revocation information choices.
	// Encoded with IMPLICIT tag [1].
	CRLs []asn1.RawValue `asn1:"optional,tag:1"`
	// SignerInfos is the SET of per-signer signature information structures.
	// A degenerate certificates-only message carries an empty set here.
	SignerInfos []SignerInfo `asn1:"set"`
}

// EncapsulatedContentInfo holds the content being signed and its type identifier,
// as defined in RFC 5652, section 5.2.
//
// When EContent is absent (zero-value RawValue), the signature is detached and
// the content exists outside this structure. When EContent is present but contains
// a zero-length OCTET STRING, the signature covers a 0-byte payload. These two
// cases are structurally distinct and must never be conflated.
type EncapsulatedContentInfo struct {
	// EContentType identifies the content type of the encapsulated content.
	EContentType asn1.ObjectIdentifier
	// EContent holds the content as an OCTET STRING, wrapped in an explicit [0] tag.
	// Absence indicates a detached signature. Presence with a zero-length OCTET
	// STRING indicates a signed 0-byte payload.
	EContent asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

// IsDetached reports whether the EncapsulatedContentInfo represents a detached
// signature, meaning EContent is absent from the encoding.
func (e *EncapsulatedContentInfo) IsDetached() bool {
	return len(e.EContent.FullBytes) == 0
}

// SignerInfo holds the per-signer signature information as defined in RFC 5652,
// section 5.3.
type SignerInfo struct {
	// Version is the syntax version for this SignerInfo. Version 1 is used with
	// IssuerAndSerialNumber; version 3 is used with SubjectKeyIdentifier.
	Version int
	// SID is the SignerIdentifier, which is a CHOICE between IssuerAndSerialNumber
	// (SEQUENCE) and SubjectKeyIdentifier ([0] IMPLICIT OCTET STRING). Stored as a
	// RawValue to allow inspection of the tag for CHOICE disambiguation.
	SID asn1.RawValue
	// DigestAlgorithm identifies the digest algorithm used to compute the message
	// digest over the content or signed attributes.
	DigestAlgorithm pkix.AlgorithmIdentifier
	// SignedAttrs is the optional SET of signed attributes, encoded with IMPLICIT
	// tag [0]. When present, the digest is computed over a re-encoding of this
	// field with an EXPLICIT SET tag (0x31), not over the [0]-tagged wire form.
	// Per RFC 5652, SignedAttrs MUST be DER encoded even if the outer structure is BER.
	SignedAttrs asn1.RawValue `asn1:"optional,tag:0"`
	// SignatureAlgorithm identifies the signature algorithm and any associated
	// parameters. For RSASSA-PSS, the RSASSA-PSS-params structure MUST be present.
	SignatureAlgorithm pkix.AlgorithmIdentifier
	// Signature is the result of the signature computation, encoded as an OCTET STRING.
	// For ECDSA, this is the DER encoding of Ecdsa-Sig-Value { r INTEGER, s INTEGER }.
	Signature []byte
	// UnsignedAttrs is the optional SET of unsigned attributes, encoded with
	// IMPLICIT tag [1].
	UnsignedAttrs asn1.RawValue `asn1:"optional,tag:1"`
}

// Attribute represents a single CMS attribute as defined in RFC 5652, section 5.3.
// An attribute associates an OID with one or more values encoded as a SET.
type Attribute struct {
	// Type identifies the attribute.
	Type asn1.ObjectIdentifier
	// Values holds the raw DER encoding of the SET OF attribute values. The content
	// is parsed according to the specific attribute type.
	Values asn1.RawValue `asn1:"set"`
}

// RawAttributes is a SET OF Attribute as it appears on the wire.
type RawAttributes []Attribute

// EnvelopedData represents the CMS EnvelopedData content type as defined in
// RFC 5652, section 6.1. The version depends on the recipient mechanisms and
// attributes present; see section 6.1 for the rules.
type EnvelopedData struct {
	Version int
	// OriginatorInfo optionally carries originator certificates and CRLs,
	// encoded with IMPLICIT tag [0]. This package preserves but does not
	// interpret it.
	OriginatorInfo asn1.RawValue `asn1:"optional,tag:0"`
	// RecipientInfos is the SET of RecipientInfo CHOICE values. Each element
	// is kept raw so the CHOICE tag can be inspected: SEQUENCE (0x30) is
	// KeyTransRecipientInfo, [1] is KeyAgreeRecipientInfo, [2] is
	// KEKRecipientInfo, [3] is PasswordRecipientInfo, and [4] is
	// OtherRecipientInfo.
	RecipientInfos []asn1.RawValue `asn1:"set"`
	// EncryptedContentInfo holds the symmetrically encrypted content.
	EncryptedContentInfo EncryptedContentInfo
	// UnprotectedAttrs is the optional SET of attributes that are neither
	// signed nor encrypted, with IMPLICIT tag [1].
	UnprotectedAttrs asn1.RawValue `asn1:"optional,tag:1"`
}

// EncryptedContentInfo holds the encrypted content and the algorithm that
// protects it, as defined in RFC 5652, section 6.1.
type EncryptedContentInfo struct {
	// ContentType identifies the type of the plaintext content.
	ContentType asn1.ObjectIdentifier
	// ContentEncryptionAlgorithm identifies the symmetric cipher and carries
	// its parameters (IV for CBC, nonce for GCM).
	ContentEncryptionAlgorithm pkix.AlgorithmIdentifier
	// EncryptedContent is the ciphertext with IMPLICIT tag [0]. It is OPTIONAL
	// in the ASN.1 module; absence means the ciphertext travels out of band.
	EncryptedContent asn1.RawValue `asn1:"optional,tag:0"`
}

// KeyTransRecipientInfo carries a content-encryption key encrypted under a
// recipient's RSA public key, as defined in RFC 5652, section 6.2.1.
// Version 0 is used with IssuerAndSerialNumber; version 2 with
// SubjectKeyIdentifier.
type KeyTransRecipientInfo struct {
	Version int
	// RID is the RecipientIdentifier CHOICE: IssuerAndSerialNumber (SEQUENCE)
	// or SubjectKeyIdentifier ([0] IMPLICIT OCTET STRING).
	RID                    asn1.RawValue
	KeyEncryptionAlgorithm pkix.AlgorithmIdentifier
	EncryptedKey           []byte
}

// KeyAgreeRecipientInfo carries a content-encryption key wrapped with a KEK
// derived by ephemeral-static ECDH, as defined in RFC 5652, section 6.2.2.
// The version is always 3. On the wire the structure carries IMPLICIT tag [1],
// which callers retag to SEQUENCE before unmarshaling.
type KeyAgreeRecipientInfo struct {
	Version int
	// Originator is the [0] EXPLICIT OriginatorIdentifierOrKey CHOICE. This
	// package always uses the OriginatorPublicKey alternative ([1] IMPLICIT).
	Originator asn1.RawValue `asn1:"tag:0"`
	// UKM is the optional user keying material, [1] EXPLICIT, mixed into the
	// KDF to vary the KEK across messages that reuse the same keys.
	UKM                    []byte `asn1:"optional,explicit,tag:1"`
	KeyEncryptionAlgorithm pkix.AlgorithmIdentifier
	RecipientEncryptedKeys []RecipientEncryptedKey
}

// RecipientEncryptedKey pairs a recipient identifier with the wrapped
// content-encryption key, as defined in RFC 5652, section 6.2.2.
type RecipientEncryptedKey struct {
	// RID is the KeyAgreeRecipientIdentifier CHOICE. This package uses the
	// IssuerAndSerialNumber alternative (SEQUENCE).
	RID          asn1.RawValue
	EncryptedKey []byte
}

// KEKRecipientInfo carries a content-encryption key wrapped under a
// previously distributed symmetric key-encryption key, as defined in
// RFC 5652, section 6.2.3. The version is always 4. On the wire the
// structure carries IMPLICIT tag [2].
type KEKRecipientInfo struct {
	Version                int
	KEKID                  KEKIdentifier
	KeyEncryptionAlgorithm pkix.AlgorithmIdentifier
	EncryptedKey           []byte
}

// KEKIdentifier names the key-encryption key a KEKRecipientInfo was wrapped
// under, as defined in RFC 5652, section 6.2.3.
type KEKIdentifier struct {
	// KeyIdentifier is the opaque identifier agreed between sender and recipient.
	KeyIdentifier []byte
	// Date optionally distinguishes key generations under one identifier.
	Date time.Time `asn1:"optional,generalized"`
	// Other optionally carries additional key attributes; preserved raw.
	Other asn1.RawValue `asn1:"optional"`
}

// PasswordRecipientInfo carries a content-encryption key wrapped under a key
// derived from a password, as defined in RFC 3211. The version is always 0.
// On the wire the structure carries IMPLICIT tag [3].
type PasswordRecipientInfo struct {
	Version int
	// KeyDerivationAlgorithm identifies the KDF, [0] IMPLICIT. This package
	// uses PBKDF2 with HMAC-SHA256.
	KeyDerivationAlgorithm pkix.AlgorithmIdentifier `asn1:"optional,tag:0"`
	// KeyEncryptionAlgorithm is id-alg-PWRI-KEK wrapping the content cipher
	// AlgorithmIdentifier as its parameter.
	KeyEncryptionAlgorithm pkix.AlgorithmIdentifier
	EncryptedKey           []byte
}

// PBKDF2Params holds the PBKDF2-params structure from RFC 2898, appendix A.2.
// The salt CHOICE is always the specified OCTET STRING alternative.
type PBKDF2Params struct {
	Salt           []byte
	IterationCount int
	// KeyLength is the derived key length in bytes. OPTIONAL in the ASN.1
	// module but always emitted by this package.
	KeyLength int `asn1:"optional"`
	// PRF identifies the pseudorandom function. Defaults to HMAC-SHA1 when
	// absent; this package always emits HMAC-SHA256 explicitly.
	PRF pkix.AlgorithmIdentifier `asn1:"optional"`
}

// OtherRecipientInfo is the extensible RecipientInfo alternative from
// RFC 5652, section 6.2.5. On the wire it carries IMPLICIT tag [4].
type OtherRecipientInfo struct {
	// ORIType identifies the format of ORIValue.
	ORIType asn1.ObjectIdentifier
	// ORIValue holds the type-specific structure; for id-ori-kem this is a
	// KEMRecipientInfo.
	ORIValue asn1.RawValue
}

// KEMRecipientInfo carries a content-encryption key wrapped under a KEK
// established with a key encapsulation mechanism, as defined in RFC 9629.
// The version is always 0.
type KEMRecipientInfo struct {
	Version int
	// RID is the RecipientIdentifier CHOICE, as in KeyTransRecipientInfo.
	RID asn1.RawValue
	// KEM identifies the key encapsulation mechanism (e.g. ML-KEM-768).
	KEM pkix.AlgorithmIdentifier
	// KEMCT is the KEM ciphertext produced by encapsulation.
	KEMCT []byte
	// KDF identifies the key derivation function applied to the shared secret.
	KDF pkix.AlgorithmIdentifier
	// KEKLength is the length in bytes of the derived key-encryption key.
	KEKLength int
	// UKM is optional user keying material, [0] EXPLICIT.
	UKM []byte `asn1:"optional,explicit,tag:0"`
	// Wrap identifies the key wrap algorithm applied with the derived KEK.
	Wrap         pkix.AlgorithmIdentifier
	EncryptedKey []byte
}

// CMSORIforKEMOtherInfo is the DER-encoded info input to the KEMRecipientInfo
// KDF, as defined in RFC 9629, section 5.
type CMSORIforKEMOtherInfo struct {
	Wrap      pkix.AlgorithmIdentifier
	KEKLength int
	UKM       []byte `asn1:"optional,explicit,tag:0"`
}

// EncryptedData represents the CMS EncryptedData content type as defined in
// RFC 5652, section 8. Key management is external; the structure carries only
// the ciphertext. Version is 0, or 2 when UnprotectedAttrs is present.
type EncryptedData struct {
	Version              int
	EncryptedContentInfo EncryptedContentInfo
	// UnprotectedAttrs is the optional SET of attributes with IMPLICIT tag [1].
	UnprotectedAttrs asn1.RawValue `asn1:"optional,tag:1"`
}

// CompressedData represents the CMS CompressedData content type as defined in
// RFC 3274. The version is always 0 and the only registered compression
// algorithm is zlib.
type CompressedData struct {
	Version              int
	CompressionAlgorithm pkix.AlgorithmIdentifier
	EncapContentInfo     EncapsulatedContentInfo
}

// DigestedData represents the CMS DigestedData content type as defined in
// RFC 5652, section 7. It provides integrity without authentication.
type DigestedData struct {
	Version          int
	DigestAlgorithm  pkix.AlgorithmIdentifier
	EncapContentInfo EncapsulatedContentInfo
	Digest           []byte
}

// IssuerAndSerialNumber identifies a certificate by its issuer distinguished
// name and serial number, as defined in RFC 5652, section 10.2.4.
type IssuerAndSerialNumber struct {
	// Issuer is the DER encoding of the certificate issuer's distinguished name.
	Issuer asn1.RawValue
	// SerialNumber is the certificate serial number.
	SerialNumber *big.Int
}
