package cms

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"io"
	"time"

	pkiasn1 "github.com/smartiq/cms/internal/asn1"
)

// Signer builds and produces a CMS SignedData message. Builder methods accumulate
// configuration and errors; Sign reports all configuration errors at once.
// Signer methods are not safe for concurrent use; Sign is safe for concurrent use
// once the builder is fully configured.
type Signer struct {
	cert              *x509.Certificate
	key               crypto.Signer
	hash              crypto.Hash
	hashExplicit      bool
	family            signatureFamily
	familyExplicit    bool // true when family was set via WithRSAPKCS1 option
	detached          bool
	degenerate        bool
	sidType           SignerIdentifierType
	contentType       asn1.ObjectIdentifier
	extraCerts        []*x509.Certificate
	authAttrs         []pkiasn1.Attribute
	unauthAttrs       []pkiasn1.Attribute
	maxSize           int64
	maxCerts          int
	additionalSigners []*Signer
	crls              [][]byte
	errs              []error
}

// NewSigner returns a new Signer with default settings:
//   - SHA-256 digest
//   - Attached content
//   - IssuerAndSerialNumber signer identifier
//   - id-data content type
//   - 64 MiB attached content size limit
//   - 16 certificate capacity
func NewSigner() *Signer {
	return &Signer{
		hash:        crypto.SHA256,
		contentType: pkiasn1.OIDData,
		maxSize:     DefaultMaxMessageSize,
		maxCerts:    DefaultMaxCertificates,
	}
}

// WithCertificate sets the signing certificate. Required unless WithoutSigner
// is used.
func (s *Signer) WithCertificate(cert *x509.Certificate) *Signer {
	if cert == nil {
		s.errs = append(s.errs, newConfigError("certificate is nil"))
		return s
	}
	s.cert = cert
	return s
}

// WithPrivateKey sets the private key used for signing. Required unless
// WithoutSigner is used.
func (s *Signer) WithPrivateKey(key crypto.Signer) *Signer {
	if key == nil {
		s.errs = append(s.errs, newConfigError("private key is nil"))
		return s
	}
	s.key = key
	return s
}

// WithoutSigner produces a degenerate certificates-only SignedData: empty
// DigestAlgorithms and SignerInfos sets, carrying only the certificates added
// via AddCertificate. This is the conventional container for distributing
// certificate bundles. No certificate, key, or content is required.
func (s *Signer) WithoutSigner() *Signer {
	s.degenerate = true
	return s
}

// WithHash sets the digest algorithm. For Ed25519, this is ignored; SHA-512
// is always used per RFC 8419. Defaults to SHA-256, or the curve-matched hash
// for ECDSA keys when not set explicitly.
func (s *Signer) WithHash(h crypto.Hash) *Signer {
	s.hash = h
	s.hashExplicit = true
	return s
}

// WithRSAPKCS1 selects RSA PKCS1v15 as the signature algorithm. By default,
// RSA keys use RSA-PSS. This option has no effect for non-RSA keys.
func (s *Signer) WithRSAPKCS1() *Signer {
	s.family = familyRSAPKCS1
	s.familyExplicit = true
	return s
}

// WithDetachedContent produces a detached signature (eContent absent in output).
func (s *Signer) WithDetachedContent() *Signer {
	s.detached = true
	return s
}

// WithSignerIdentifier controls how the signer's certificate is identified in
// SignerInfo. Default is IssuerAndSerialNumber (SignerInfo version 1).
func (s *Signer) WithSignerIdentifier(t SignerIdentifierType) *Signer {
	s.sidType = t
	return s
}

// WithContentType sets a custom eContentType OID. Default is id-data.
// A non-id-data type forces SignedData version 3 per RFC 5652 §5.1.
func (s *Signer) WithContentType(oid asn1.ObjectIdentifier) *Signer {
	if len(oid) == 0 {
		s.errs = append(s.errs, newConfigError("content type OID is empty"))
		return s
	}
	s.contentType = oid
	return s
}

// AddCertificate adds an extra certificate to the CertificateSet in the output
// (for example, intermediate CA certificates needed for chain building, or the
// payload of a degenerate certificates-only message). Adding beyond the
// configured capacity accumulates ErrCapacityExceeded and leaves the set
// unchanged.
func (s *Signer) AddCertificate(cert *x509.Certificate) *Signer {
	if cert == nil {
		s.errs = append(s.errs, newConfigError("extra certificate is nil"))
		return s
	}
	if len(s.extraCerts) >= s.maxCerts {
		s.errs = append(s.errs, newError(CodeCapacityExceeded,
			fmt.Sprintf("certificate count exceeds capacity of %d; use WithMaxCertificates to raise it", s.maxCerts)))
		return s
	}
	s.extraCerts = append(s.extraCerts, cert)
	return s
}

// WithMaxCertificates sets the capacity of the certificate set populated by
// AddCertificate. Defaults to DefaultMaxCertificates.
func (s *Signer) WithMaxCertificates(n int) *Signer {
	if n < 1 {
		s.errs = append(s.errs, newConfigError("certificate capacity must be at least 1"))
		return s
	}
	s.maxCerts = n
	return s
}

// AddAuthenticatedAttribute adds a custom signed attribute. The content-type and
// message-digest attributes are always injected automatically; callers must not
// add those manually. Sign reports an error if they do.
func (s *Signer) AddAuthenticatedAttribute(oid asn1.ObjectIdentifier, val interface{}) *Signer {
	attr, err := makeAttribute(oid, val)
	if err != nil {
		s.errs = append(s.errs, err)
		return s
	}
	s.authAttrs = append(s.authAttrs, attr)
	return s
}

// AddUnauthenticatedAttribute adds a custom unsigned attribute.
func (s *Signer) AddUnauthenticatedAttribute(oid asn1.ObjectIdentifier, val interface{}) *Signer {
	attr, err := makeAttribute(oid, val)
	if err != nil {
		s.errs = append(s.errs, err)
		return s
	}
	s.unauthAttrs = append(s.unauthAttrs, attr)
	return s
}

// WithMaxAttachedContentSize sets the maximum content size for attached signatures.
// Defaults to DefaultMaxMessageSize (64 MiB). Pass UnlimitedMessageSize to disable.
// Has no effect in detached mode.
func (s *Signer) WithMaxAttachedContentSize(maxBytes int64) *Signer {
	s.maxSize = maxBytes
	return s
}

// WithAdditionalSigner adds a second (or subsequent) signer to the SignedData.
// The additional signer must be configured with at least a certificate and private
// key. All signers share the primary signer's content, content type, and
// detached/attached setting.
func (s *Signer) WithAdditionalSigner(other *Signer) *Signer {
	if other == nil {
		s.errs = append(s.errs, newConfigError("additional signer is nil"))
		return s
	}
	s.additionalSigners = append(s.additionalSigners, other)
	return s
}

// AddCRL embeds a DER-encoded Certificate Revocation List in the SignedData
// revocationInfoChoices field.
func (s *Signer) AddCRL(derCRL []byte) *Signer {
	if len(derCRL) == 0 {
		s.errs = append(s.errs, newConfigError("CRL DER bytes are empty"))
		return s
	}
	s.crls = append(s.crls, derCRL)
	return s
}

// Sign reads content from r, constructs a CMS SignedData, and returns the
// DER-encoded ContentInfo. All builder configuration errors are reported here.
// In degenerate mode (WithoutSigner) the reader may be empty or nil content;
// the output carries no SignerInfos.
func (s *Signer) Sign(r io.Reader) ([]byte, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	content, err := s.readContent(r)
	if err != nil {
		return nil, err
	}

	if s.degenerate {
		return s.signDegenerate(content)
	}

	// Sign with the primary signer.
	primarySI, primaryHash, err := s.signContent(content, s.contentType)
	if err != nil {
		return nil, err
	}

	allSIs := []pkiasn1.SignerInfo{primarySI}
	allHashes := []crypto.Hash{primaryHash}
	allCerts := append([]*x509.Certificate{s.cert}, s.extraCerts...)

	// Sign with each additional signer using the primary's content type.
	for _, as := range s.additionalSigners {
		si, h, siErr := as.signContent(content, s.contentType)
		if siErr != nil {
			return nil, siErr
		}
		allSIs = append(allSIs, si)
		allHashes = append(allHashes, h)
		allCerts = append(allCerts, as.cert)
		allCerts = append(allCerts, as.extraCerts...)
	}

	eci, err := s.buildECI(content)
	if err != nil {
		return nil, err
	}

	sd, err := s.buildSignedDataMulti(eci, allSIs, allHashes, allCerts)
	if err != nil {
		return nil, err
	}

	return marshalSignedDataCI(sd)
}

// signDegenerate assembles a certificates-only SignedData: version 1, empty
// DigestAlgorithms and SignerInfos, certificates from AddCertificate.
func (s *Signer) signDegenerate(content []byte) ([]byte, error) {
	eci, err := s.buildECI(content)
	if err != nil {
		return nil, err
	}

	sd := pkiasn1.SignedData{
		Version:          1,
		DigestAlgorithms: []pkix.AlgorithmIdentifier{},
		EncapContentInfo: eci,
		SignerInfos:      []pkiasn1.SignerInfo{},
	}
	for _, cert := range s.extraCerts {
		sd.Certificates = append(sd.Certificates, asn1.RawValue{FullBytes: cert.Raw})
	}
	for _, crlBytes := range s.crls {
		sd.CRLs = append(sd.CRLs, asn1.RawValue{FullBytes: crlBytes})
	}

	return marshalSignedDataCI(sd)
}

// signContent computes a SignerInfo for this signer over the given content bytes.
// contentType is passed explicitly so additional signers use the primary signer's
// eContentType in their signed attributes.
func (s *Signer) signContent(content []byte, contentType asn1.ObjectIdentifier) (pkiasn1.SignerInfo, crypto.Hash, error) {
	effectiveHash := hashForKey(s.key, s.hash, s.hashExplicit)

	family := s.family
	if !s.familyExplicit {
		var err error
		family, err = detectFamily(s.key)
		if err != nil {
			return pkiasn1.SignerInfo{}, 0, err
		}
	}

	// Compute content digest.
	h, err := newHash(effectiveHash)
	if err != nil {
		return pkiasn1.SignerInfo{}, 0, err
	}
	h.Write(content)
	digest := h.Sum(nil)

	// Build signedAttrs using the provided content type.
	signedAttrs, err := s.buildSignedAttrsForType(digest, contentType)
	if err != nil {
		return pkiasn1.SignerInfo{}, 0, err
	}

	// DER-encode signedAttrs as a SET for digest computation.
	signedAttrsBytes, err := marshalAttributes(signedAttrs)
	if err != nil {
		return pkiasn1.SignerInfo{}, 0, err
	}

	// Compute digest over re-encoded signedAttrs (SET tag, not IMPLICIT [0]).
	h2, err := newHash(effectiveHash)
	if err != nil {
		return pkiasn1.SignerInfo{}, 0, err
	}
	h2.Write(signedAttrsBytes)
	signedAttrsDigest := h2.Sum(nil)

	sig, err := s.sign(signedAttrsDigest, effectiveHash, family)
	if err != nil {
		return pkiasn1.SignerInfo{}, 0, err
	}

	si, err := s.buildSignerInfo(effectiveHash, family, signedAttrsBytes, sig)
	if err != nil {
		return pkiasn1.SignerInfo{}, 0, err
	}

	return si, effectiveHash, nil
}

// validate checks that all required fields are set and no configuration errors
// accumulated. Returns a joined error if any problems exist.
func (s *Signer) validate() error {
	var errs []error
	errs = append(errs, s.errs...)

	if s.degenerate {
		if len(s.extraCerts) == 0 && len(s.errs) == 0 {
			errs = append(errs, newConfigError("certificates-only SignedData requires at least one certificate"))
		}
		if s.cert != nil || s.key != nil {
			errs = append(errs, newConfigError("WithoutSigner is incompatible with a signing certificate or key"))
		}
		if len(s.additionalSigners) > 0 {
			errs = append(errs, newConfigError("WithoutSigner is incompatible with additional signers"))
		}
		return joinErrors(errs)
	}

	if s.cert == nil && len(s.errs) == 0 {
		errs = append(errs, newConfigError("certificate is required"))
	}
	if s.key == nil && len(s.errs) == 0 {
		errs = append(errs, newConfigError("private key is required"))
	}

	// Check for manually added reserved attributes.
	for _, a := range s.authAttrs {
		if a.Type.Equal(pkiasn1.OIDAttributeContentType) ||
			a.Type.Equal(pkiasn1.OIDAttributeMessageDigest) {
			errs = append(errs, newError(CodeInvalidConfiguration,
				fmt.Sprintf("attribute %s is injected automatically; do not add it manually", a.Type)))
		}
	}

	// Validate additional signers.
	for i, as := range s.additionalSigners {
		if err := as.validate(); err != nil {
			errs = append(errs, wrapError(CodeInvalidConfiguration,
				fmt.Sprintf("additional signer[%d]", i), err))
		}
	}

	return joinErrors(errs)
}

// readContent reads from r. In detached mode, the content is only needed for
// digest computation; in attached mode, it is buffered up to maxSize.
func (s *Signer) readContent(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	if s.detached || s.maxSize == UnlimitedMessageSize {
		buf, err := io.ReadAll(r)
		if err != nil {
			return nil, wrapError(CodeMalformedEncoding, "reading content", err)
		}
		return buf, nil
	}
	return readLimited(r, s.maxSize, "attached content")
}

// buildSignedAttrsForType constructs the mandatory signed attributes plus any
// custom attributes added by the caller.
func (s *Signer) buildSignedAttrsForType(digest []byte, contentType asn1.ObjectIdentifier) ([]pkiasn1.Attribute, error) {
	ctAttr, err := makeAttribute(pkiasn1.OIDAttributeContentType, contentType)
	if err != nil {
		return nil, err
	}
	mdAttr, err := makeAttribute(pkiasn1.OIDAttributeMessageDigest, digest)
	if err != nil {
		return nil, err
	}

	attrs := []pkiasn1.Attribute{ctAttr, mdAttr}
	attrs = append(attrs, s.authAttrs...)
	return attrs, nil
}

// sign computes the cryptographic signature over digest using the configured key.
// For RSA-PSS, uses rsa.SignPSS with salt length equal to the hash size.
// For ECDSA, the crypto.Signer interface already returns a DER-encoded
// Ecdsa-Sig-Value. For Ed25519, the key signs the message directly (no pre-hash).
func (s *Signer) sign(digest []byte, h crypto.Hash, family signatureFamily) ([]byte, error) {
	switch family {
	case familyRSAPKCS1:
		return s.key.Sign(rand.Reader, digest, h)

	case familyRSAPSS:
		if _, ok := s.key.Public().(*rsa.PublicKey); !ok {
			return nil, newError(CodeUnsupportedAlgorithm, "RSA-PSS requires an RSA key")
		}
		saltSize, err := saltLengthForHash(h)
		if err != nil {
			return nil, err
		}
		return s.key.Sign(rand.Reader, digest, &rsa.PSSOptions{
			SaltLength: saltSize,
			Hash:       h,
		})

	case familyECDSA:
		sig, err := s.key.Sign(rand.Reader, digest, h)
		if err != nil {
			return nil, wrapError(CodeSignatureVerifyFailed, "ECDSA signing failed", err)
		}
		return sig, nil

	case familyEd25519:
		// Ed25519 signs the message, not a hash. crypto.Hash(0) signals no pre-hash.
		sig, err := s.key.Sign(rand.Reader, digest, crypto.Hash(0))
		if err != nil {
			return nil, wrapError(CodeSignatureVerifyFailed, "Ed25519 signing failed", err)
		}
		return sig, nil

	default:
		return nil, newError(CodeUnsupportedAlgorithm, "unknown signature family")
	}
}

// buildSignerInfo assembles the SignerInfo structure.
func (s *Signer) buildSignerInfo(h crypto.Hash, family signatureFamily, signedAttrsBytes, sig []byte) (pkiasn1.SignerInfo, error) {
	digestAlg, err := digestAlgID(h)
	if err != nil {
		return pkiasn1.SignerInfo{}, err
	}

	sigAlg, err := signatureAlgID(h, family)
	if err != nil {
		return pkiasn1.SignerInfo{}, err
	}

	sid, version, err := buildSignerID(s.cert, s.sidType)
	if err != nil {
		return pkiasn1.SignerInfo{}, err
	}

	// signedAttrsBytes is the SET-tagged DER encoding used for the digest. On
	// the wire, SignedAttributes uses IMPLICIT [0]; we re-tag and store the raw
	// bytes as FullBytes so asn1.Marshal emits them verbatim.
	signedAttrsWire := retagAsImplicit0(signedAttrsBytes)

	si := pkiasn1.SignerInfo{
		Version:            version,
		SID:                sid,
		DigestAlgorithm:    digestAlg,
		SignedAttrs:        asn1.RawValue{FullBytes: signedAttrsWire},
		SignatureAlgorithm: sigAlg,
		Signature:          sig,
	}

	if len(s.unauthAttrs) > 0 {
		unauthBytes, err := marshalAttributes(s.unauthAttrs)
		if err != nil {
			return pkiasn1.SignerInfo{}, err
		}
		si.UnsignedAttrs = asn1.RawValue{FullBytes: retagAsImplicit1(unauthBytes)}
	}

	return si, nil
}

// buildSignerID builds the SignerIdentifier ASN.1 encoding and returns the
// SignerInfo version required by RFC 5652: 1 for IssuerAndSerialNumber, 3 for
// SubjectKeyIdentifier.
func buildSignerID(cert *x509.Certificate, sidType SignerIdentifierType) (asn1.RawValue, int, error) {
	switch sidType {
	case IssuerAndSerialNumber:
		encoded, err := marshalIssuerSerial(cert)
		if err != nil {
			return asn1.RawValue{}, 0, err
		}
		return asn1.RawValue{FullBytes: encoded}, 1, nil

	case SubjectKeyIdentifier:
		if len(cert.SubjectKeyId) == 0 {
			return asn1.RawValue{}, 0, newError(CodeInvalidConfiguration,
				"SubjectKeyIdentifier requested but certificate has no subjectKeyIdentifier extension")
		}
		// [0] IMPLICIT OCTET STRING
		encoded, err := asn1.Marshal(asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			Bytes:      cert.SubjectKeyId,
			IsCompound: false,
		})
		if err != nil {
			return asn1.RawValue{}, 0, wrapError(CodeMalformedEncoding, "marshal SubjectKeyIdentifier", err)
		}
		return asn1.RawValue{FullBytes: encoded}, 3, nil

	default:
		return asn1.RawValue{}, 0, newError(CodeInvalidConfiguration,
			fmt.Sprintf("unknown SignerIdentifierType %d", sidType))
	}
}

// marshalIssuerSerial returns the DER encoding of IssuerAndSerialNumber for cert.
func marshalIssuerSerial(cert *x509.Certificate) ([]byte, error) {
	isn := pkiasn1.IssuerAndSerialNumber{
		Issuer:       asn1.RawValue{FullBytes: cert.RawIssuer},
		SerialNumber: cert.SerialNumber,
	}
	der, err := asn1.Marshal(isn)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "marshal IssuerAndSerialNumber", err)
	}
	return der, nil
}

// buildECI constructs the EncapsulatedContentInfo for SignedData.
// For attached signatures, content is wrapped in an OCTET STRING inside [0] EXPLICIT.
// For detached signatures, eContent is absent.
func (s *Signer) buildECI(content []byte) (pkiasn1.EncapsulatedContentInfo, error) {
	eci := pkiasn1.EncapsulatedContentInfo{
		EContentType: s.contentType,
	}
	if s.detached {
		return eci, nil
	}

	octetString, err := asn1.Marshal(content)
	if err != nil {
		return pkiasn1.EncapsulatedContentInfo{}, wrapError(CodeMalformedEncoding, "marshal eContent OCTET STRING", err)
	}
	explicit0, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        0,
		IsCompound: true,
		Bytes:      octetString,
	})
	if err != nil {
		return pkiasn1.EncapsulatedContentInfo{}, wrapError(CodeMalformedEncoding, "marshal eContent [0] wrapper", err)
	}
	eci.EContent = asn1.RawValue{FullBytes: explicit0}
	return eci, nil
}

// buildSignedDataMulti assembles the full SignedData structure from multiple
// signers' SignerInfos, deduplicating the DigestAlgorithms SET.
func (s *Signer) buildSignedDataMulti(eci pkiasn1.EncapsulatedContentInfo, sis []pkiasn1.SignerInfo, hashes []crypto.Hash, certs []*x509.Certificate) (pkiasn1.SignedData, error) {
	digestAlgs, err := deduplicateDigestAlgs(hashes)
	if err != nil {
		return pkiasn1.SignedData{}, err
	}

	// Use the highest required SignedData version across all SignerInfos.
	version := 1
	for _, si := range sis {
		if v := computeSignedDataVersion(eci.EContentType, si.Version); v > version {
			version = v
		}
	}

	sd := pkiasn1.SignedData{
		Version:          version,
		DigestAlgorithms: digestAlgs,
		EncapContentInfo: eci,
		SignerInfos:      sis,
	}

	// Deduplicate certificates by raw DER bytes.
	seen := make(map[string]bool)
	for _, cert := range certs {
		k := string(cert.Raw)
		if !seen[k] {
			seen[k] = true
			sd.Certificates = append(sd.Certificates, asn1.RawValue{FullBytes: cert.Raw})
		}
	}

	// Embed CRLs verbatim.
	for _, crlBytes := range s.crls {
		sd.CRLs = append(sd.CRLs, asn1.RawValue{FullBytes: crlBytes})
	}

	return sd, nil
}

// deduplicateDigestAlgs returns one AlgorithmIdentifier per distinct OID,
// preserving the order of first appearance.
func deduplicateDigestAlgs(hashes []crypto.Hash) ([]pkix.AlgorithmIdentifier, error) {
	seen := make(map[string]bool)
	var algs []pkix.AlgorithmIdentifier
	for _, h := range hashes {
		alg, err := digestAlgID(h)
		if err != nil {
			return nil, err
		}
		k := alg.Algorithm.String()
		if !seen[k] {
			seen[k] = true
			algs = append(algs, alg)
		}
	}
	return algs, nil
}

// computeSignedDataVersion computes the required SignedData version per RFC 5652 §5.1.
// Only v1 and v3 are relevant for our signing path (v4 and v5 require attribute
// certificate types that this library does not produce).
func computeSignedDataVersion(eContentType asn1.ObjectIdentifier, signerInfoVersion int) int {
	if signerInfoVersion == 3 {
		return 3
	}
	if !eContentType.Equal(pkiasn1.OIDData) {
		return 3
	}
	return 1
}

// marshalSignedDataCI wraps a SignedData in a ContentInfo and returns DER bytes.
func marshalSignedDataCI(sd pkiasn1.SignedData) ([]byte, error) {
	sdBytes, err := asn1.Marshal(sd)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "marshal SignedData", err)
	}
	return wrapContentInfo(pkiasn1.OIDSignedData, sdBytes)
}

// --- ParseSignedData and verification ---

// VerifyPolicy selects how Verify aggregates per-signer outcomes.
type VerifyPolicy int

const (
	// VerifyAllSigners requires every SignerInfo to verify. This is the default.
	VerifyAllSigners VerifyPolicy = iota

	// VerifyAnySigner succeeds when at least one SignerInfo verifies.
	VerifyAnySigner
)

// VerifyOption configures verification behavior.
type VerifyOption func(*verifyConfig)

type verifyConfig struct {
	roots      *x509.CertPool
	noChain    bool
	verifyTime time.Time
	verifyOpts *x509.VerifyOptions
	policy     VerifyPolicy
}

// WithSystemTrustStore uses the system root certificate store for chain validation.
func WithSystemTrustStore() VerifyOption {
	return func(c *verifyConfig) {
		// nil roots causes x509.Certificate.Verify to use the system store.
		c.roots = nil
	}
}

// WithTrustRoots uses the given certificate pool as the set of trust anchors.
func WithTrustRoots(pool *x509.CertPool) VerifyOption {
	return func(c *verifyConfig) {
		c.roots = pool
	}
}

// WithVerifyOptions provides full control over x509 verification parameters.
// This overrides any roots or time set by other options.
func WithVerifyOptions(opts x509.VerifyOptions) VerifyOption {
	return func(c *verifyConfig) {
		c.verifyOpts = &opts
	}
}

// WithNoChainValidation disables certificate chain validation. Only the
// cryptographic signature is verified. Use with caution.
func WithNoChainValidation() VerifyOption {
	return func(c *verifyConfig) {
		c.noChain = true
	}
}

// WithVerifyTime sets the reference time for certificate validity checks.
// Defaults to time.Now() at the point Verify or VerifyDetached is called.
func WithVerifyTime(t time.Time) VerifyOption {
	return func(c *verifyConfig) {
		c.verifyTime = t
	}
}

// WithVerifyPolicy selects the aggregation policy for Verify and VerifyDetached.
// Defaults to VerifyAllSigners.
func WithVerifyPolicy(p VerifyPolicy) VerifyOption {
	return func(c *verifyConfig) {
		c.policy = p
	}
}

// SignerInfo describes a single signer extracted from a parsed CMS SignedData.
// It exposes the resolved certificate and algorithm identifiers without leaking
// raw ASN.1 types from the internal package.
type SignerInfo struct {
	// Version is the SignerInfo syntax version: 1 for IssuerAndSerialNumber,
	// 3 for SubjectKeyIdentifier.
	Version int

	// Certificate is the signing certificate matched from the certificates
	// embedded in SignedData. Nil if the certificate is not embedded in the
	// message, which is valid; callers may hold it out of band.
	Certificate *x509.Certificate

	// DigestAlgorithm is the AlgorithmIdentifier for the message digest used
	// by this signer.
	DigestAlgorithm pkix.AlgorithmIdentifier

	// SignatureAlgorithm is the AlgorithmIdentifier for the signature algorithm,
	// including any algorithm-specific parameters (e.g., RSASSA-PSS-params for
	// RSA-PSS).
	SignatureAlgorithm pkix.AlgorithmIdentifier

	// Signature is the raw signature bytes. For ECDSA this is a DER-encoded
	// Ecdsa-Sig-Value; for RSA it is the raw modular exponentiation result.
	Signature []byte
}

// SignerVerifyResult reports the verification outcome for one SignerInfo.
type SignerVerifyResult struct {
	// SignerIndex is the position of the SignerInfo in the message.
	SignerIndex int

	// Certificate is the signer certificate used for verification, nil when
	// the certificate could not be located.
	Certificate *x509.Certificate

	// Err is nil when the signer verified successfully; otherwise it carries
	// the per-signer failure (ErrSignerNotFound, ErrSignatureVerifyFailed,
	// ErrUnsupportedAlgorithm, or ErrCertificateChain).
	Err error
}

// ParsedSignedData is the result of parsing a CMS SignedData message.
type ParsedSignedData struct {
	signedData pkiasn1.SignedData
	certs      []*x509.Certificate
	crls       []*x509.RevocationList
}

// ParseSignedData parses a BER- or DER-encoded CMS ContentInfo wrapping SignedData.
// BER input is normalized to DER before parsing. A message with zero SignerInfos
// is rejected with ErrNoSignerInfo unless the AllowDegenerate option is given.
// A message carrying more certificates than the configured capacity is rejected
// with ErrCapacityExceeded.
func ParseSignedData(r io.Reader, opts ...ParseOption) (*ParsedSignedData, error) {
	cfg := newParseConfig(opts)
	derBytes, err := readNormalized(r, cfg)
	if err != nil {
		return nil, err
	}
	return parseSignedDataDER(derBytes, cfg)
}

// parseSignedDataDER parses DER-normalized ContentInfo bytes into a
// ParsedSignedData, enforcing the parse configuration.
func parseSignedDataDER(derBytes []byte, cfg *parseConfig) (*ParsedSignedData, error) {
	ci, err := parseContentInfo(derBytes)
	if err != nil {
		return nil, err
	}
	inner, err := unwrapContent(ci, pkiasn1.OIDSignedData, "SignedData")
	if err != nil {
		return nil, err
	}

	var sd pkiasn1.SignedData
	if _, err := asn1.Unmarshal(inner, &sd); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing SignedData", err)
	}

	if len(sd.SignerInfos) == 0 && !cfg.allowDegenerate {
		return nil, newError(CodeNoSignerInfo,
			"SignedData carries no SignerInfos; pass AllowDegenerate to accept certificates-only messages")
	}
	if len(sd.Certificates) > cfg.maxCerts {
		return nil, newError(CodeCapacityExceeded,
			fmt.Sprintf("SignedData carries %d certificates, exceeding the limit of %d", len(sd.Certificates), cfg.maxCerts))
	}

	certs, err := parseCertificates(sd.Certificates)
	if err != nil {
		return nil, err
	}
	crls := parseCRLs(sd.CRLs)

	return &ParsedSignedData{
		signedData: sd,
		certs:      certs,
		crls:       crls,
	}, nil
}

// parseCertificates decodes the raw DER bytes of certificate choices into
// *x509.Certificate values. Non-certificate types (e.g., attribute certificates)
// are silently skipped.
func parseCertificates(rawCerts []asn1.RawValue) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw.FullBytes)
		if err != nil {
			// Skip non-standard certificate types.
			continue
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// parseCRLs decodes the raw DER bytes of revocation information choices into
// *x509.RevocationList values. Entries that fail to parse are silently skipped.
func parseCRLs(rawCRLs []asn1.RawValue) []*x509.RevocationList {
	var crls []*x509.RevocationList
	for _, raw := range rawCRLs {
		crl, err := x509.ParseRevocationList(raw.FullBytes)
		if err != nil {
			continue
		}
		crls = append(crls, crl)
	}
	return crls
}

// IsDetached reports whether eContent is absent from EncapsulatedContentInfo,
// meaning the signature is over external content (detached signature).
// A signed 0-byte payload has IsDetached() == false with an empty Content reader.
func (p *ParsedSignedData) IsDetached() bool {
	return p.signedData.EncapContentInfo.IsDetached()
}

// IsDegenerate reports whether the message carries zero SignerInfos
// (a certificates-only message).
func (p *ParsedSignedData) IsDegenerate() bool {
	return len(p.signedData.SignerInfos) == 0
}

// ContentType returns the eContentType OID of the encapsulated content.
func (p *ParsedSignedData) ContentType() asn1.ObjectIdentifier {
	return p.signedData.EncapContentInfo.EContentType
}

// Content returns an io.Reader over the encapsulated content OCTET STRING value.
// For a signed 0-byte payload this returns a reader over zero bytes.
// Returns ErrDetachedContentMismatch if the signature is detached.
func (p *ParsedSignedData) Content() (io.Reader, error) {
	if p.IsDetached() {
		return nil, newError(CodeDetachedContentMismatch,
			"Content called on a detached SignedData; use VerifyDetached to supply content")
	}
	raw := p.signedData.EncapContentInfo.EContent
	// EContent is [0] EXPLICIT OCTET STRING. raw.Bytes contains the OCTET STRING TLV.
	var octetString []byte
	if _, err := asn1.Unmarshal(raw.Bytes, &octetString); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing eContent OCTET STRING", err)
	}
	return bytes.NewReader(octetString), nil
}

// Certificates returns the certificates embedded in the SignedData.
func (p *ParsedSignedData) Certificates() []*x509.Certificate {
	return p.certs
}

// CRLs returns the Certificate Revocation Lists embedded in the SignedData.
func (p *ParsedSignedData) CRLs() []*x509.RevocationList {
	return p.crls
}

// Signers returns a summary of each SignerInfo in the parsed SignedData.
// Certificates are matched from the embedded certificates field. If no
// matching certificate is embedded, SignerInfo.Certificate is nil.
func (p *ParsedSignedData) Signers() []SignerInfo {
	result := make([]SignerInfo, len(p.signedData.SignerInfos))
	for i, si := range p.signedData.SignerInfos {
		result[i] = SignerInfo{
			Version:            si.Version,
			Certificate:        p.findSignerCertOrNil(si),
			DigestAlgorithm:    si.DigestAlgorithm,
			SignatureAlgorithm: si.SignatureAlgorithm,
			Signature:          si.Signature,
		}
	}
	return result
}

// SignedAttributes returns the decoded signed attributes of the SignerInfo at
// index i, or nil when that signer carries none.
func (p *ParsedSignedData) SignedAttributes(i int) ([]Attribute, error) {
	si, err := p.signerAt(i)
	if err != nil {
		return nil, err
	}
	if len(si.SignedAttrs.FullBytes) == 0 {
		return nil, nil
	}
	return decodeAttributeSet(retagAsSet(si.SignedAttrs.FullBytes))
}

// UnsignedAttributes returns the decoded unsigned attributes of the SignerInfo
// at index i, or nil when that signer carries none.
func (p *ParsedSignedData) UnsignedAttributes(i int) ([]Attribute, error) {
	si, err := p.signerAt(i)
	if err != nil {
		return nil, err
	}
	if len(si.UnsignedAttrs.FullBytes) == 0 {
		return nil, nil
	}
	return decodeAttributeSet(retagAsSet(si.UnsignedAttrs.FullBytes))
}

// AttributeValue returns the DER encoding of the first value of the signed
// attribute with the given OID on the SignerInfo at index i, or nil when the
// attribute is absent.
func (p *ParsedSignedData) AttributeValue(i int, oid asn1.ObjectIdentifier) ([]byte, error) {
	attrs, err := p.SignedAttributes(i)
	if err != nil {
		return nil, err
	}
	val, _ := findAttribute(attrs, oid)
	return val, nil
}

func (p *ParsedSignedData) signerAt(i int) (pkiasn1.SignerInfo, error) {
	if i < 0 || i >= len(p.signedData.SignerInfos) {
		return pkiasn1.SignerInfo{}, newError(CodeSignerNotFound,
			fmt.Sprintf("SignerInfo index %d out of range (%d signers)", i, len(p.signedData.SignerInfos)))
	}
	return p.signedData.SignerInfos[i], nil
}

// findSignerCertOrNil attempts to locate the signing certificate for si from
// the embedded certificates. Returns nil without error when the certificate is
// absent or the SID cannot be parsed.
func (p *ParsedSignedData) findSignerCertOrNil(si pkiasn1.SignerInfo) *x509.Certificate {
	cert, err := p.findSignerCert(si)
	if err != nil {
		return nil
	}
	return cert
}

// Verify verifies the SignerInfos in an attached-content SignedData according
// to the configured policy (all signers by default).
// Returns ErrDetachedContentMismatch if the SignedData is detached and
// ErrNoSignerInfo if the message carries no signers.
func (p *ParsedSignedData) Verify(opts ...VerifyOption) error {
	if p.IsDetached() {
		return newError(CodeDetachedContentMismatch,
			"Verify called on a detached SignedData; use VerifyDetached")
	}
	contentBytes, err := p.attachedContentBytes()
	if err != nil {
		return err
	}
	return p.verifyWithContent(contentBytes, opts...)
}

// VerifyDetached verifies the SignerInfos using the externally provided content.
// Returns ErrDetachedContentMismatch if the SignedData is not detached.
func (p *ParsedSignedData) VerifyDetached(content io.Reader, opts ...VerifyOption) error {
	if !p.IsDetached() {
		return newError(CodeDetachedContentMismatch,
			"VerifyDetached called on an attached SignedData; use Verify")
	}
	contentBytes, err := io.ReadAll(content)
	if err != nil {
		return wrapError(CodeMalformedEncoding, "reading detached content", err)
	}
	return p.verifyWithContent(contentBytes, opts...)
}

// VerifySigners verifies every SignerInfo independently against the attached
// content and returns one result per signer in message order. One failed
// signer does not stop verification of the rest.
// Returns ErrNoSignerInfo for a degenerate message and
// ErrDetachedContentMismatch for a detached one.
func (p *ParsedSignedData) VerifySigners(opts ...VerifyOption) ([]SignerVerifyResult, error) {
	if p.IsDetached() {
		return nil, newError(CodeDetachedContentMismatch,
			"VerifySigners called on a detached SignedData; use VerifySignersDetached")
	}
	contentBytes, err := p.attachedContentBytes()
	if err != nil {
		return nil, err
	}
	return p.verifySigners(contentBytes, opts...)
}

// VerifySignersDetached verifies every SignerInfo independently against the
// externally provided content and returns one result per signer.
func (p *ParsedSignedData) VerifySignersDetached(content io.Reader, opts ...VerifyOption) ([]SignerVerifyResult, error) {
	if !p.IsDetached() {
		return nil, newError(CodeDetachedContentMismatch,
			"VerifySignersDetached called on an attached SignedData; use VerifySigners")
	}
	contentBytes, err := io.ReadAll(content)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "reading detached content", err)
	}
	return p.verifySigners(contentBytes, opts...)
}

func (p *ParsedSignedData) attachedContentBytes() ([]byte, error) {
	content, err := p.Content()
	if err != nil {
		return nil, err
	}
	contentBytes, err := io.ReadAll(content)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "reading content for verification", err)
	}
	return contentBytes, nil
}

// verifyWithContent applies the aggregation policy over per-signer results.
func (p *ParsedSignedData) verifyWithContent(content []byte, opts ...VerifyOption) error {
	cfg := newVerifyConfig(opts)

	results, err := p.verifySignersCfg(content, cfg)
	if err != nil {
		return err
	}

	switch cfg.policy {
	case VerifyAnySigner:
		var errs []error
		for _, res := range results {
			if res.Err == nil {
				return nil
			}
			errs = append(errs, res.Err)
		}
		return wrapError(CodeSignatureVerifyFailed, "no SignerInfo verified", joinErrors(errs))

	default: // VerifyAllSigners
		for _, res := range results {
			if res.Err != nil {
				e := res.Err.(*Error)
				return wrapError(e.Code,
					fmt.Sprintf("SignerInfo[%d]: %s", res.SignerIndex, e.Message), e.Cause)
			}
		}
		return nil
	}
}

func (p *ParsedSignedData) verifySigners(content []byte, opts ...VerifyOption) ([]SignerVerifyResult, error) {
	return p.verifySignersCfg(content, newVerifyConfig(opts))
}

func newVerifyConfig(opts []VerifyOption) *verifyConfig {
	cfg := &verifyConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.verifyTime.IsZero() {
		cfg.verifyTime = time.Now()
	}
	return cfg
}

// verifySignersCfg verifies all SignerInfos against the given content bytes,
// producing one result per signer.
func (p *ParsedSignedData) verifySignersCfg(content []byte, cfg *verifyConfig) ([]SignerVerifyResult, error) {
	if len(p.signedData.SignerInfos) == 0 {
		return nil, newError(CodeNoSignerInfo, "SignedData carries no SignerInfos to verify")
	}

	results := make([]SignerVerifyResult, len(p.signedData.SignerInfos))
	for i, si := range p.signedData.SignerInfos {
		cert, err := p.verifySigner(si, content, cfg)
		results[i] = SignerVerifyResult{SignerIndex: i, Certificate: cert, Err: err}
	}
	return results, nil
}

// verifySigner verifies a single SignerInfo against the content and returns
// the certificate it resolved, when one was found.
func (p *ParsedSignedData) verifySigner(si pkiasn1.SignerInfo, content []byte, cfg *verifyConfig) (*x509.Certificate, error) {
	cert, err := p.findSignerCert(si)
	if err != nil {
		return nil, err
	}

	digestHash, err := hashFromOID(si.DigestAlgorithm.Algorithm)
	if err != nil {
		return cert, err
	}

	signedAttrsPresent := len(si.SignedAttrs.FullBytes) > 0

	// Step 1: Independently compute the content digest.
	h, err := newHash(digestHash)
	if err != nil {
		return cert, err
	}
	h.Write(content)
	computedDigest := h.Sum(nil)

	if signedAttrsPresent {
		// Step 2: Validate signed attributes. The wire form uses IMPLICIT [0];
		// re-tag as SET for attribute parsing and digest computation.
		setBytes := retagAsSet(si.SignedAttrs.FullBytes)

		if err := validateSignedAttrs(setBytes, computedDigest, p.signedData.EncapContentInfo.EContentType); err != nil {
			return cert, err
		}

		// Step 3: Verify signature over DER-encoded signedAttrs (SET form).
		h3, err := newHash(digestHash)
		if err != nil {
			return cert, err
		}
		h3.Write(setBytes)
		signedAttrsDigest := h3.Sum(nil)

		if err := verifySignature(cert, si, signedAttrsDigest, digestHash); err != nil {
			return cert, err
		}
	} else {
		// No signed attributes: verify signature directly over the content digest.
		if err := verifySignature(cert, si, computedDigest, digestHash); err != nil {
			return cert, err
		}
	}

	// Step 4: Chain validation (unless disabled).
	if !cfg.noChain {
		if err := validateChain(cert, p.certs, cfg); err != nil {
			return cert, err
		}
	}

	return cert, nil
}

// findSignerCert locates the signing certificate from the embedded certificates
// by matching the SignerIdentifier in the SignerInfo.
func (p *ParsedSignedData) findSignerCert(si pkiasn1.SignerInfo) (*x509.Certificate, error) {
	switch si.Version {
	case 1:
		return p.findCertByIssuerSerial(si.SID)
	case 3:
		return p.findCertBySKI(si.SID)
	default:
		return nil, newError(CodeMalformedEncoding,
			fmt.Sprintf("unsupported SignerInfo version %d", si.Version))
	}
}

// findCertByIssuerSerial matches a certificate by IssuerAndSerialNumber.
func (p *ParsedSignedData) findCertByIssuerSerial(sid asn1.RawValue) (*x509.Certificate, error) {
	var isn pkiasn1.IssuerAndSerialNumber
	if _, err := asn1.Unmarshal(sid.FullBytes, &isn); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing IssuerAndSerialNumber", err)
	}
	for _, cert := range p.certs {
		if cert.SerialNumber.Cmp(isn.SerialNumber) == 0 &&
			bytes.Equal(cert.RawIssuer, isn.Issuer.FullBytes) {
			return cert, nil
		}
	}
	return nil, newError(CodeSignerNotFound,
		fmt.Sprintf("signer certificate with serial %s not found in SignedData", isn.SerialNumber))
}

// findCertBySKI matches a certificate by SubjectKeyIdentifier.
func (p *ParsedSignedData) findCertBySKI(sid asn1.RawValue) (*x509.Certificate, error) {
	// sid is [0] IMPLICIT OCTET STRING.
	var ski []byte
	rest, err := asn1.UnmarshalWithParams(sid.FullBytes, &ski, "tag:0")
	if err != nil || len(rest) > 0 {
		return nil, wrapError(CodeMalformedEncoding, "parsing SubjectKeyIdentifier from SID", err)
	}
	for _, cert := range p.certs {
		if bytes.Equal(cert.SubjectKeyId, ski) {
			return cert, nil
		}
	}
	return nil, newError(CodeSignerNotFound, "signer certificate with matching SubjectKeyIdentifier not found")
}

// validateSignedAttrs parses the SET-tagged signedAttrs bytes and verifies that:
//   - content-type attribute is present and equals eContentType
//   - message-digest attribute is present and equals computedDigest
func validateSignedAttrs(setBytes []byte, computedDigest []byte, eContentType asn1.ObjectIdentifier) error {
	var attrs pkiasn1.RawAttributes
	if _, err := asn1.UnmarshalWithParams(setBytes, &attrs, "set"); err != nil {
		return wrapError(CodeMalformedEncoding, "parsing signedAttrs", err)
	}

	var foundCT, foundMD bool
	for _, attr := range attrs {
		switch {
		case attr.Type.Equal(pkiasn1.OIDAttributeContentType):
			var oid asn1.ObjectIdentifier
			if _, err := asn1.Unmarshal(attr.Values.Bytes, &oid); err != nil {
				return wrapError(CodeSignatureVerifyFailed, "parsing content-type attribute value", err)
			}
			if !oid.Equal(eContentType) {
				return newError(CodeSignatureVerifyFailed,
					fmt.Sprintf("content-type attribute %s does not match eContentType %s", oid, eContentType))
			}
			foundCT = true

		case attr.Type.Equal(pkiasn1.OIDAttributeMessageDigest):
			var messageDigest []byte
			if _, err := asn1.Unmarshal(attr.Values.Bytes, &messageDigest); err != nil {
				return wrapError(CodeSignatureVerifyFailed, "parsing message-digest attribute value", err)
			}
			if !bytes.Equal(messageDigest, computedDigest) {
				return newError(CodeSignatureVerifyFailed,
					"message-digest attribute does not match independently computed digest")
			}
			foundMD = true
		}
	}

	if !foundCT {
		return newError(CodeSignatureVerifyFailed, "mandatory content-type signed attribute is missing")
	}
	if !foundMD {
		return newError(CodeSignatureVerifyFailed, "mandatory message-digest signed attribute is missing")
	}
	return nil
}

// verifySignature verifies the cryptographic signature in si against digest
// using the public key from cert.
func verifySignature(cert *x509.Certificate, si pkiasn1.SignerInfo, digest []byte, h crypto.Hash) error {
	sigAlgOID := si.SignatureAlgorithm.Algorithm

	switch {
	case isRSAPKCS1OID(sigAlgOID):
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return newError(CodeSignatureVerifyFailed, "signature algorithm is RSA but certificate has non-RSA key")
		}
		if err := rsa.VerifyPKCS1v15(pub, h, digest, si.Signature); err != nil {
			return wrapError(CodeSignatureVerifyFailed, "RSA PKCS1v15 signature verification failed", err)
		}

	case sigAlgOID.Equal(pkiasn1.OIDSignatureAlgorithmRSAPSS):
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return newError(CodeSignatureVerifyFailed, "signature algorithm is RSA-PSS but certificate has non-RSA key")
		}
		saltLen, err := saltLengthForHash(h)
		if err != nil {
			return err
		}
		if err := rsa.VerifyPSS(pub, h, digest, si.Signature, &rsa.PSSOptions{
			SaltLength: saltLen,
			Hash:       h,
		}); err != nil {
			return wrapError(CodeSignatureVerifyFailed, "RSA-PSS signature verification failed", err)
		}

	case isECDSAOID(sigAlgOID):
		// Go's ecdsa.VerifyASN1 accepts DER-encoded Ecdsa-Sig-Value directly.
		if !verifyECDSA(cert, digest, si.Signature) {
			return newError(CodeSignatureVerifyFailed, "ECDSA signature verification failed")
		}

	case sigAlgOID.Equal(pkiasn1.OIDSignatureAlgorithmEd25519):
		// Ed25519 verification is over the message, not a hash.
		if !verifyEd25519(cert, digest, si.Signature) {
			return newError(CodeSignatureVerifyFailed, "Ed25519 signature verification failed")
		}

	default:
		return newError(CodeUnsupportedAlgorithm,
			fmt.Sprintf("unsupported signature algorithm OID %s", sigAlgOID))
	}

	return nil
}

// isRSAPKCS1OID returns true if oid identifies an RSA PKCS1v15 signature.
// This includes both the combined sha*WithRSAEncryption OIDs and the bare
// rsaEncryption OID (1.2.840.113549.1.1.1), which some implementations
// (including OpenSSL) emit in CMS SignerInfo.signatureAlgorithm, relying on
// the DigestAlgorithm field for the hash.
func isRSAPKCS1OID(oid asn1.ObjectIdentifier) bool {
	return oid.Equal(pkiasn1.OIDSignatureAlgorithmRSA) ||
		oid.Equal(pkiasn1.OIDSignatureAlgorithmSHA256WithRSA) ||
		oid.Equal(pkiasn1.OIDSignatureAlgorithmSHA384WithRSA) ||
		oid.Equal(pkiasn1.OIDSignatureAlgorithmSHA512WithRSA)
}

// isECDSAOID returns true if oid is one of the ecdsa-with-SHA* OIDs.
func isECDSAOID(oid asn1.ObjectIdentifier) bool {
	return oid.Equal(pkiasn1.OIDSignatureAlgorithmECDSAWithSHA256) ||
		oid.Equal(pkiasn1.OIDSignatureAlgorithmECDSAWithSHA384) ||
		oid.Equal(pkiasn1.OIDSignatureAlgorithmECDSAWithSHA512)
}

// verifyECDSA verifies an ECDSA signature (DER-encoded Ecdsa-Sig-Value) against digest.
func verifyECDSA(cert *x509.Certificate, digest, sig []byte) bool {
	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return false
	}
	return ecdsa.VerifyASN1(pub, digest, sig)
}

// verifyEd25519 verifies an Ed25519 signature. The digest parameter is the raw
// message (not a hash), since Ed25519 performs its own internal hashing.
func verifyEd25519(cert *x509.Certificate, message, sig []byte) bool {
	pub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return false
	}
	return ed25519.Verify(pub, message, sig)
}

// validateChain verifies that cert chains to a trusted root using the certificates
// embedded in the SignedData as intermediates.
func validateChain(cert *x509.Certificate, embedded []*x509.Certificate, cfg *verifyConfig) error {
	if cfg.verifyOpts != nil {
		// Caller has full control.
		if _, err := cert.Verify(*cfg.verifyOpts); err != nil {
			return wrapError(CodeCertificateChain, "certificate chain validation failed", err)
		}
		return nil
	}

	intermediates := x509.NewCertPool()
	for _, c := range embedded {
		if !bytes.Equal(c.Raw, cert.Raw) {
			intermediates.AddCert(c)
		}
	}

	opts := x509.VerifyOptions{
		Roots:         cfg.roots,
		Intermediates: intermediates,
		CurrentTime:   cfg.verifyTime,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	if _, err := cert.Verify(opts); err != nil {
		return wrapError(CodeCertificateChain, "certificate chain validation failed", err)
	}
	return nil
}
