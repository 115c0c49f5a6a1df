package cms

import (
	"bytes"
	"encoding/asn1"
	"fmt"
	"io"

	"github.com/smartiq/cms/ber"
	pkiasn1 "github.com/smartiq/cms/internal/asn1"
)

// ParseOption configures parsing behavior for Parse and the per-type
// Parse* functions.
type ParseOption func(*parseConfig)

type parseConfig struct {
	maxSize         int64
	maxCerts        int
	maxRecipients   int
	allowDegenerate bool
}

func newParseConfig(opts []ParseOption) *parseConfig {
	cfg := &parseConfig{
		maxSize:       DefaultMaxMessageSize,
		maxCerts:      DefaultMaxCertificates,
		maxRecipients: DefaultMaxRecipients,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithMaxMessageSize sets the maximum accepted input size in bytes for parsing.
// Defaults to DefaultMaxMessageSize (64 MiB). Pass UnlimitedMessageSize to disable.
func WithMaxMessageSize(maxBytes int64) ParseOption {
	return func(c *parseConfig) {
		c.maxSize = maxBytes
	}
}

// WithMaxCertificates sets the maximum number of certificates accepted in a
// SignedData message. Defaults to DefaultMaxCertificates. Parsing a message
// with more certificates returns ErrCapacityExceeded.
func WithMaxCertificates(n int) ParseOption {
	return func(c *parseConfig) {
		c.maxCerts = n
	}
}

// WithMaxRecipients sets the maximum number of RecipientInfo entries accepted
// in an EnvelopedData message. Defaults to DefaultMaxRecipients. Parsing a
// message with more recipients returns ErrCapacityExceeded.
func WithMaxRecipients(n int) ParseOption {
	return func(c *parseConfig) {
		c.maxRecipients = n
	}
}

// AllowDegenerate permits parsing a SignedData message with zero SignerInfos.
// Such certificates-only messages are the conventional container for
// distributing certificate bundles. Without this option, parsing one returns
// ErrNoSignerInfo.
func AllowDegenerate() ParseOption {
	return func(c *parseConfig) {
		c.allowDegenerate = true
	}
}

// Message is the result of parsing a CMS ContentInfo of any supported content
// type. Exactly one of the typed fields is non-nil (or Data non-nil for the
// id-data type), selected by ContentType.
type Message struct {
	// ContentType is the outer content type OID of the message.
	ContentType asn1.ObjectIdentifier

	// Data holds the content of an id-data message.
	Data []byte
	// SignedData holds a parsed SignedData message.
	SignedData *ParsedSignedData
	// EnvelopedData holds a parsed EnvelopedData message.
	EnvelopedData *ParsedEnvelopedData
	// EncryptedData holds a parsed EncryptedData message.
	EncryptedData *ParsedEncryptedData
	// CompressedData holds a parsed CompressedData message.
	CompressedData *ParsedCompressedData
	// DigestedData holds a parsed DigestedData message.
	DigestedData *ParsedDigestedData
}

// Parse reads a BER- or DER-encoded CMS ContentInfo from r, dispatches on the
// content type OID, and returns the decoded message. An OID outside the
// supported set returns ErrUnsupportedContentType naming the OID.
func Parse(r io.Reader, opts ...ParseOption) (*Message, error) {
	cfg := newParseConfig(opts)

	derBytes, err := readNormalized(r, cfg)
	if err != nil {
		return nil, err
	}

	ci, err := parseContentInfo(derBytes)
	if err != nil {
		return nil, err
	}

	msg := &Message{ContentType: ci.ContentType}
	switch {
	case ci.ContentType.Equal(pkiasn1.OIDData):
		msg.Data, err = unwrapDataContent(ci)

	case ci.ContentType.Equal(pkiasn1.OIDSignedData):
		msg.SignedData, err = parseSignedDataDER(derBytes, cfg)

	case ci.ContentType.Equal(pkiasn1.OIDEnvelopedData):
		msg.EnvelopedData, err = parseEnvelopedDataDER(derBytes, cfg)

	case ci.ContentType.Equal(pkiasn1.OIDEncryptedData):
		msg.EncryptedData, err = parseEncryptedDataDER(derBytes)

	case ci.ContentType.Equal(pkiasn1.OIDCompressedData):
		msg.CompressedData, err = parseCompressedDataDER(derBytes, cfg)

	case ci.ContentType.Equal(pkiasn1.OIDDigestedData):
		msg.DigestedData, err = parseDigestedDataDER(derBytes)

	default:
		return nil, newError(CodeUnsupportedContentType,
			fmt.Sprintf("unsupported content type OID %s", ci.ContentType))
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// EncodeData wraps content in a CMS ContentInfo of type id-data and returns
// the DER encoding. The content is carried as an OCTET STRING.
func EncodeData(content []byte) ([]byte, error) {
	octets, err := asn1.Marshal(content)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "marshal data OCTET STRING", err)
	}
	return wrapContentInfo(pkiasn1.OIDData, octets)
}

// ParseData parses a CMS ContentInfo of type id-data and returns the content
// bytes. Any other content type returns ErrUnsupportedContentType.
func ParseData(r io.Reader, opts ...ParseOption) ([]byte, error) {
	cfg := newParseConfig(opts)

	derBytes, err := readNormalized(r, cfg)
	if err != nil {
		return nil, err
	}
	ci, err := parseContentInfo(derBytes)
	if err != nil {
		return nil, err
	}
	if !ci.ContentType.Equal(pkiasn1.OIDData) {
		return nil, newError(CodeUnsupportedContentType,
			fmt.Sprintf("expected id-data content type, got %s", ci.ContentType))
	}
	return unwrapDataContent(ci)
}

// readNormalized reads r up to the configured size limit and normalizes BER
// input to DER.
func readNormalized(r io.Reader, cfg *parseConfig) ([]byte, error) {
	input, err := readLimited(r, cfg.maxSize, "message input")
	if err != nil {
		return nil, err
	}
	derBytes, err := ber.Normalize(bytes.NewReader(input))
	if err != nil {
		return nil, wrapError(CodeBERConversion, "BER to DER normalization failed", err)
	}
	return derBytes, nil
}

// readLimited reads r, enforcing maxSize when it is not UnlimitedMessageSize.
// Reading one byte past the limit proves the input is too large without
// buffering the excess.
func readLimited(r io.Reader, maxSize int64, what string) ([]byte, error) {
	if maxSize == UnlimitedMessageSize {
		buf, err := io.ReadAll(r)
		if err != nil {
			return nil, wrapError(CodeMalformedEncoding, "reading "+what, err)
		}
		return buf, nil
	}
	lr := io.LimitReader(r, maxSize+1)
	buf, err := io.ReadAll(lr)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "reading "+what, err)
	}
	if int64(len(buf)) > maxSize {
		return nil, newError(CodePayloadTooLarge,
			fmt.Sprintf("%s exceeds limit of %d bytes", what, maxSize))
	}
	return buf, nil
}

// parseContentInfo parses the outer ContentInfo SEQUENCE and rejects trailing data.
func parseContentInfo(derBytes []byte) (pkiasn1.ContentInfo, error) {
	var ci pkiasn1.ContentInfo
	rest, err := asn1.Unmarshal(derBytes, &ci)
	if err != nil {
		return pkiasn1.ContentInfo{}, wrapError(CodeMalformedEncoding, "parsing ContentInfo", err)
	}
	if len(rest) > 0 {
		return pkiasn1.ContentInfo{}, newError(CodeMalformedEncoding, "trailing data after ContentInfo")
	}
	return ci, nil
}

// unwrapContent extracts the inner content bytes of a ContentInfo after
// checking its type OID. ci.Content is the [0] EXPLICIT wrapper; its Bytes
// hold the full TLV of the inner structure.
func unwrapContent(ci pkiasn1.ContentInfo, want asn1.ObjectIdentifier, name string) ([]byte, error) {
	if !ci.ContentType.Equal(want) {
		return nil, newError(CodeUnsupportedContentType,
			fmt.Sprintf("expected %s content type, got %s", name, ci.ContentType))
	}
	if len(ci.Content.Bytes) == 0 {
		return nil, newError(CodeMalformedEncoding, name+" content is absent")
	}
	return ci.Content.Bytes, nil
}

// unwrapDataContent extracts the OCTET STRING content of an id-data ContentInfo.
func unwrapDataContent(ci pkiasn1.ContentInfo) ([]byte, error) {
	inner, err := unwrapContent(ci, pkiasn1.OIDData, "id-data")
	if err != nil {
		return nil, err
	}
	var content []byte
	if _, err := asn1.Unmarshal(inner, &content); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing id-data OCTET STRING", err)
	}
	return content, nil
}

// wrapContentInfo wraps pre-encoded inner content bytes in a ContentInfo with
// the given content type and returns the DER encoding.
//
// Go's encoding/asn1 ignores struct-tag annotations (including explicit,tag:0)
// when RawValue.FullBytes is set — it writes FullBytes verbatim. We therefore
// pre-build the [0] EXPLICIT wrapper around innerDER before assigning to
// FullBytes, ensuring the wire form is
// SEQUENCE { OID, [0] EXPLICIT { inner } }.
func wrapContentInfo(contentType asn1.ObjectIdentifier, innerDER []byte) ([]byte, error) {
	explicit0, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        0,
		IsCompound: true,
		Bytes:      innerDER,
	})
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "marshal ContentInfo [0] wrapper", err)
	}

	ci := pkiasn1.ContentInfo{
		ContentType: contentType,
		Content:     asn1.RawValue{FullBytes: explicit0},
	}
	out, err := asn1.Marshal(ci)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "marshal ContentInfo", err)
	}
	return out, nil
}
