package cms

import (
	"bytes"
	"compress/zlib"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"io"

	pkiasn1 "github.com/smartiq/cms/internal/asn1"
)

// Compressor builds a CMS CompressedData message (RFC 3274) using a fluent
// builder API. The only registered compression algorithm is zlib. Builder
// methods accumulate configuration and errors; Compress reports all
// configuration errors at once.
type Compressor struct {
	contentType asn1.ObjectIdentifier
	maxSize     int64
	errs        []error
}

// NewCompressor returns a new Compressor with default settings:
//   - zlib compression
//   - id-data content type
//   - 64 MiB content size limit
func NewCompressor() *Compressor {
	return &Compressor{
		contentType: pkiasn1.OIDData,
		maxSize:     DefaultMaxMessageSize,
	}
}

// WithContentType sets a custom eContentType OID. Default is id-data.
func (c *Compressor) WithContentType(oid asn1.ObjectIdentifier) *Compressor {
	if len(oid) == 0 {
		c.errs = append(c.errs, newConfigError("content type OID is empty"))
		return c
	}
	c.contentType = oid
	return c
}

// WithMaxContentSize sets the maximum content size in bytes. Defaults to
// DefaultMaxMessageSize (64 MiB). Pass UnlimitedMessageSize to disable.
func (c *Compressor) WithMaxContentSize(maxBytes int64) *Compressor {
	c.maxSize = maxBytes
	return c
}

// Compress reads content from r, compresses it with zlib, and returns the
// DER-encoded CMS ContentInfo wrapping CompressedData.
func (c *Compressor) Compress(r io.Reader) ([]byte, error) {
	if err := joinErrors(c.errs); err != nil {
		return nil, err
	}

	content, err := readLimited(r, c.maxSize, "content for compression")
	if err != nil {
		return nil, err
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(content); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "compressing content", err)
	}
	if err := zw.Close(); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "flushing compressed content", err)
	}

	eci, err := buildEncapContent(c.contentType, compressed.Bytes(), false)
	if err != nil {
		return nil, err
	}

	cd := pkiasn1.CompressedData{
		Version:              0,
		CompressionAlgorithm: pkix.AlgorithmIdentifier{Algorithm: pkiasn1.OIDCompressionZlib},
		EncapContentInfo:     eci,
	}

	cdBytes, err := asn1.Marshal(cd)
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "marshal CompressedData", err)
	}
	return wrapContentInfo(pkiasn1.OIDCompressedData, cdBytes)
}

// ParsedCompressedData wraps a parsed CompressedData for decompression.
type ParsedCompressedData struct {
	compressedData pkiasn1.CompressedData
	maxOutput      int64
}

// ParseCompressedData parses a BER- or DER-encoded CMS ContentInfo wrapping
// CompressedData. The decompressed output is capped at the configured maximum
// message size to bound decompression-bomb expansion; use WithMaxMessageSize
// to adjust it.
func ParseCompressedData(r io.Reader, opts ...ParseOption) (*ParsedCompressedData, error) {
	cfg := newParseConfig(opts)
	derBytes, err := readNormalized(r, cfg)
	if err != nil {
		return nil, err
	}
	return parseCompressedDataDER(derBytes, cfg)
}

func parseCompressedDataDER(derBytes []byte, cfg *parseConfig) (*ParsedCompressedData, error) {
	ci, err := parseContentInfo(derBytes)
	if err != nil {
		return nil, err
	}
	inner, err := unwrapContent(ci, pkiasn1.OIDCompressedData, "CompressedData")
	if err != nil {
		return nil, err
	}

	var cd pkiasn1.CompressedData
	if _, err := asn1.Unmarshal(inner, &cd); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing CompressedData structure", err)
	}
	if !cd.CompressionAlgorithm.Algorithm.Equal(pkiasn1.OIDCompressionZlib) {
		return nil, newError(CodeUnsupportedAlgorithm,
			fmt.Sprintf("unsupported compression algorithm OID %s", cd.CompressionAlgorithm.Algorithm))
	}

	return &ParsedCompressedData{compressedData: cd, maxOutput: cfg.maxSize}, nil
}

// ContentType returns the eContentType OID of the compressed content.
func (p *ParsedCompressedData) ContentType() asn1.ObjectIdentifier {
	return p.compressedData.EncapContentInfo.EContentType
}

// Content decompresses and returns the original content. Decompression output
// exceeding the configured maximum message size is rejected with
// ErrPayloadTooLarge.
func (p *ParsedCompressedData) Content() ([]byte, error) {
	if p.compressedData.EncapContentInfo.IsDetached() {
		return nil, newError(CodeMalformedEncoding, "CompressedData carries no eContent")
	}
	compressed, err := readEncapContent(p.compressedData.EncapContentInfo)
	if err != nil {
		return nil, err
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "opening zlib stream", err)
	}
	defer zr.Close()

	content, err := readLimited(zr, p.maxOutput, "decompressed content")
	if err != nil {
		return nil, err
	}
	return content, nil
}
