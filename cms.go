package cms

import (
	"bytes"
	"io"
)

// FromBytes wraps a byte slice as an io.Reader for use with Sign, Encrypt,
// Parse, and other functions that accept io.Reader.
func FromBytes(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// SignerIdentifierType controls how a certificate is identified in the
// SignerInfo or RecipientInfo structure of a CMS message.
type SignerIdentifierType int

const (
	// IssuerAndSerialNumber identifies the certificate by issuer distinguished
	// name and serial number. This produces SignerInfo version 1 (KTRI version 0)
	// and is the most widely compatible form. This is the default.
	IssuerAndSerialNumber SignerIdentifierType = iota

	// SubjectKeyIdentifier identifies the certificate by the value of its
	// subjectKeyIdentifier extension. This produces SignerInfo version 3
	// (KTRI version 2).
	SubjectKeyIdentifier
)

// DefaultMaxMessageSize is the default maximum content size in bytes for
// attached content (64 MiB). Sign and Encrypt return ErrPayloadTooLarge if
// this limit is exceeded. Use WithMaxAttachedContentSize to override.
const DefaultMaxMessageSize int64 = 64 * 1024 * 1024

// UnlimitedMessageSize disables the content size limit when passed to
// WithMaxAttachedContentSize or WithMaxMessageSize. Use with caution:
// content is fully buffered in memory.
const UnlimitedMessageSize int64 = -1

// DefaultMaxCertificates is the default maximum number of certificates
// accepted in a SignedData message or added through a Signer builder.
// Use WithMaxCertificates to override.
const DefaultMaxCertificates = 16

// DefaultMaxRecipients is the default maximum number of RecipientInfo entries
// accepted in an EnvelopedData message or added through an Encryptor builder.
// Use WithMaxRecipients to override.
const DefaultMaxRecipients = 64
