/*
Package cms implements the Cryptographic Message Syntax as defined in RFC 5652
(and its PKCS #7 predecessor, RFC 2315).

It provides encoding and decoding of the Data, SignedData, EnvelopedData,
EncryptedData, DigestedData, and CompressedData content types, including the
key transport, key agreement, pre-shared key-encryption-key, password, and
ML-KEM recipient mechanisms for EnvelopedData. Messages produced by this
package are interoperable with other CMS implementations including OpenSSL
and Java Bouncy Castle.
*/
package cms

import "errors"

// ErrorCode identifies the category of a CMS error.
type ErrorCode int

const (
	// CodeMalformedEncoding indicates a malformed ASN.1 structure, a tag or
	// length mismatch, or otherwise invalid CMS content encountered during parse.
	CodeMalformedEncoding ErrorCode = iota
	// CodeBERConversion indicates a failure during BER to DER normalization.
	CodeBERConversion
	// CodeCapacityExceeded indicates a certificate or recipient count beyond
	// the configured maximum. The collection is left unchanged.
	CodeCapacityExceeded
	// CodeUnsupportedContentType indicates an outer content-type OID that this
	// package does not recognize or does not implement.
	CodeUnsupportedContentType
	// CodeUnsupportedAlgorithm indicates an algorithm OID that is unknown or
	// not in the allow-list.
	CodeUnsupportedAlgorithm
	// CodeSignerNotFound indicates the certificate named by a SignerInfo's
	// signer identifier is not present in the message.
	CodeSignerNotFound
	// CodeNoSignerInfo indicates a SignedData with zero SignerInfos, either
	// parsed without degenerate mode enabled or submitted for verification.
	CodeNoSignerInfo
	// CodeSignatureVerifyFailed indicates the cryptographic signature
	// verification failed, or a mandatory signed attribute failed validation.
	CodeSignatureVerifyFailed
	// CodeNoMatchingRecipient indicates no RecipientInfo entry could be
	// unwrapped with the supplied key material.
	CodeNoMatchingRecipient
	// CodeKeyUnwrapFailed indicates a content-encryption-key unwrap failure.
	// The message is deliberately fixed and carries no cause: distinguishing
	// padding, length, and integrity failures would expose a decryption oracle.
	CodeKeyUnwrapFailed
	// CodeBadPadding indicates a content integrity failure on decrypt:
	// invalid block-cipher padding, or an AES-GCM authentication tag
	// mismatch. The error does not report which padding byte differed.
	CodeBadPadding
	// CodeDetachedContentMismatch indicates Verify was called on a detached
	// message or VerifyDetached was called on an attached one.
	CodeDetachedContentMismatch
	// CodePayloadTooLarge indicates content exceeding the configured size limit.
	CodePayloadTooLarge
	// CodeCertificateChain indicates an X.509 certificate chain validation failure.
	CodeCertificateChain
	// CodeInvalidConfiguration indicates the builder configuration is invalid,
	// such as a nil certificate or private key. Multiple configuration errors
	// are joined using errors.Join.
	CodeInvalidConfiguration
)

// Error is the error type returned by all cms operations. It implements the error
// interface and supports error chain inspection via errors.Is and errors.As.
type Error struct {
	// Code identifies the category of this error.
	Code ErrorCode
	// Message is a human-readable description of the error.
	Message string
	// Cause is the underlying error that triggered this error, if any.
	Cause error
}

// Error returns a string representation of the error, including the cause if present.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error, enabling errors.Is and errors.As
// to traverse the error chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error by comparing error codes. This
// enables errors.Is(err, cms.ErrSignatureVerifyFailed) to match any *Error with
// the same code, regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors for use with errors.Is. Each sentinel represents an error category.
// Errors returned by this package carry descriptive messages and causes; sentinels
// are used only for category matching.
var (
	// ErrMalformedEncoding is returned when a CMS or ASN.1 structure cannot be parsed.
	ErrMalformedEncoding = &Error{Code: CodeMalformedEncoding}

	// ErrBERConversion is returned when BER to DER normalization fails.
	ErrBERConversion = &Error{Code: CodeBERConversion}

	// ErrCapacityExceeded is returned when adding a certificate or recipient
	// would exceed the configured maximum count.
	ErrCapacityExceeded = &Error{Code: CodeCapacityExceeded}

	// ErrUnsupportedContentType is returned when the outer content-type OID is
	// not one this package implements.
	ErrUnsupportedContentType = &Error{Code: CodeUnsupportedContentType}

	// ErrUnsupportedAlgorithm is returned when a message uses an algorithm not
	// in the allow-list.
	ErrUnsupportedAlgorithm = &Error{Code: CodeUnsupportedAlgorithm}

	// ErrSignerNotFound is returned when the certificate identified by a
	// SignerInfo is not present in the SignedData certificates field.
	ErrSignerNotFound = &Error{Code: CodeSignerNotFound}

	// ErrNoSignerInfo is returned when a SignedData carries no SignerInfos and
	// degenerate mode is not enabled. Certificates-only messages must be parsed
	// with AllowDegenerate.
	ErrNoSignerInfo = &Error{Code: CodeNoSignerInfo}

	// ErrSignatureVerifyFailed is returned when cryptographic signature
	// verification fails or a mandatory signed attribute is invalid.
	ErrSignatureVerifyFailed = &Error{Code: CodeSignatureVerifyFailed}

	// ErrNoMatchingRecipient is returned when no RecipientInfo could be
	// unwrapped with the available key material.
	ErrNoMatchingRecipient = &Error{Code: CodeNoMatchingRecipient}

	// ErrKeyUnwrapFailed is returned when a matched RecipientInfo's encrypted
	// key fails to unwrap. The message is fixed; no detail is reported.
	ErrKeyUnwrapFailed = &Error{Code: CodeKeyUnwrapFailed}

	// ErrBadPadding is returned when block-cipher padding validation fails
	// during decryption.
	ErrBadPadding = &Error{Code: CodeBadPadding}

	// ErrDetachedContentMismatch is returned when Verify is called on a detached
	// signature or VerifyDetached is called on an attached signature.
	ErrDetachedContentMismatch = &Error{Code: CodeDetachedContentMismatch}

	// ErrPayloadTooLarge is returned when content exceeds the configured size
	// limit. Use WithDetachedContent or increase the limit with
	// WithMaxAttachedContentSize.
	ErrPayloadTooLarge = &Error{Code: CodePayloadTooLarge}

	// ErrCertificateChain is returned when X.509 chain validation fails.
	ErrCertificateChain = &Error{Code: CodeCertificateChain}

	// ErrInvalidConfiguration is returned when the builder configuration is invalid.
	// When multiple configuration errors exist, they are joined using errors.Join so
	// that each failure is individually inspectable.
	ErrInvalidConfiguration = &Error{Code: CodeInvalidConfiguration}
)

// newError creates a new Error with the given code and message.
func newError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// wrapError creates a new Error with the given code and message, wrapping cause.
func wrapError(code ErrorCode, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// newConfigError creates a new CodeInvalidConfiguration Error with the given message.
func newConfigError(msg string) *Error {
	return &Error{Code: CodeInvalidConfiguration, Message: msg}
}

// errUnwrap is the uniform unwrap failure. It is a fixed value so every unwrap
// path, whether RSA-OAEP, RFC 3394, or RFC 3211, produces an identical error.
var errUnwrap = &Error{Code: CodeKeyUnwrapFailed, Message: "content encryption key unwrap failed"}

// joinErrors returns a joined error from the provided slice, or nil if empty.
func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
