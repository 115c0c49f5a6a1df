package cms

import (
	"encoding/asn1"
	"fmt"

	pkiasn1 "github.com/smartiq/cms/internal/asn1"
)

// setTagByte is the ASN.1 tag byte for an explicit SET OF, used when re-encoding
// signedAttrs for digest computation. The wire form uses IMPLICIT [0] (0xA0),
// but the digest is computed over the SET-tagged form (0x31) per RFC 5652 §5.4.
const setTagByte = byte(0x31)

// implicitTag0Byte is the ASN.1 IMPLICIT [0] CONSTRUCTED tag used on the wire
// for the SignedAttributes field in SignerInfo.
const implicitTag0Byte = byte(0xA0)

// implicitTag1Byte is the ASN.1 IMPLICIT [1] CONSTRUCTED tag used on the wire
// for UnsignedAttributes and UnprotectedAttributes fields.
const implicitTag1Byte = byte(0xA1)

// Attribute is a decoded CMS attribute. Each value in RawValues is the complete
// DER encoding of one member of the attribute's SET OF values, copied out of
// the message buffer so it remains valid after the parsed structure is released.
type Attribute struct {
	// Type identifies the attribute.
	Type asn1.ObjectIdentifier
	// RawValues holds the DER encoding of each attribute value.
	RawValues [][]byte
}

// Value returns the first attribute value, or nil if the attribute carries none.
// Most attributes defined by RFC 5652 are single-valued.
func (a Attribute) Value() []byte {
	if len(a.RawValues) == 0 {
		return nil
	}
	return a.RawValues[0]
}

// findAttribute returns the first value of the attribute with the given OID,
// or false when no such attribute exists.
func findAttribute(attrs []Attribute, oid asn1.ObjectIdentifier) ([]byte, bool) {
	for _, a := range attrs {
		if a.Type.Equal(oid) {
			return a.Value(), true
		}
	}
	return nil, false
}

// makeAttribute builds a wire Attribute whose single value is the ASN.1
// encoding of val.
func makeAttribute(oid asn1.ObjectIdentifier, val interface{}) (pkiasn1.Attribute, error) {
	encoded, err := asn1.Marshal(val)
	if err != nil {
		return pkiasn1.Attribute{}, wrapError(CodeMalformedEncoding,
			fmt.Sprintf("marshal attribute %s value", oid), err)
	}
	return pkiasn1.Attribute{
		Type:   oid,
		Values: asn1.RawValue{FullBytes: mustMarshalSet(encoded)},
	}, nil
}

// marshalAttributes DER-encodes a slice of Attributes as a SET OF and returns
// the bytes. The result uses the EXPLICIT SET tag (0x31), which is the form
// required for signed-attribute digest computation.
func marshalAttributes(attrs []pkiasn1.Attribute) ([]byte, error) {
	encoded, err := asn1.MarshalWithParams(pkiasn1.RawAttributes(attrs), "set")
	if err != nil {
		return nil, wrapError(CodeMalformedEncoding, "marshal attribute set", err)
	}
	return encoded, nil
}

// decodeAttributeSet parses SET-tagged (0x31) attribute bytes into decoded
// Attributes, splitting each attribute's SET OF values into individual copies.
func decodeAttributeSet(setBytes []byte) ([]Attribute, error) {
	var raw pkiasn1.RawAttributes
	if _, err := asn1.UnmarshalWithParams(setBytes, &raw, "set"); err != nil {
		return nil, wrapError(CodeMalformedEncoding, "parsing attribute set", err)
	}

	attrs := make([]Attribute, 0, len(raw))
	for _, a := range raw {
		vals, err := splitRawValues(a.Values.Bytes)
		if err != nil {
			return nil, wrapError(CodeMalformedEncoding,
				fmt.Sprintf("parsing values of attribute %s", a.Type), err)
		}
		attrs = append(attrs, Attribute{Type: a.Type, RawValues: vals})
	}
	return attrs, nil
}

// splitRawValues walks a concatenation of DER TLVs and returns a copy of each.
func splitRawValues(b []byte) ([][]byte, error) {
	var vals [][]byte
	rest := b
	for len(rest) > 0 {
		var rv asn1.RawValue
		var err error
		rest, err = asn1.Unmarshal(rest, &rv)
		if err != nil {
			return nil, err
		}
		v := make([]byte, len(rv.FullBytes))
		copy(v, rv.FullBytes)
		vals = append(vals, v)
	}
	return vals, nil
}

// retagAsImplicit0 replaces the outermost tag byte of a DER-encoded SET (0x31)
// with the IMPLICIT [0] CONSTRUCTED tag (0xA0) for wire encoding of SignedAttributes.
func retagAsImplicit0(setBytes []byte) []byte {
	return retag(setBytes, implicitTag0Byte)
}

// retagAsImplicit1 replaces the outermost SET tag (0x31) with IMPLICIT [1]
// CONSTRUCTED (0xA1) for wire encoding of UnsignedAttributes and
// UnprotectedAttributes.
func retagAsImplicit1(setBytes []byte) []byte {
	return retag(setBytes, implicitTag1Byte)
}

// retagAsSet replaces the first tag byte with the SET tag (0x31). Used to
// convert the IMPLICIT wire form of attribute sets back to a SET for parsing
// and digest computation.
func retagAsSet(implicitBytes []byte) []byte {
	return retag(implicitBytes, setTagByte)
}

func retag(b []byte, tag byte) []byte {
	if len(b) == 0 {
		return b
	}
	out := make([]byte, len(b))
	copy(out, b)
	out[0] = tag
	return out
}

// mustMarshalSet wraps a single DER-encoded value in a SET tag. It panics on
// marshal failure, which indicates a programming error (not a runtime error).
func mustMarshalSet(inner []byte) []byte {
	encoded, err := asn1.Marshal(asn1.RawValue{
		Tag:        asn1.TagSet,
		IsCompound: true,
		Bytes:      inner,
	})
	if err != nil {
		panic(fmt.Sprintf("cms: mustMarshalSet: %v", err))
	}
	return encoded
}
