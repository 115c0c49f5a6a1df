// Package ber provides a BER to DER normalizer for ASN.1 encoded data.
//
// Go's encoding/asn1 package only accepts Distinguished Encoding Rules (DER),
// a strict canonical subset of Basic Encoding Rules (BER). Real-world CMS
// messages produced by Windows APIs and older implementations frequently use
// BER encoding. Normalize converts any valid BER input to its canonical DER
// equivalent.
//
// A key correctness requirement: a zero-length OCTET STRING encoded with
// indefinite length must be preserved as a present-but-empty field after
// normalization. This case arises in CMS SignedData when the content is a
// signed 0-byte payload. Implementations that drop this field incorrectly
// treat the message as a detached signature. See Normalize for details.
package ber

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ASN.1 identifier octet structure (X.690 section 8.1.2).
const (
	classMask      byte = 0xC0 // bits 7-8: tag class
	constructedBit byte = 0x20 // bit 6: constructed encoding flag
	tagNumMask     byte = 0x1F // bits 1-5: tag number within class
	tagLongForm    byte = 0x1F // all tag-number bits set: long-form tag follows
	tagMoreBit     byte = 0x80 // set in long-form tag bytes when more bytes follow

	classUniversal byte = 0x00
)

// Universal ASN.1 tag numbers (X.680 table 1).
const (
	tagBoolean         uint32 = 0x01
	tagInteger         uint32 = 0x02
	tagBitString       uint32 = 0x03
	tagOctetString     uint32 = 0x04
	tagUTF8String      uint32 = 0x0C
	tagNumericString   uint32 = 0x12
	tagPrintableString uint32 = 0x13
	tagT61String       uint32 = 0x14
	tagIA5String       uint32 = 0x16
	tagUTCTime         uint32 = 0x17
	tagGeneralizedTime uint32 = 0x18
	tagVisibleString   uint32 = 0x1A
	tagGeneralString   uint32 = 0x1B
)

// Length octet constants (X.690 sections 8.1.3 and 8.1.5).
const (
	lenIndefinite   byte = 0x80
	lenLongFormBit  byte = 0x80
	lenCountMask    byte = 0x7F
	lenShortFormMax      = 127
)

// DER BOOLEAN values (X.690 section 11.1). BER permits any non-zero byte for
// TRUE; DER requires exactly 0xFF.
const (
	derBoolFalse byte = 0x00
	derBoolTrue  byte = 0xFF
)

// signBit marks a leading 0x00 in an INTEGER as a required sign octet.
const signBit byte = 0x80

// maxDepth bounds element nesting. Legitimate CMS structures stay well under
// 32 levels; the bound keeps attacker-supplied nesting from exhausting the
// stack during decode.
const maxDepth = 64

// element is one decoded ASN.1 node. A constructed element holds its children;
// a primitive element holds its raw value bytes. The identifier is kept as the
// decomposed class, constructed flag, and tag number so flattening a
// constructed primitive only has to clear the flag.
type element struct {
	class       byte
	constructed bool
	tag         uint32
	value       []byte
	children    []*element
}

// Normalize reads one BER-encoded ASN.1 element from r and returns its
// canonical DER encoding. It handles all BER constructs that DER prohibits:
//
//   - Indefinite-length encoding (including zero-length content)
//   - Non-minimal length encodings
//   - Constructed encodings of primitive types (bit strings, octet strings, etc.)
//   - Non-canonical boolean values (any non-zero value → 0xFF)
//   - Redundant leading zero bytes in INTEGER encodings
//
// Trailing bytes after the top-level element are rejected.
//
// A zero-length value encoded with indefinite length is preserved as a
// zero-length definite-length value. This distinction is critical for CMS
// SignedData: an absent eContent field means detached signature, while a
// present zero-length eContent means a signed 0-byte payload.
func Normalize(r io.Reader) ([]byte, error) {
	input, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ber: reading input: %w", err)
	}

	el, rest, err := decode(input, 0)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("ber: %d trailing bytes after top-level element", len(rest))
	}

	if err := canonicalize(el); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	encode(&out, el)
	return out.Bytes(), nil
}

// decode parses one TLV element from the front of input and returns it along
// with the unconsumed remainder. depth counts enclosing constructed elements
// and is capped at maxDepth.
func decode(input []byte, depth int) (*element, []byte, error) {
	if depth > maxDepth {
		return nil, nil, fmt.Errorf("ber: nesting exceeds %d levels", maxDepth)
	}
	if len(input) == 0 {
		return nil, nil, errors.New("ber: unexpected end of input")
	}

	first := input[0]
	el := &element{
		class:       first & classMask,
		constructed: first&constructedBit != 0,
	}
	rest := input[1:]

	// Tag number: short form in the identifier octet, or base-128 continuation
	// bytes when all five tag bits are set.
	if first&tagNumMask != tagLongForm {
		el.tag = uint32(first & tagNumMask)
	} else {
		var n uint32
		for {
			if len(rest) == 0 {
				return nil, nil, errors.New("ber: truncated long-form tag")
			}
			if n > 1<<24 {
				return nil, nil, errors.New("ber: tag number too large")
			}
			b := rest[0]
			rest = rest[1:]
			n = n<<7 | uint32(b&^tagMoreBit)
			if b&tagMoreBit == 0 {
				break
			}
		}
		el.tag = n
	}

	if len(rest) == 0 {
		return nil, nil, errors.New("ber: truncated length field")
	}
	lenByte := rest[0]
	rest = rest[1:]

	switch {
	case lenByte == lenIndefinite:
		// Content runs until a two-zero-byte end-of-contents marker. Each
		// contained element is decoded recursively.
		if !el.constructed {
			return nil, nil, errors.New("ber: indefinite length on primitive element")
		}
		for {
			if len(rest) < 2 {
				return nil, nil, errors.New("ber: missing end-of-contents for indefinite-length element")
			}
			if rest[0] == 0 && rest[1] == 0 {
				return el, rest[2:], nil
			}
			child, r, err := decode(rest, depth+1)
			if err != nil {
				return nil, nil, err
			}
			el.children = append(el.children, child)
			rest = r
		}

	case lenByte&lenLongFormBit == 0:
		return decodeContent(el, rest, int(lenByte), depth)

	default:
		numBytes := int(lenByte & lenCountMask)
		if numBytes == 0 || numBytes > 4 {
			return nil, nil, fmt.Errorf("ber: unsupported length field: %d bytes", numBytes)
		}
		if len(rest) < numBytes {
			return nil, nil, errors.New("ber: truncated long-form length")
		}
		length := 0
		for _, b := range rest[:numBytes] {
			length = length<<8 | int(b)
		}
		if length < 0 {
			return nil, nil, errors.New("ber: length overflows")
		}
		return decodeContent(el, rest[numBytes:], length, depth)
	}
}

// decodeContent consumes length content bytes for el: children for a
// constructed element, raw value bytes for a primitive one.
func decodeContent(el *element, rest []byte, length int, depth int) (*element, []byte, error) {
	if length > len(rest) {
		return nil, nil, fmt.Errorf("ber: element length %d exceeds available input", length)
	}
	content := rest[:length]
	rest = rest[length:]

	if !el.constructed {
		el.value = content
		return el, rest, nil
	}

	for len(content) > 0 {
		child, r, err := decode(content, depth+1)
		if err != nil {
			return nil, nil, err
		}
		el.children = append(el.children, child)
		content = r
	}
	return el, rest, nil
}

// canonicalize rewrites el in place into DER form: children first, then
// constructed primitives are flattened and primitive values canonicalized.
func canonicalize(el *element) error {
	for _, child := range el.children {
		if err := canonicalize(child); err != nil {
			return err
		}
	}

	if el.constructed {
		if el.class == classUniversal && primitiveInDER(el.tag) {
			return flatten(el)
		}
		return nil
	}

	if el.class != classUniversal {
		return nil
	}
	switch el.tag {
	case tagBoolean:
		if len(el.value) != 1 {
			return fmt.Errorf("ber: BOOLEAN value must be 1 byte, got %d", len(el.value))
		}
		if el.value[0] != derBoolFalse {
			el.value = []byte{derBoolTrue}
		}
	case tagInteger:
		if len(el.value) == 0 {
			return errors.New("ber: INTEGER value is empty")
		}
		// Strip redundant leading zero bytes, keeping a 0x00 that serves as
		// the sign octet for a value whose next byte has the high bit set.
		v := el.value
		for len(v) > 1 && v[0] == 0 && v[1]&signBit == 0 {
			v = v[1:]
		}
		el.value = v
	}
	return nil
}

// primitiveInDER reports whether a universal tag must use primitive encoding
// in DER. OCTET STRING, BIT STRING, all string types, and time types may be
// constructed in BER but not in DER.
func primitiveInDER(tag uint32) bool {
	switch tag {
	case tagBitString,
		tagOctetString,
		tagUTF8String,
		tagNumericString,
		tagPrintableString,
		tagT61String,
		tagIA5String,
		tagUTCTime,
		tagGeneralizedTime,
		tagVisibleString,
		tagGeneralString:
		return true
	}
	return false
}

// flatten converts a constructed primitive element (e.g. a chunked OCTET
// STRING) into primitive form by concatenating the chunk values. Children
// have already been canonicalized, so each chunk is primitive.
func flatten(el *element) error {
	if el.tag == tagBitString {
		return flattenBitString(el)
	}

	var flat bytes.Buffer
	for _, chunk := range el.children {
		if chunk.constructed {
			return errors.New("ber: constructed chunk inside constructed primitive")
		}
		flat.Write(chunk.value)
	}
	el.constructed = false
	el.children = nil
	el.value = flat.Bytes()
	return nil
}

// flattenBitString flattens a chunked BIT STRING per X.690 section 8.6. Each
// chunk begins with an unused-bits octet; only the final chunk may have a
// non-zero one. The result is the last chunk's unused-bits octet followed by
// the data bytes of all chunks.
func flattenBitString(el *element) error {
	var data bytes.Buffer
	var lastUnused byte
	for i, chunk := range el.children {
		if chunk.constructed {
			return errors.New("ber: constructed chunk inside constructed BIT STRING")
		}
		if len(chunk.value) == 0 {
			return errors.New("ber: BIT STRING chunk missing unused-bits byte")
		}
		unused := chunk.value[0]
		if unused != 0 && i != len(el.children)-1 {
			return errors.New("ber: non-final BIT STRING chunk has non-zero unused bits")
		}
		lastUnused = unused
		data.Write(chunk.value[1:])
	}
	result := make([]byte, 1+data.Len())
	result[0] = lastUnused
	copy(result[1:], data.Bytes())

	el.constructed = false
	el.children = nil
	el.value = result
	return nil
}

// encode writes the DER encoding of el to out.
func encode(out *bytes.Buffer, el *element) {
	writeIdentifier(out, el)

	if !el.constructed {
		writeLength(out, len(el.value))
		out.Write(el.value)
		return
	}

	var inner bytes.Buffer
	for _, child := range el.children {
		encode(&inner, child)
	}
	writeLength(out, inner.Len())
	out.Write(inner.Bytes())
}

// writeIdentifier writes the identifier octets for el, using a long-form tag
// when the tag number does not fit the identifier octet.
func writeIdentifier(out *bytes.Buffer, el *element) {
	first := el.class
	if el.constructed {
		first |= constructedBit
	}
	if el.tag < uint32(tagLongForm) {
		out.WriteByte(first | byte(el.tag))
		return
	}

	out.WriteByte(first | tagLongForm)
	// Base-128, big-endian, continuation bit on all but the last byte.
	var stack [5]byte
	n := 0
	for t := el.tag; ; t >>= 7 {
		stack[n] = byte(t & 0x7F)
		n++
		if t < 1<<7 {
			break
		}
	}
	for i := n - 1; i > 0; i-- {
		out.WriteByte(stack[i] | tagMoreBit)
	}
	out.WriteByte(stack[0])
}

// writeLength writes a minimal definite-length encoding for length to out.
func writeLength(out *bytes.Buffer, length int) {
	if length <= lenShortFormMax {
		out.WriteByte(byte(length))
		return
	}
	var stack [4]byte
	n := 0
	for l := length; l > 0; l >>= 8 {
		stack[n] = byte(l)
		n++
	}
	out.WriteByte(lenLongFormBit | byte(n))
	for i := n - 1; i >= 0; i-- {
		out.WriteByte(stack[i])
	}
}
