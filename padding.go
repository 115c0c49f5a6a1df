package cms

// pkcs7Pad pads data to a multiple of blockSize by appending n bytes of value
// n, where n is the pad length (1..blockSize). Input that is already aligned
// gains a full block of padding so the transform is always reversible.
func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+pad)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	return padded
}

// pkcs7Unpad validates and removes PKCS #7 padding. Every failure mode returns
// the same ErrBadPadding without reporting which byte differed, so the error
// cannot be used as a padding oracle.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, newError(CodeBadPadding, "invalid PKCS #7 padding")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize || pad > len(data) {
		return nil, newError(CodeBadPadding, "invalid PKCS #7 padding")
	}
	// Accumulate mismatches instead of returning early so all pad bytes are
	// always inspected.
	var bad byte
	for _, b := range data[len(data)-pad:] {
		bad |= b ^ byte(pad)
	}
	if bad != 0 {
		return nil, newError(CodeBadPadding, "invalid PKCS #7 padding")
	}
	return data[:len(data)-pad], nil
}
