package models

const KeyMethodAES128 = "AES-128"

// KeyRef is the EXT-X-KEY declaration attached to a segment.
type KeyRef struct {
	Method string // e.g. "AES-128", "NONE"
	URI    string // absolute key URI, empty when not declared
	IV     string // hex string, optional "0x" prefix
}

// IsAES128 reports whether the key tag can be used for decryption.
func (ref *KeyRef) IsAES128() bool {
	return ref != nil && ref.Method == KeyMethodAES128 && ref.URI != ""
}

type DecryptionKey struct {
	Key    []byte `json:"key"`    // 16 byte key for AES decryption
	IV     []byte `json:"iv"`     // initialization vector for AES decryption
	Method string `json:"method"` // e.g., "AES-128"
	URI    string `json:"uri"`    // where the key was fetched from
}
