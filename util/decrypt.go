package util

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// decrypts a segment with AES-128-CBC when both key and iv
// are present, otherwise the data is returned unchanged
func Decrypt(data []byte, key []byte, iv []byte) ([]byte, error) {
	if key == nil || iv == nil {
		return data, nil
	}
	decrypted, err := DecryptSegmentBytes(data, key, iv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	return decrypted, nil
}

// decrypts a byte slice representing a single segment
func DecryptSegmentBytes(encryptedData []byte, key []byte, iv []byte) ([]byte, error) {
	if !IsValidAESKey(key) {
		return nil, fmt.Errorf("invalid key: expected 16 bytes, got %d", len(key))
	}
	if !IsValidIV(iv) {
		return nil, fmt.Errorf("invalid IV: expected 16 bytes, got %d", len(iv))
	}
	if len(encryptedData) == 0 {
		return nil, errors.New("no data to decrypt")
	}
	if len(encryptedData)%aes.BlockSize != 0 {
		return nil, errors.New("encrypted data length is not a multiple of block size")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	mode := cipher.NewCBCDecrypter(block, iv)
	decryptedData := make([]byte, len(encryptedData))
	mode.CryptBlocks(decryptedData, encryptedData)
	unpaddedData, err := removePKCS7Padding(decryptedData)
	if err != nil {
		return nil, fmt.Errorf("failed to remove padding: %w", err)
	}

	return unpaddedData, nil
}

// removes PKCS#7 padding from decrypted data
func removePKCS7Padding(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("data is empty")
	}
	paddingLength := int(data[len(data)-1])
	if paddingLength == 0 || paddingLength > aes.BlockSize {
		return nil, fmt.Errorf("invalid padding length: %d", paddingLength)
	}
	if paddingLength > len(data) {
		return nil, fmt.Errorf("padding length (%d) exceeds data length (%d)", paddingLength, len(data))
	}
	for i := len(data) - paddingLength; i < len(data); i++ {
		if data[i] != byte(paddingLength) {
			return nil, fmt.Errorf("invalid padding at position %d", i)
		}
	}
	return data[:len(data)-paddingLength], nil
}

// parses the IV attribute of an EXT-X-KEY tag. the hex
// string may carry a "0x" prefix; an empty string yields
// the all-zero IV
func ParseIV(hexIV string) ([]byte, error) {
	if hexIV == "" {
		return GenerateZeroIV(), nil
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(hexIV, "0x"), "0X")
	iv, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidIV, hexIV, err)
	}
	if !IsValidIV(iv) {
		return nil, fmt.Errorf("%w: expected 16 bytes, got %d", ErrInvalidIV, len(iv))
	}
	return iv, nil
}

func IsValidAESKey(key []byte) bool {
	return len(key) == 16
}

func IsValidIV(iv []byte) bool {
	return len(iv) == 16
}

func GenerateZeroIV() []byte {
	return make([]byte, 16)
}
