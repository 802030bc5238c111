package it600

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5" //nolint:gosec // key derivation is fixed by the gateway firmware
	"fmt"
	"strings"
)

// gatewayIV is the static initialisation vector baked into the gateway firmware.
var gatewayIV = []byte{
	0x88, 0xa6, 0xb0, 0x79, 0x5d, 0x85, 0xdb, 0xfc,
	0xe6, 0xe0, 0xb3, 0xe9, 0xa6, 0x29, 0x65, 0x4b,
}

// keyPrefix is prepended to the lowercased EUID before hashing.
const keyPrefix = "Salus-"

// DeriveKey returns the 32-byte AES key for a gateway EUID:
// MD5("Salus-" + lower(euid)) followed by 16 zero bytes.
func DeriveKey(euid string) []byte {
	sum := md5.Sum([]byte(keyPrefix + strings.ToLower(euid))) //nolint:gosec
	key := make([]byte, 32)
	copy(key, sum[:])
	return key
}

// Cipher encrypts and decrypts gateway payloads.
// It is immutable after construction and safe for concurrent use.
type Cipher struct {
	block cipher.Block
}

// NewCipher derives the key for euid and prepares the block cipher.
func NewCipher(euid string) (*Cipher, error) {
	block, err := aes.NewCipher(DeriveKey(euid))
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	return &Cipher{block: block}, nil
}

// Encrypt pads plain with PKCS#7 and encrypts it in CBC mode.
func (c *Cipher) Encrypt(plain []byte) []byte {
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, gatewayIV).CryptBlocks(out, padded)
	return out
}

// Decrypt reverses Encrypt. It returns ErrDecrypt for ciphertexts with a
// bad length or invalid padding.
func (c *Cipher) Decrypt(cipherText []byte) ([]byte, error) {
	if len(cipherText) == 0 || len(cipherText)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of %d",
			ErrDecrypt, len(cipherText), aes.BlockSize)
	}

	out := make([]byte, len(cipherText))
	cipher.NewCBCDecrypter(c.block, gatewayIV).CryptBlocks(out, cipherText)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrDecrypt)
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: invalid padding length %d", ErrDecrypt, n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: invalid padding byte", ErrDecrypt)
		}
	}
	return data[:len(data)-n], nil
}
