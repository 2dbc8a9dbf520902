// Package ss58 validates Substrate SS58 account addresses.
package ss58

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// GenericPrefix is the generic Substrate address format used by Bittensor.
const GenericPrefix = 42

const (
	publicKeyLen = 32
	checksumLen  = 2
	alphabet     = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
)

// maxEncodedLen bounds the input before decoding; 35 raw bytes encode to at most 48 characters.
const maxEncodedLen = 50

var (
	ErrInvalidCharacter = errors.New("ss58: invalid base58 character")
	ErrInvalidLength    = errors.New("ss58: invalid address length")
	ErrInvalidChecksum  = errors.New("ss58: checksum mismatch")
	ErrWrongPrefix      = errors.New("ss58: unexpected network prefix")
)

var (
	checksumPrefix = []byte("SS58PRE")
	decodeMap      [256]int16
)

func init() {
	for i := range decodeMap {
		decodeMap[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		decodeMap[alphabet[i]] = int16(i)
	}
}

// Valid reports whether addr is a well-formed address in the generic Substrate format.
func Valid(addr string) bool {
	prefix, _, err := Decode(addr)
	return err == nil && prefix == GenericPrefix
}

// Decode returns the network prefix and public key of a single-byte-prefix address.
func Decode(addr string) (prefix byte, publicKey []byte, err error) {
	if len(addr) > maxEncodedLen {
		return 0, nil, ErrInvalidLength
	}
	raw, err := decodeBase58(addr)
	if err != nil {
		return 0, nil, err
	}
	if len(raw) != 1+publicKeyLen+checksumLen {
		return 0, nil, ErrInvalidLength
	}
	if raw[0] > 63 {
		return 0, nil, fmt.Errorf("%w: %d", ErrWrongPrefix, raw[0])
	}

	body := raw[:1+publicKeyLen]
	if !bytes.Equal(checksum(body), raw[1+publicKeyLen:]) {
		return 0, nil, ErrInvalidChecksum
	}

	return raw[0], bytes.Clone(raw[1 : 1+publicKeyLen]), nil
}

// Encode builds an address from a prefix below 64 and a 32-byte public key.
func Encode(prefix byte, publicKey []byte) (string, error) {
	if prefix > 63 {
		return "", fmt.Errorf("%w: %d", ErrWrongPrefix, prefix)
	}
	if len(publicKey) != publicKeyLen {
		return "", ErrInvalidLength
	}

	body := append([]byte{prefix}, publicKey...)
	return encodeBase58(append(body, checksum(body)...)), nil
}

func checksum(body []byte) []byte {
	h := blake2b.Sum512(append(bytes.Clone(checksumPrefix), body...))
	return h[:checksumLen]
}

func decodeBase58(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrInvalidLength
	}

	zeros := 0
	for zeros < len(s) && s[zeros] == alphabet[0] {
		zeros++
	}

	// base-256 digits, little endian
	var num []byte
	for i := 0; i < len(s); i++ {
		d := decodeMap[s[i]]
		if d < 0 {
			return nil, ErrInvalidCharacter
		}
		carry := int(d)
		for j := range num {
			carry += int(num[j]) * 58
			num[j] = byte(carry)
			carry >>= 8
		}
		for carry > 0 {
			num = append(num, byte(carry))
			carry >>= 8
		}
	}

	out := make([]byte, zeros, zeros+len(num))
	for i := len(num) - 1; i >= 0; i-- {
		out = append(out, num[i])
	}
	return out, nil
}

func encodeBase58(b []byte) string {
	zeros := 0
	for zeros < len(b) && b[zeros] == 0 {
		zeros++
	}

	// base-58 digits, little endian
	var digits []byte
	for _, v := range b[zeros:] {
		carry := int(v)
		for j := range digits {
			carry += int(digits[j]) << 8
			digits[j] = byte(carry % 58)
			carry /= 58
		}
		for carry > 0 {
			digits = append(digits, byte(carry%58))
			carry /= 58
		}
	}

	out := make([]byte, 0, zeros+len(digits))
	for range zeros {
		out = append(out, alphabet[0])
	}
	for i := len(digits) - 1; i >= 0; i-- {
		out = append(out, alphabet[digits[i]])
	}
	return string(out)
}
