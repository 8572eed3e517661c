package uniuri

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math"
)

const (
	// StateLen is the length of OAuth2 state values, ~119 bits of entropy.
	StateLen = 20
	// TokenLen is the length of session tokens, ~190 bits of entropy.
	TokenLen = 32
)

// Chars is the URL-safe alphabet used for all generated strings.
var Chars = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")

// ErrCharset is returned for alphabets shorter than 2 or longer than 256 characters.
var ErrCharset = errors.New("uniuri: charset length must be between 2 and 256")

const (
	maxBufLen      = 2048
	minRegenBufLen = 16
	maxByteValue   = 255
	byteRange      = 256
)

// Token returns a new session token.
func Token() (string, error) {
	return NewLenChars(TokenLen, Chars)
}

// State returns a new OAuth2 state value.
func State() (string, error) {
	return NewLenChars(StateLen, Chars)
}

// NewLenChars returns a random string of the given length drawn from chars.
// Bytes that would introduce modulo bias are rejected and redrawn.
func NewLenChars(length int, chars []byte) (string, error) {
	if length <= 0 {
		return "", nil
	}

	clen := len(chars)
	if clen < 2 || clen > byteRange {
		return "", ErrCharset
	}

	maxRb := maxByteValue - (byteRange % clen)
	bufLen := min(max(estimatedBufLen(length, maxRb), length), maxBufLen)

	buf := make([]byte, bufLen)
	out := make([]byte, length)
	i := 0

	for {
		if _, err := rand.Read(buf[:bufLen]); err != nil {
			return "", fmt.Errorf("uniuri: read random bytes: %w", err)
		}

		for _, rb := range buf[:bufLen] {
			c := int(rb)
			if c > maxRb {
				continue
			}

			out[i] = chars[c%clen]
			i++

			if i == length {
				return string(out), nil
			}
		}

		bufLen = min(max(estimatedBufLen(length-i, maxRb), minRegenBufLen), cap(buf))
	}
}

// estimatedBufLen returns how many random bytes are likely needed when values above maxByte are rejected.
func estimatedBufLen(need, maxByte int) int {
	return int(math.Ceil(float64(need) * (maxByteValue / float64(maxByte))))
}
