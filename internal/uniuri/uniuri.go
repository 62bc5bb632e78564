// Package uniuri generates random strings for invite codes and other public tokens.
package uniuri

import (
	"crypto/rand"
	"errors"
	"fmt"
)

// StdLen gives ~95 bits of entropy with StdChars.
const StdLen = 16

// StdChars are the characters of a standard string.
var StdChars = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789") //nolint:gochecknoglobals

// ReadableChars omit characters that are easily confused when a code is typed by hand.
var ReadableChars = []byte("ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789") //nolint:gochecknoglobals

// ErrCharset is returned for a character set outside 2..256 characters.
var ErrCharset = errors.New("uniuri: charset must hold between 2 and 256 characters")

// maxBufLen caps one read from crypto/rand.
const maxBufLen = 2048

// New returns a random string of StdLen standard characters.
func New() (string, error) {
	return NewLenChars(StdLen, StdChars)
}

// NewLenChars returns a random string of length characters drawn uniformly from chars.
func NewLenChars(length int, chars []byte) (string, error) {
	clen := len(chars)
	if clen < 2 || clen > 256 {
		return "", ErrCharset
	}

	if length <= 0 {
		return "", nil
	}

	// bytes above limit are rejected so that every character is equally likely
	limit := 255 - (256 % clen)

	bufLen := length + length/2
	if bufLen > maxBufLen {
		bufLen = maxBufLen
	}

	buf := make([]byte, bufLen)
	out := make([]byte, 0, length)

	for {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("uniuri: reading random bytes: %w", err)
		}

		for _, b := range buf {
			if int(b) > limit {
				continue
			}

			out = append(out, chars[int(b)%clen])
			if len(out) == length {
				return string(out), nil
			}
		}
	}
}
