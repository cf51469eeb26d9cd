package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
)

// generateToken returns 32 random bytes encoded base64url, the opaque
// payload behind every QR code.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// generateOTP returns a numeric one-time code of the given length.
func generateOTP(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	var sb strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}

// normalizeOTP strips non-digit characters and truncates to the given
// length, so "12a3456789" normalizes to "123456".
func normalizeOTP(raw string, length int) string {
	if length <= 0 {
		length = 6
	}
	var sb strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
			if sb.Len() == length {
				break
			}
		}
	}
	return sb.String()
}

// generateParentCode derives a secondary guardian code from a fresh token,
// e.g. "SEC_9F2C".
func generateParentCode() (string, error) {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate parent code: %w", err)
	}
	return fmt.Sprintf("SEC_%02X%02X", buf[0], buf[1]), nil
}
