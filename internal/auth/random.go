package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

var otpSpan = big.NewInt(900000)

// randomOTPCode draws a uniform code in [100000, 999999].
func randomOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
