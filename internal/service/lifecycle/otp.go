package lifecycle

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

const otpDigits = 6

var otpSpace = big.NewInt(1_000_000)

// GenerateOTP returns a uniformly random zero-padded 6-digit code
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func otpMatches(stored, supplied string) bool {
	return len(stored) == otpDigits &&
		subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}
