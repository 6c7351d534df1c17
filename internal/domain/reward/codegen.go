package reward

import (
	"crypto/rand"
	"fmt"
)

const (
	codePrefix = "RDM-"
	codeLength = 10

	// No 0/O/1/I to keep codes readable over the counter.
	codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
)

func generateRedemptionCode() (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return codePrefix + string(b), nil
}
