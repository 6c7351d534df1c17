package reward

import (
	"strings"
	"testing"
)

func TestGenerateRedemptionCodeShape(t *testing.T) {
	code, err := generateRedemptionCode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(code, codePrefix) {
		t.Fatalf("code %q missing prefix %q", code, codePrefix)
	}
	body := strings.TrimPrefix(code, codePrefix)
	if len(body) != codeLength {
		t.Fatalf("code body length = %d, want %d", len(body), codeLength)
	}
	for _, c := range body {
		if !strings.ContainsRune(codeAlphabet, c) {
			t.Fatalf("code %q contains %q outside alphabet", code, c)
		}
	}
}

func TestGenerateRedemptionCodeUnique(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		code, err := generateRedemptionCode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q after %d draws", code, i)
		}
		seen[code] = true
	}
}
