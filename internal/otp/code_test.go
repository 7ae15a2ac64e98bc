package otp

import (
	"strings"
	"testing"
)

func TestGenerateCode_Length(t *testing.T) {
	for _, n := range []int{4, 6, 10} {
		code, err := GenerateCode(n)
		if err != nil {
			t.Fatalf("GenerateCode(%d): %v", n, err)
		}
		if len(code) != n {
			t.Errorf("code length = %d, want %d", len(code), n)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Errorf("code contains non-digit: %c", c)
			}
		}
	}
}

func TestGenerateCode_InvalidLength(t *testing.T) {
	if _, err := GenerateCode(0); err != ErrCodeLength {
		t.Errorf("GenerateCode(0): want ErrCodeLength, got %v", err)
	}
}

func TestGenerateCode_Randomness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := GenerateCode(10)
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		if seen[code] {
			t.Errorf("duplicate code generated: %s", code)
		}
		seen[code] = true
	}
}

func TestHashCode_Salted(t *testing.T) {
	h1, err := HashCode("123456")
	if err != nil {
		t.Fatalf("HashCode: %v", err)
	}
	h2, err := HashCode("123456")
	if err != nil {
		t.Fatalf("HashCode: %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same code should differ")
	}
	if strings.Contains(h1, "123456") {
		t.Error("hash contains the plaintext code")
	}
}

func TestCodeEqual(t *testing.T) {
	stored, err := HashCode("123456")
	if err != nil {
		t.Fatalf("HashCode: %v", err)
	}
	if !CodeEqual("123456", stored) {
		t.Error("CodeEqual should match the stored hash")
	}
	if CodeEqual("123457", stored) {
		t.Error("CodeEqual should reject a different code")
	}
	if CodeEqual("", stored) {
		t.Error("CodeEqual should reject an empty code")
	}
	if CodeEqual("123456", "not-a-hash") {
		t.Error("CodeEqual should reject a malformed hash")
	}
}
