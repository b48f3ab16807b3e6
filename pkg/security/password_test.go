package security_test

import (
	"testing"

	"github.com/dvillegas/storefront-backend/pkg/config"
	"github.com/dvillegas/storefront-backend/pkg/security"
)

func testArgonConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := security.HashPassword("very-secure-password", testArgonConfig())
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "" {
		t.Fatal("HashPassword produced an empty hash")
	}

	checks := []struct {
		password string
		want     bool
	}{
		{"very-secure-password", true},
		{"bogus-password", false},
		{"", false},
	}
	for _, check := range checks {
		ok, err := security.VerifyPassword(check.password, hash)
		if err != nil {
			t.Fatalf("VerifyPassword(%q): %v", check.password, err)
		}
		if ok != check.want {
			t.Fatalf("VerifyPassword(%q) = %t, want %t", check.password, ok, check.want)
		}
	}
}

func TestHashesAreSalted(t *testing.T) {
	cfg := testArgonConfig()
	first, err := security.HashPassword("same-password", cfg)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	second, err := security.HashPassword("same-password", cfg)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	for _, bad := range []string{
		"not-a-hash",
		"$argon2id$v=19$m=1,t=1,p=1",
		"$md5$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
	} {
		if _, err := security.VerifyPassword("irrelevant", bad); err == nil {
			t.Fatalf("expected error for malformed hash %q", bad)
		}
	}
}
