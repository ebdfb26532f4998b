package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$") {
		t.Errorf("unexpected hash format %q", hash)
	}

	ok, err := VerifyPassword("s3cret", hash)
	if err != nil || !ok {
		t.Errorf("correct password rejected: %v %v", ok, err)
	}
	ok, err = VerifyPassword("wrong", hash)
	if err != nil || ok {
		t.Errorf("wrong password accepted: %v %v", ok, err)
	}

	other, _ := HashPassword("s3cret")
	if other == hash {
		t.Error("salts should differ between hashes")
	}
}

func TestVerifyInvalidHash(t *testing.T) {
	for _, h := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=0$c2FsdA$aGFzaA",
	} {
		if _, err := VerifyPassword("x", h); !errors.Is(err, ErrInvalidHash) {
			t.Errorf("%q: expected ErrInvalidHash, got %v", h, err)
		}
	}
}

func TestCredentialsCheck(t *testing.T) {
	hash, _ := HashPassword("hashed")

	tests := []struct {
		name  string
		creds Credentials
		user  string
		pass  string
		want  bool
	}{
		{"plain ok", Credentials{Username: "a", Password: "p"}, "a", "p", true},
		{"plain wrong pass", Credentials{Username: "a", Password: "p"}, "a", "x", false},
		{"wrong user", Credentials{Username: "a", Password: "p"}, "b", "p", false},
		{"hash ok", Credentials{Username: "a", PasswordHash: hash}, "a", "hashed", true},
		{"hash wins over plain", Credentials{Username: "a", Password: "p", PasswordHash: hash}, "a", "p", false},
		{"broken hash", Credentials{Username: "a", PasswordHash: "nope"}, "a", "nope", false},
		{"disabled", Credentials{}, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.creds.Check(tt.user, tt.pass); got != tt.want {
				t.Errorf("Check = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCredentialsEnabled(t *testing.T) {
	if (Credentials{Username: "a"}).Enabled() {
		t.Error("username alone must not enable auth")
	}
	if !(Credentials{Username: "a", PasswordHash: "h"}).Enabled() {
		t.Error("username + hash should enable auth")
	}
}
