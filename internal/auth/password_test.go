package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	pm := NewPasswordManager(bcrypt.MinCost, MinPasswordLength)

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "sup3rsecret", false},
		{"too short", "abc1", true},
		{"no digit", "onlyletters", true},
		{"no letter", "12345678", true},
		{"too long", strings.Repeat("a", 120) + "123456789", true},
		{"minimum length", "abcdefg1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pm.ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword(%q) = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	pm := NewPasswordManager(bcrypt.MinCost, MinPasswordLength)

	hash, err := pm.HashPassword("sup3rsecret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "sup3rsecret" {
		t.Fatal("password stored in plain text")
	}
	if !pm.VerifyPassword(hash, "sup3rsecret") {
		t.Error("correct password rejected")
	}
	if pm.VerifyPassword(hash, "wrongpass1") {
		t.Error("wrong password accepted")
	}
}
