package user

import (
	"strings"
	"testing"

	"github.com/mr-tron/base58"
)

func TestValidateWalletAddress(t *testing.T) {
	valid := base58.Encode(make([]byte, 32))
	short := base58.Encode([]byte{1, 2, 3})

	tests := []struct {
		name       string
		address    string
		walletType string
		ok         bool
	}{
		{"phantom-valid", valid, "phantom", true},
		{"solflare-case-insensitive", valid, "Solflare", true},
		{"phantom-short", short, "phantom", false},
		{"phantom-not-base58", "0OIl" + strings.Repeat("x", 40), "phantom", false},
		{"unknown-type", "0xabc", "metamask", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWalletAddress(tt.address, tt.walletType)
			if tt.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
