package user

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// solanaWallets are wallet types whose addresses are ed25519 public keys.
var solanaWallets = map[string]bool{
	"phantom":  true,
	"solflare": true,
	"backpack": true,
}

// ValidateWalletAddress checks address against the format implied by
// walletType. Unknown wallet types are accepted as-is.
func ValidateWalletAddress(address, walletType string) error {
	if !solanaWallets[strings.ToLower(walletType)] {
		return nil
	}
	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("invalid %s wallet address: %w", walletType, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("invalid %s wallet address: expected 32 bytes, got %d", walletType, len(raw))
	}
	return nil
}
