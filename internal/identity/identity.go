// Package identity normalizes raw identifiers and classifies what kind of
// identity they name: a social platform username, an EVM contract address,
// or an ed25519-chain public key.
package identity

import (
	"regexp"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Kind is the detected identifier class.
type Kind string

const (
	// KindUsername is a social platform account name.
	KindUsername Kind = "USERNAME"
	// KindEVMAddress is a 20-byte hex contract or wallet address.
	KindEVMAddress Kind = "EVM_ADDRESS"
	// KindChainWallet is a 32-byte base58 key that lies on the ed25519 curve.
	KindChainWallet Kind = "CHAIN_WALLET"
	// KindChainProgram is a 32-byte base58 key off the curve (program derived).
	KindChainProgram Kind = "CHAIN_PROGRAM"
)

// IsMarket reports whether the kind resolves through market-data sources
// rather than the social platform.
func (k Kind) IsMarket() bool {
	return k == KindEVMAddress || k == KindChainWallet || k == KindChainProgram
}

var evmAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Normalize trims surrounding whitespace and a leading @ and lowercases
// case-insensitive identifier kinds so that the same identity always maps to
// the same cache and store key. Base58 chain keys are case-sensitive and
// keep their spelling.
func Normalize(raw string) string {
	id := strings.TrimSpace(raw)
	id = strings.TrimPrefix(id, "@")
	switch Detect(id) {
	case KindUsername, KindEVMAddress:
		return strings.ToLower(id)
	}
	return id
}

// Detect classifies a normalized identifier.
func Detect(id string) Kind {
	if evmAddressRe.MatchString(id) {
		return KindEVMAddress
	}
	if decoded, err := base58.Decode(id); err == nil && len(decoded) == 32 {
		if isOnCurve(decoded) {
			return KindChainWallet
		}
		return KindChainProgram
	}
	return KindUsername
}

// isOnCurve checks whether a 32-byte value is a valid ed25519 curve point.
// Wallet keys are on-curve; program derived addresses are not.
func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
