package identity

import (
	"bytes"
	"testing"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"  alice  ", "alice"},
		{"@alice", "alice"},
		{" @alice ", "alice"},
		{"Alice", "alice"},
		{"@ClankerMind", "clankermind"},
		{"0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984", "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984"},
		{"", ""},
		{"@", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalize_PreservesChainKeyCase(t *testing.T) {
	// Base58 is case-sensitive; lowercasing would name a different key.
	key := base58.Encode(edwards25519.NewGeneratorPoint().Bytes())
	if got := Normalize(key); got != key {
		t.Errorf("Normalize(%q) = %q, chain key spelling must survive", key, got)
	}
}

func TestDetect_EVMAddress(t *testing.T) {
	if got := Detect("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"); got != KindEVMAddress {
		t.Errorf("expected EVM_ADDRESS, got %s", got)
	}
	// Wrong length or missing prefix falls through to username.
	if got := Detect("0x1f9840"); got != KindUsername {
		t.Errorf("short hex detected as %s, want USERNAME", got)
	}
	if got := Detect("1f9840a85d5aF5bf1D1762F925BDADdC4201F984"); got != KindUsername {
		t.Errorf("unprefixed hex detected as %s, want USERNAME", got)
	}
}

func TestDetect_ChainWallet(t *testing.T) {
	// The ed25519 base point is on-curve by definition.
	key := base58.Encode(edwards25519.NewGeneratorPoint().Bytes())

	if got := Detect(key); got != KindChainWallet {
		t.Errorf("expected CHAIN_WALLET for on-curve key, got %s", got)
	}
}

func TestDetect_ChainProgram(t *testing.T) {
	// All-ones encodes a y coordinate above the field prime, which no curve
	// point has; it decodes to 32 bytes but fails the on-curve check.
	offCurve := bytes.Repeat([]byte{0xff}, 32)
	if isOnCurve(offCurve) {
		t.Fatal("test fixture unexpectedly on curve")
	}

	if got := Detect(base58.Encode(offCurve)); got != KindChainProgram {
		t.Errorf("expected CHAIN_PROGRAM for off-curve key, got %s", got)
	}
}

func TestDetect_Username(t *testing.T) {
	for _, id := range []string{"alice_bot", "shortb58", "agent.name"} {
		if got := Detect(id); got != KindUsername {
			t.Errorf("Detect(%q) = %s, want USERNAME", id, got)
		}
	}
}

func TestKindIsMarket(t *testing.T) {
	if KindUsername.IsMarket() {
		t.Error("USERNAME should not route to market sources")
	}
	for _, k := range []Kind{KindEVMAddress, KindChainWallet, KindChainProgram} {
		if !k.IsMarket() {
			t.Errorf("%s should route to market sources", k)
		}
	}
}
