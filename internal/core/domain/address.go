package domain

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// addressPrefixes are the prefixes accepted by the permissive heuristic,
// covering mainnet and testnet base58 and bech32 encodings.
var addressPrefixes = []string{"bc1", "tb1", "1", "3", "m", "n", "2"}

// AddressPolicy decides whether a Bitcoin address is acceptable as payout
// source or recipient destination.
type AddressPolicy struct {
	Strict  bool
	Network string
}

func (p AddressPolicy) Valid(address string) bool {
	if p.Strict {
		return ValidateAddressStrict(address, p.Network)
	}
	return ValidateAddress(address)
}

// ValidateAddress applies the permissive length and prefix heuristic.
// It performs no checksum or network verification, so addresses with a
// plausible shape but an invalid checksum are accepted. Known weak point,
// kept for compatibility with records created under the same rule.
func ValidateAddress(address string) bool {
	if len(address) < 26 || len(address) > 42 {
		return false
	}
	for _, prefix := range addressPrefixes {
		if strings.HasPrefix(address, prefix) {
			return true
		}
	}
	return false
}

// ValidateAddressStrict decodes the address and verifies it belongs to the
// given network. It is stricter than ValidateAddress and may reject
// addresses that the heuristic accepted.
func ValidateAddressStrict(address, network string) bool {
	params := networkParams(network)
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return false
	}
	return addr.IsForNet(params)
}

func networkParams(network string) *chaincfg.Params {
	switch network {
	case "testnet":
		return &chaincfg.TestNet3Params
	case "regtest":
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}
