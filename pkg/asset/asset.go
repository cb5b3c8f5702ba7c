package asset

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Info identifies a tradable asset: either a native coin (Denom set) or a
// token contract (Contract set). Exactly one of the two is populated.
type Info struct {
	Denom    string         `json:"denom,omitempty"`
	Contract common.Address `json:"contract,omitempty"`
}

// NativeInfo returns the Info for a native coin denom.
func NativeInfo(denom string) Info {
	return Info{Denom: denom}
}

// TokenInfo returns the Info for a token contract.
func TokenInfo(contract common.Address) Info {
	return Info{Contract: contract}
}

func (i Info) IsNative() bool { return i.Denom != "" }

// Key returns the canonical byte representation used inside storage keys.
// Native assets use their denom bytes, tokens their 20-byte address.
func (i Info) Key() []byte {
	if i.IsNative() {
		return []byte(i.Denom)
	}
	return i.Contract.Bytes()
}

func (i Info) Equal(o Info) bool {
	return i.Denom == o.Denom && i.Contract == o.Contract
}

func (i Info) String() string {
	if i.IsNative() {
		return i.Denom
	}
	return i.Contract.Hex()
}

// Validate rejects assets that cannot be embedded in storage keys. NUL is
// the pair-key separator and ':' the key segment separator, so neither may
// appear in a denom.
func (i Info) Validate() error {
	if i.IsNative() {
		if (i.Contract != common.Address{}) {
			return fmt.Errorf("asset has both denom %q and contract %s", i.Denom, i.Contract.Hex())
		}
		if bytes.ContainsAny([]byte(i.Denom), "\x00:") {
			return fmt.Errorf("denom %q contains a reserved byte", i.Denom)
		}
		return nil
	}
	if (i.Contract == common.Address{}) {
		return fmt.Errorf("asset has neither denom nor contract")
	}
	return nil
}

// Asset couples an asset identity with an integer amount. Amounts are carried
// as decimals so fill arithmetic shares one representation with prices, but
// they are always whole numbers of the asset's smallest unit.
type Asset struct {
	Info   Info            `json:"info"`
	Amount decimal.Decimal `json:"amount"`
}

func NewAsset(info Info, amount decimal.Decimal) Asset {
	return Asset{Info: info, Amount: amount}
}

func (a Asset) String() string {
	return fmt.Sprintf("%s %s", a.Amount.String(), a.Info.String())
}

// PairKey builds the canonical key for a trading pair: the two asset keys
// sorted smallest-first so (A,B) and (B,A) resolve to the same book. A NUL
// byte separates the halves; Info.Validate keeps NUL out of asset keys.
func PairKey(a, b Info) []byte {
	ka, kb := a.Key(), b.Key()
	if bytes.Compare(ka, kb) > 0 {
		ka, kb = kb, ka
	}
	key := make([]byte, 0, len(ka)+1+len(kb))
	key = append(key, ka...)
	key = append(key, 0)
	return append(key, kb...)
}
