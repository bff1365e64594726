package domain

import (
	"encoding/json"
	"fmt"
)

type AssetKind string

const (
	// AssetPrimary is the governance/share asset.
	AssetPrimary AssetKind = "primary"
	// AssetSecondary is the fee/utility asset.
	AssetSecondary AssetKind = "secondary"
)

func (a AssetKind) String() string {
	return string(a)
}

// Identity is a ledger-addressable destination in the chain's native
// addressing form, derived from an address by the wallet.
type Identity string

type TransferOutput struct {
	Asset  AssetKind `json:"asset"`
	Amount Fixed8    `json:"value"`
	To     Identity  `json:"address"`
}

// Transaction is a two-output contract transfer. The wallet assigns the ID
// when funding it and the signing step attaches the witness scripts.
type Transaction struct {
	ID      string           `json:"txid"`
	Outputs []TransferOutput `json:"vout"`
	Scripts [][]byte         `json:"scripts"`
	// Raw is the serialized wire form produced by the signing step, what
	// actually gets relayed. Not part of the user-facing JSON.
	Raw []byte `json:"-"`
}

func (t *Transaction) Signed() bool {
	return len(t.Scripts) > 0
}

func (t *Transaction) JSON() (string, error) {
	buf, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal transaction %s: %w", t.ID, err)
	}
	return string(buf), nil
}
