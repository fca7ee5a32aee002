package batch

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RecipientEntry is one accepted "<address> <amount>" line.
type RecipientEntry struct {
	Address   common.Address `json:"address"`
	RawAmount string         `json:"amount"`
}

// ParsedBatch is the validated form of the recipient text for one decimal scale.
// ScaledAmounts[i] belongs to Entries[i]; both are passed positionally to the
// disperse contract.
type ParsedBatch struct {
	Entries       []RecipientEntry
	ScaledAmounts []*big.Int
	Total         *big.Int
	Decimals      uint8

	// 1-based line numbers of non-blank lines that were dropped.
	Rejected []int
}

// Empty returns a batch with no entries and a zero total.
func Empty(decimals uint8) ParsedBatch {
	return ParsedBatch{
		Entries:       []RecipientEntry{},
		ScaledAmounts: []*big.Int{},
		Total:         new(big.Int),
		Decimals:      decimals,
		Rejected:      []int{},
	}
}

func (b ParsedBatch) Len() int { return len(b.Entries) }

func (b ParsedBatch) IsEmpty() bool { return len(b.Entries) == 0 }

// Recipients returns the addresses in submission order.
func (b ParsedBatch) Recipients() []common.Address {
	out := make([]common.Address, len(b.Entries))
	for i, e := range b.Entries {
		out[i] = e.Address
	}
	return out
}

// Amounts returns copies of the scaled amounts in submission order.
func (b ParsedBatch) Amounts() []*big.Int {
	out := make([]*big.Int, len(b.ScaledAmounts))
	for i, a := range b.ScaledAmounts {
		out[i] = new(big.Int).Set(a)
	}
	return out
}

// TotalOrZero never returns nil.
func (b ParsedBatch) TotalOrZero() *big.Int {
	if b.Total == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.Total)
}

// Clone returns a deep copy; big.Int values are not shared with the receiver.
func (b ParsedBatch) Clone() ParsedBatch {
	out := ParsedBatch{
		Entries:       append([]RecipientEntry(nil), b.Entries...),
		ScaledAmounts: b.Amounts(),
		Total:         b.TotalOrZero(),
		Decimals:      b.Decimals,
		Rejected:      append([]int(nil), b.Rejected...),
	}
	if out.Entries == nil {
		out.Entries = []RecipientEntry{}
	}
	if out.Rejected == nil {
		out.Rejected = []int{}
	}
	return out
}

// Equal reports structural equality (entries, amounts, total, scale).
func (b ParsedBatch) Equal(o ParsedBatch) bool {
	if b.Decimals != o.Decimals || len(b.Entries) != len(o.Entries) || len(b.ScaledAmounts) != len(o.ScaledAmounts) {
		return false
	}
	for i := range b.Entries {
		if b.Entries[i] != o.Entries[i] {
			return false
		}
		if b.ScaledAmounts[i].Cmp(o.ScaledAmounts[i]) != 0 {
			return false
		}
	}
	return b.TotalOrZero().Cmp(o.TotalOrZero()) == 0
}
