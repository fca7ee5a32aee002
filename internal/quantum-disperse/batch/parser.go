package batch

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// plain non-negative decimal: "1", "1.5", ".5", "1."
var amountPattern = regexp.MustCompile(`^([0-9]+\.?[0-9]*|\.[0-9]+)$`)

// Parse turns recipient text into a batch scaled by decimals.
// Lines that are not exactly "<address><sep><amount>" are dropped; the
// separator is any run of ',', '=', space or tab.
func Parse(text string, decimals uint8) ParsedBatch {
	out := Empty(decimals)

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		entry, scaled, ok := parseLine(line, decimals)
		if !ok {
			out.Rejected = append(out.Rejected, i+1)
			continue
		}

		out.Entries = append(out.Entries, entry)
		out.ScaledAmounts = append(out.ScaledAmounts, scaled)
		out.Total.Add(out.Total, scaled)
	}

	return out
}

func parseLine(line string, decimals uint8) (RecipientEntry, *big.Int, bool) {
	fields := strings.FieldsFunc(line, isSeparator)
	if len(fields) != 2 {
		return RecipientEntry{}, nil, false
	}

	addr, ok := ParseAddress(fields[0])
	if !ok {
		return RecipientEntry{}, nil, false
	}

	scaled, ok := ScaleAmount(fields[1], decimals)
	if !ok {
		return RecipientEntry{}, nil, false
	}

	return RecipientEntry{Address: addr, RawAmount: fields[1]}, scaled, true
}

func isSeparator(r rune) bool {
	switch r {
	case ',', '=', ' ', '\t':
		return true
	}
	return false
}

// ParseAddress accepts 40 hex chars with an optional 0x prefix. Mixed-case
// input must carry a valid EIP-55 checksum.
func ParseAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}

	addr := common.HexToAddress(s)

	hexPart := s
	if strings.HasPrefix(hexPart, "0x") || strings.HasPrefix(hexPart, "0X") {
		hexPart = hexPart[2:]
	}
	if hexPart != strings.ToLower(hexPart) && hexPart != strings.ToUpper(hexPart) {
		if hexPart != addr.Hex()[2:] {
			return common.Address{}, false
		}
	}

	return addr, true
}

// ScaleAmount converts a human decimal into base units. Amounts with more
// fractional digits than decimals are rejected rather than rounded.
func ScaleAmount(raw string, decimals uint8) (*big.Int, bool) {
	if !amountPattern.MatchString(raw) {
		return nil, false
	}

	normalized := raw
	if strings.HasPrefix(normalized, ".") {
		normalized = "0" + normalized
	}
	normalized = strings.TrimSuffix(normalized, ".")

	d, err := decimal.NewFromString(normalized)
	if err != nil || d.IsNegative() {
		return nil, false
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, false
	}

	return scaled.BigInt(), true
}
