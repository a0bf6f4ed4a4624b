package wallet

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"

	"crowdfund.io/crowdfund-dapp/pkg/errors"
)

const etherDecimals = 18

var (
	big10   = big.NewInt(10)
	weiUnit = big.NewInt(params.Ether)
)

func unit(decimals int) *big.Int {
	if decimals == etherDecimals {
		return weiUnit
	}
	return new(big.Int).Exp(big10, big.NewInt(int64(decimals)), nil)
}

// FormatEther renders wei as a decimal ether string: "1.0", "0.5",
// "0.000000000000000001".
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, etherDecimals)
}

// ParseEther is the inverse of FormatEther.
func ParseEther(value string) (*big.Int, error) {
	return ParseUnits(value, etherDecimals)
}

// FormatUnits renders an integer amount of the smallest unit with the given number of
// decimals. The fraction always keeps at least one digit.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0.0"
	}
	sign := ""
	abs := new(big.Int).Set(amount)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}
	if decimals <= 0 {
		return sign + abs.String() + ".0"
	}
	whole, frac := new(big.Int).QuoRem(abs, unit(decimals), new(big.Int))
	fracStr := frac.String()
	fracStr = strings.TrimRight(strings.Repeat("0", decimals-len(fracStr))+fracStr, "0")
	if fracStr == "" {
		fracStr = "0"
	}
	return sign + whole.String() + "." + fracStr
}

func invalidAmount(format string, args ...interface{}) error {
	return errors.Mark(errors.Errorf(format, args...), ErrInvalidAmount)
}

// ParseUnits parses a human decimal string into the smallest unit. More fractional
// digits than decimals is an error rather than a silent truncation. Every failure is
// marked with ErrInvalidAmount.
func ParseUnits(value string, decimals int) (*big.Int, error) {
	s := strings.TrimSpace(value)
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, invalidAmount("invalid decimal value %q", value)
	}
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if whole == "" && frac == "" {
		return nil, invalidAmount("invalid decimal value %q", value)
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return nil, invalidAmount("invalid decimal value %q", value)
	}
	if len(frac) > decimals {
		return nil, invalidAmount("fractional component of %q exceeds %d decimals", value, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	out, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, invalidAmount("invalid decimal value %q", value)
	}
	if negative {
		out.Neg(out)
	}
	return out, nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
