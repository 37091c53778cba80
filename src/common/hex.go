package common

import (
	"fmt"
	"math/big"
	"strings"
)

// TrimHexPrefix removes a leading 0x or 0X.
func TrimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// DecodeHexBig parses a hexadecimal string, with or without the 0x prefix,
// into a big.Int. Network figures are reported this way.
func DecodeHexBig(s string) (*big.Int, error) {
	digits := TrimHexPrefix(strings.TrimSpace(s))
	if digits == "" {
		return nil, fmt.Errorf("empty hex string")
	}
	n, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex string %q", s)
	}
	return n, nil
}

// DecodeHexInt64 is DecodeHexBig for values that must fit an int64.
func DecodeHexInt64(s string) (int64, error) {
	n, err := DecodeHexBig(s)
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() {
		return 0, fmt.Errorf("hex value %q overflows int64", s)
	}
	return n.Int64(), nil
}
