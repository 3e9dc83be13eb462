package instagram

import (
	"fmt"
	"math/big"
	"strings"
)

const shortcodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// maxShortcodeLen drops the suffix private posts carry after the id part.
const maxShortcodeLen = 11

// MediaPK converts a URL shortcode into the numeric media id.
func MediaPK(shortcode string) (string, error) {
	if shortcode == "" {
		return "", fmt.Errorf("empty shortcode")
	}
	if len(shortcode) > maxShortcodeLen {
		shortcode = shortcode[:maxShortcodeLen]
	}

	pk := new(big.Int)
	base := big.NewInt(int64(len(shortcodeAlphabet)))
	for _, r := range shortcode {
		idx := strings.IndexRune(shortcodeAlphabet, r)
		if idx < 0 {
			return "", fmt.Errorf("invalid shortcode character %q", r)
		}
		pk.Mul(pk, base)
		pk.Add(pk, big.NewInt(int64(idx)))
	}
	return pk.String(), nil
}
