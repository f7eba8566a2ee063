// Package codegen generates human-shareable room codes.
package codegen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const letters = "abcdefghijklmnopqrstuvwxyz"

// MeetingCodePattern matches codes produced by MeetingCode
var MeetingCodePattern = regexp.MustCompile(`^[a-z]{3}-[a-z]{4}-[a-z]{3}$`)

var segments = []int{3, 4, 3}

// MeetingCode returns a random lowercase code shaped like "abc-defg-hij".
// Codes are not checked for uniqueness here; storage enforces it.
func MeetingCode() (string, error) {
	parts := make([]string, len(segments))
	max := big.NewInt(int64(len(letters)))
	for i, n := range segments {
		var b strings.Builder
		b.Grow(n)
		for j := 0; j < n; j++ {
			idx, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("failed to read random source: %w", err)
			}
			b.WriteByte(letters[idx.Int64()])
		}
		parts[i] = b.String()
	}
	return strings.Join(parts, "-"), nil
}

// IsMeetingCode reports whether s has the meeting code shape
func IsMeetingCode(s string) bool {
	return MeetingCodePattern.MatchString(s)
}
