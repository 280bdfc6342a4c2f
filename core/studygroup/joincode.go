package studygroup

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	joinCodeLen      = 8
	joinCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var joinCodeFunc = newJoinCode // mockable

// newJoinCode returns joinCodeLen random upper-case base-36 characters.
func newJoinCode() (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	for i := 0; i < joinCodeLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(joinCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// normalizeJoinCode lets users type codes in any case.
func normalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
