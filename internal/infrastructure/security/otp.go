package security

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// NumericCodeGenerator produces zero-padded decimal codes of a fixed length.
type NumericCodeGenerator struct {
	length int
}

func NewNumericCodeGenerator(length int) *NumericCodeGenerator {
	if length <= 0 {
		length = 4
	}
	return &NumericCodeGenerator{length: length}
}

func (g *NumericCodeGenerator) NewCode() (string, error) {
	var b strings.Builder
	b.Grow(g.length)
	ten := big.NewInt(10)
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
