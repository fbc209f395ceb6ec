package services

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	// DefaultCodeLength gives 62^8 (about 2.2e14) codes.
	DefaultCodeLength = 8

	maxGenerateAttempts = 5
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var customCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// CodeGenerator draws random URL-safe codes. It does not check uniqueness;
// the registry rejects duplicates and LinkService draws again.
type CodeGenerator struct {
	length int
}

func NewCodeGenerator(length int) *CodeGenerator {
	if length <= 0 {
		length = DefaultCodeLength
	}
	return &CodeGenerator{length: length}
}

func (g *CodeGenerator) Generate() (string, error) {
	return generateShortCode(g.length)
}

func generateShortCode(length int) (string, error) {
	b := make([]byte, length)
	alphabet := big.NewInt(int64(len(charset)))
	for i := range b {
		num, err := rand.Int(rand.Reader, alphabet)
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}
