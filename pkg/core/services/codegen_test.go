package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewCodeGenerator(DefaultCodeLength)

	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		code, err := gen.Generate()
		require.NoError(t, err)
		require.Len(t, code, DefaultCodeLength)
		for _, r := range code {
			require.True(t, strings.ContainsRune(charset, r), "unexpected rune %q", r)
		}
		seen[code] = struct{}{}
	}
	assert.Len(t, seen, 10000)
}

func TestNewCodeGeneratorDefaultsLength(t *testing.T) {
	code, err := NewCodeGenerator(0).Generate()
	require.NoError(t, err)
	assert.Len(t, code, DefaultCodeLength)

	code, err = NewCodeGenerator(6).Generate()
	require.NoError(t, err)
	assert.Len(t, code, 6)
}

func TestCustomCodePattern(t *testing.T) {
	for code, ok := range map[string]bool{
		"spring-sale": true,
		"Ad_2025":     true,
		"abc":         true,
		"ab":          false,
		"has space":   false,
		"slash/no":    false,
		"émoji":       false,
	} {
		assert.Equal(t, ok, customCodePattern.MatchString(code), code)
	}
}
