package studygroup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_newJoinCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := newJoinCode()
		require.NoError(t, err)
		assert.Len(t, code, joinCodeLen)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(joinCodeAlphabet, r), "unexpected rune %q in %s", r, code)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}

func Test_normalizeJoinCode(t *testing.T) {
	assert.Equal(t, "AB12CD34", normalizeJoinCode("  ab12Cd34 "))
}
