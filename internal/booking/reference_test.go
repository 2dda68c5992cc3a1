package booking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingReference(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		ref, err := newBookingReference()
		require.NoError(t, err)

		assert.Len(t, ref, 11)
		assert.True(t, strings.HasPrefix(ref, "BK-"))

		for _, c := range ref[3:] {
			assert.Contains(t, referenceAlphabet, string(c))
		}

		assert.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}
