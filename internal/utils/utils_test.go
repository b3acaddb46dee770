package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestPointerHelpers(t *testing.T) {
	t.Run("nil pointers", func(t *testing.T) {
		var s *string
		require.Equal(t, "fallback", utils.ValueOr(s, "fallback"))
		require.Nil(t, utils.Clone(s))
	})

	t.Run("clone is independent", func(t *testing.T) {
		type pair struct{ A, B int }
		p := &pair{A: 1, B: 2}
		c := utils.Clone(p)
		c.A = 10
		require.Equal(t, 1, p.A)
		require.Equal(t, 10, utils.ValueOr(c, pair{}).A)
	})
}

func TestCompactStrings(t *testing.T) {
	require.Nil(t, utils.CompactStrings(nil))
	require.Nil(t, utils.CompactStrings([]string{" ", ""}))
	require.Equal(t, []string{"kitchen", "living room"}, utils.CompactStrings([]string{" kitchen", "", "living room "}))
}
