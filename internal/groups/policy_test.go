package groups

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCapacity_FixedTable(t *testing.T) {
	cases := []struct {
		token string
		want  int
	}{
		{TokenIndividual, 1},
		{TokenPair, 2},
		{TokenTriad, 3},
		{TokenQuad, 4},
		{TokenCircleOfSix, 6},
		{TokenWholeGroup, CapacityAll},
	}
	for _, tc := range cases {
		t.Run(tc.token, func(t *testing.T) {
			got, err := Capacity(tc.token)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCapacity_UnknownToken(t *testing.T) {
	_, err := Capacity("octet")
	require.ErrorIs(t, err, ErrUnknownGroupSize)

	_, err = Capacity("")
	require.ErrorIs(t, err, ErrUnknownGroupSize)
}
