package codegen

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scripted replays digits in order and wraps around.
type scripted struct {
	digits []int
	pos    int
}

func (s *scripted) Intn(n int) int {
	d := s.digits[s.pos%len(s.digits)] % n
	s.pos++
	return d
}

func TestValidityPredicates(t *testing.T) {
	cases := []struct {
		name    string
		digits  []int
		allSame bool
		run     int
		valid   bool
	}{
		{name: "AllZero", digits: []int{0, 0, 0, 0, 0, 0, 0}, allSame: true, run: 7, valid: false},
		{name: "RunOfFour", digits: []int{1, 2, 5, 5, 5, 5, 3}, run: 4, valid: false},
		{name: "RunOfThree", digits: []int{5, 5, 5, 1, 2, 2, 9}, run: 3, valid: true},
		{name: "NoRepeats", digits: []int{0, 1, 2, 3, 4, 5, 6}, run: 1, valid: true},
		{name: "RunAtEnd", digits: []int{9, 1, 2, 7, 7, 7, 7}, run: 4, valid: false},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.allSame, AllSame(tc.digits))
			require.Equal(t, tc.run, LongestRun(tc.digits))
			require.Equal(t, tc.valid, IsValid(tc.digits))
		})
	}
}

func TestGenerateProducesValidCodes(t *testing.T) {
	g := New(rand.New(rand.NewSource(42)))
	for i := 0; i < 5000; i++ {
		digits := g.Generate(7)
		require.Len(t, digits, 7)
		require.True(t, IsValid(digits), "invalid code %v", digits)
		for _, d := range digits {
			require.True(t, d >= 0 && d <= 9)
		}
	}
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	a := New(rand.New(rand.NewSource(7))).Generate(7)
	b := New(rand.New(rand.NewSource(7))).Generate(7)
	require.Equal(t, a, b)
}

func TestGenerateResamplesInvalidDraws(t *testing.T) {
	// first draw is all fours, second has a run of four, third is valid
	src := &scripted{digits: []int{
		4, 4, 4, 4, 4, 4, 4,
		1, 3, 3, 3, 3, 2, 0,
		8, 1, 8, 2, 8, 3, 8,
	}}
	g := New(src)

	require.Equal(t, []int{8, 1, 8, 2, 8, 3, 8}, g.Generate(7))
	require.Equal(t, 21, src.pos)
}

func TestGenerateFallsBackWhenSourceIsBroken(t *testing.T) {
	g := New(&scripted{digits: []int{3}})
	g.now = func() time.Time { return time.Unix(0, 1234567) }

	digits := g.Generate(7)
	require.Equal(t, []int{7, 8, 9, 0, 1, 2, 3}, digits)
	require.True(t, IsValid(digits))
}

func TestFallbackIsAlwaysValid(t *testing.T) {
	for seed := int64(-20); seed < 20; seed++ {
		require.True(t, IsValid(Fallback(7, seed)), "seed %d", seed)
	}
}

func TestString(t *testing.T) {
	require.Equal(t, "0481937", String([]int{0, 4, 8, 1, 9, 3, 7}))
}
