package codegen

import (
	"math/rand"
	"strings"
	"time"
)

// MaxRun is the longest allowed streak of one repeated digit.
const MaxRun = 3

const defaultMaxTries = 1000

// Rand is the randomness the generator and hint picker draw from.
// *rand.Rand satisfies it; tests pass a seeded or scripted source.
type Rand interface {
	Intn(n int) int
}

type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.Intn(n) }

// Default returns the process wide source, safe for concurrent use.
func Default() Rand {
	return globalRand{}
}

type Generator struct {
	rnd      Rand
	maxTries int
	now      func() time.Time
}

func New(rnd Rand) *Generator {
	if rnd == nil {
		rnd = Default()
	}
	return &Generator{rnd: rnd, maxTries: defaultMaxTries, now: time.Now}
}

// Generate draws length uniform digits and redraws the whole sequence until
// it is valid. After maxTries draws it falls back to a time seeded
// incrementing sequence, which is valid for any length >= 2.
func (g *Generator) Generate(length int) []int {
	digits := make([]int, length)
	for try := 0; try < g.maxTries; try++ {
		for i := range digits {
			digits[i] = g.rnd.Intn(10)
		}
		if IsValid(digits) {
			return digits
		}
	}
	return Fallback(length, g.now().UnixNano())
}

// Fallback returns digits start, start+1, ... mod 10. Neighbours always
// differ, so there is no run and (for length >= 2) not all digits match.
func Fallback(length int, seed int64) []int {
	start := int(seed % 10)
	if start < 0 {
		start += 10
	}
	digits := make([]int, length)
	for i := range digits {
		digits[i] = (start + i) % 10
	}
	return digits
}

func IsValid(digits []int) bool {
	return !AllSame(digits) && LongestRun(digits) <= MaxRun
}

func AllSame(digits []int) bool {
	if len(digits) == 0 {
		return true
	}
	for _, d := range digits[1:] {
		if d != digits[0] {
			return false
		}
	}
	return true
}

func LongestRun(digits []int) int {
	if len(digits) == 0 {
		return 0
	}
	longest, run := 1, 1
	for i := 1; i < len(digits); i++ {
		if digits[i] == digits[i-1] {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// String encodes digits as their decimal characters, e.g. "0481937".
func String(digits []int) string {
	var b strings.Builder
	b.Grow(len(digits))
	for _, d := range digits {
		b.WriteByte(byte('0' + d))
	}
	return b.String()
}
