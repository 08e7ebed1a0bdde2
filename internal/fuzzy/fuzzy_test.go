package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "national institute of technology silchar", Normalize("  National Institute of Technology, Silchar "))
	assert.Equal(t, "78 4", Normalize("78.4%"))
	assert.Equal(t, "", Normalize("--"))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 100, Ratio("abc", "abc"))
	assert.Equal(t, 0, Ratio("", "abc"))
	assert.Equal(t, 0, Ratio("abc", ""))
	// a substitution is a deletion plus an insertion: 2*2/6
	assert.Equal(t, 67, Ratio("abc", "abd"))
	assert.Equal(t, 0, Ratio("abc", "xyz"))
	assert.Equal(t, 50, Ratio("a", "abc"))
}

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "Indian Institute of Science", "Indian Institute of Science", 100},
		{"case and order", "SCIENCE institute indian", "Indian Institute of Science", 100},
		{"punctuation ignored", "IIT, Bombay", "iit bombay", 100},
		{"subset", "Madhav Institute", "Madhav Institute of Technology and Science", 100},
		{"empty side", "", "anything", 0},
		{"abbreviated", "NIT Silchar", "National Institute of Technology, Silchar", 78},
		{"different person same surname", "Rahul Kumar", "Rohit Kumar", 73},
		{"different campus", "NIT Silchar", "NIT Srinagar", 70},
		{"no shared words", "abc", "xyz", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenSetRatio(tt.a, tt.b))
		})
	}
}

func TestTokenSetRatio_NearMissesStayBelowThresholds(t *testing.T) {
	// recipient names must exceed 80, institutions 75
	assert.LessOrEqual(t, TokenSetRatio("Rahul Kumar", "Rohit Kumar"), 80)
	assert.Less(t, TokenSetRatio("NIT Silchar", "NIT Srinagar"), 75)
	assert.Greater(t, TokenSetRatio("NIT Silchar", "National Institute of Technology Silchar"), 75)
}

func TestTokenSetRatio_Symmetric(t *testing.T) {
	a := "Jawaharlal Nehru University"
	b := "Nehru Univ Delhi"
	assert.Equal(t, TokenSetRatio(a, b), TokenSetRatio(b, a))
}

func TestTokenSetRatio_Bounded(t *testing.T) {
	pairs := [][2]string{
		{"x", "y"},
		{"completely different", "nothing alike here"},
		{"a b c", "c b a"},
	}
	for _, p := range pairs {
		r := TokenSetRatio(p[0], p[1])
		assert.GreaterOrEqual(t, r, 0)
		assert.LessOrEqual(t, r, 100)
	}
}
