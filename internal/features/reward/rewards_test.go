package reward

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		base   int64
		intent bool
		want   int64
	}{
		{5, true, 7},
		{5, false, 5},
		{0, true, 0},
		{10, true, 14},
		{15, true, 21},
		{1, true, 1},  // 1.4 → 1
		{3, true, 4},  // 4.2 → 4
		{25, true, 35},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Calculate(tt.base, tt.intent), "base=%d intent=%v", tt.base, tt.intent)
	}
}

func TestCalculateDefaults(t *testing.T) {
	assert.Equal(t, int64(7), Calculate(BaseReward, true))
	assert.Equal(t, int64(5), Calculate(BaseReward, false))
}
