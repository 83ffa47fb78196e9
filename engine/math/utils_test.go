package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(5, 0, 10))
	assert.Equal(t, 0, Clamp(-3, 0, 10))
	assert.Equal(t, 10, Clamp(42, 0, 10))
	assert.Equal(t, float32(2.0), Clamp(float32(1.5), 2.0, 500.0))
}

func TestWrapDeg(t *testing.T) {
	assert.Equal(t, float32(0), WrapDeg(float32(360)))
	assert.Equal(t, float32(1), WrapDeg(float32(361)))
	assert.Equal(t, float32(359), WrapDeg(float32(-1)))
	assert.Equal(t, float32(45), WrapDeg(float32(45)))
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		size      uint64
		alignment uint64
		want      uint64
	}{
		{size: 64, alignment: 256, want: 256},
		{size: 64, alignment: 64, want: 64},
		{size: 65, alignment: 64, want: 128},
		{size: 0, alignment: 16, want: 0},
		{size: 1, alignment: 16, want: 16},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AlignUp(tt.size, tt.alignment), "AlignUp(%d, %d)", tt.size, tt.alignment)
	}
}
