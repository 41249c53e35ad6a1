package model

import (
	"math"
	"testing"
)

func TestOffset(t *testing.T) {
	tests := []struct {
		page, limit, want int
	}{
		{1, 5, 0},
		{2, 5, 5},
		{3, 10, 20},
		{0, 5, 0},
		{math.MaxInt/4 + 2, 4, math.MaxInt},
		{math.MaxInt, math.MaxInt, math.MaxInt},
	}
	for _, tt := range tests {
		if got := Offset(tt.page, tt.limit); got != tt.want {
			t.Errorf("Offset(%d, %d) = %d, want %d", tt.page, tt.limit, got, tt.want)
		}
	}
}
