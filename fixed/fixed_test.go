package fixed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRounding(t *testing.T) {
	tests := map[string]struct {
		x                  Int8_8
		floor, ceil, round int
	}{
		"integer":  {Int8_8U(3), 3, 3, 3},
		"half":     {Int8_8F(2.5), 2, 3, 3},
		"quarter":  {Int8_8F(2.25), 2, 3, 2},
		"negative": {Int8_8F(-1.5), -2, -1, -1},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.floor, tc.x.Floor())
			assert.Equal(t, tc.ceil, tc.x.Ceil())
			assert.Equal(t, tc.round, tc.x.Round())
		})
	}
}

func TestMulDiv(t *testing.T) {
	a, b := Int8_8F(1.5), Int8_8F(2)
	assert.Equal(t, Int8_8F(3), a.Mul(b))
	assert.Equal(t, Int8_8F(0.75), a.Div(b))

	inv := Int12_20(0x10000000 / int32(Int8_8F(16)))
	assert.InDelta(t, 1.0/16, inv.Float(), 1e-6)
	assert.Equal(t, "1:2", Int14_2(6).String())
}
