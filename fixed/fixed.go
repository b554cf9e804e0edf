// Package fixed provides the fixed-point types used for touch panel
// calibration. IntM_N has M integer and N fractional bits.
package fixed

//go:generate go run gen.go

type (
	Int8_8   int16
	Int14_2  int16
	Int12_20 int32
)
