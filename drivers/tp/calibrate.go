package tp

import "github.com/clktmr/twl/fixed"

// Scales of the calibration parameters.
const (
	dotShift        = 8
	originShift     = 2
	dotInvShift     = 28 - dotShift
	dot2OriginShift = dotShift - originShift
)

// CalibrateParam maps raw touch panel values to screen coordinates:
// raw = origin + screen * dotSize.
type CalibrateParam struct {
	X0, Y0             fixed.Int14_2
	XDotSize, YDotSize fixed.Int8_8
}

type axis struct {
	origin int32
	dot    int32
	inv    fixed.Int12_20
}

type calibration struct {
	enabled bool
	x, y    axis
}

// Point is a pair of raw or screen coordinates.
type Point struct {
	X, Y uint16
}

// UserInfo holds the two reference points stored in the user settings.
type UserInfo struct {
	Raw1, Disp1 Point
	Raw2, Disp2 Point
}

func inInt16(v int32) bool { return v >= -0x8000 && v < 0x8000 }

func calcAxis(raw1, disp1, raw2, disp2 int32) (origin fixed.Int14_2, dot fixed.Int8_8, ok bool) {
	d := ((raw1 - raw2) << dotShift) / (disp1 - disp2)
	if !inInt16(d) {
		return 0, 0, false
	}
	o := int16((((raw1 + raw2) << dotShift) - (disp1+disp2)*d) >> (dotShift - originShift + 1))
	return fixed.Int14_2(o), fixed.Int8_8(d), true
}

// CalcCalibrateParam computes the calibration from two reference points
// given in raw and screen coordinates.
func (d *Driver) CalcCalibrateParam(raw1, disp1, raw2, disp2 Point) (CalibrateParam, error) {
	rawMax := d.cfg.RawMax
	if raw1.X >= rawMax || raw1.Y >= rawMax || raw2.X >= rawMax || raw2.Y >= rawMax {
		return CalibrateParam{}, ErrCalibration
	}
	if disp1.X >= d.cfg.ScreenWidth || disp2.X >= d.cfg.ScreenWidth ||
		disp1.Y >= d.cfg.ScreenHeight || disp2.Y >= d.cfg.ScreenHeight {
		return CalibrateParam{}, ErrCalibration
	}
	if disp1.X == disp2.X || disp1.Y == disp2.Y || raw1.X == raw2.X || raw1.Y == raw2.Y {
		return CalibrateParam{}, ErrCalibration
	}

	var p CalibrateParam
	var ok bool
	p.X0, p.XDotSize, ok = calcAxis(int32(raw1.X), int32(disp1.X), int32(raw2.X), int32(disp2.X))
	if !ok {
		return CalibrateParam{}, ErrCalibration
	}
	p.Y0, p.YDotSize, ok = calcAxis(int32(raw1.Y), int32(disp1.Y), int32(raw2.Y), int32(disp2.Y))
	if !ok {
		return CalibrateParam{}, ErrCalibration
	}
	return p, nil
}

func newAxis(origin fixed.Int14_2, dot fixed.Int8_8) axis {
	if dot == 0 {
		return axis{}
	}
	return axis{
		origin: int32(origin),
		dot:    int32(dot),
		inv:    fixed.Int12_20(0x10000000 / int32(dot)),
	}
}

// SetCalibrateParam sets the calibration used by the calibrated results.
// The inverse of the dot sizes is computed here. nil disables calibration.
func (d *Driver) SetCalibrateParam(p *CalibrateParam) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p == nil {
		d.cal.enabled = false
		return
	}
	d.cal = calibration{
		enabled: true,
		x:       newAxis(p.X0, p.XDotSize),
		y:       newAxis(p.Y0, p.YDotSize),
	}
}

func (a axis) screen(raw uint16, limit int16) uint16 {
	v := int16(((int64(raw)<<originShift - int64(a.origin)) * int64(a.inv)) >> (dotInvShift + originShift))
	return uint16(min(max(v, 0), limit))
}

// CalibratedPoint converts raw to screen coordinates. Without calibration
// raw is returned unchanged. Coordinates are clamped to the screen.
func (d *Driver) CalibratedPoint(raw Sample) Sample {
	d.mu.Lock()
	cal := d.cal
	d.mu.Unlock()
	if !cal.enabled {
		return raw
	}

	disp := raw
	if !raw.Touch {
		disp.X, disp.Y = 0, 0
		return disp
	}
	disp.X = cal.x.screen(raw.X, int16(d.cfg.ScreenWidth-1))
	disp.Y = cal.y.screen(raw.Y, int16(d.cfg.ScreenHeight-1))
	return disp
}

// UncalibratedPoint converts screen coordinates to raw values. Without
// calibration the coordinates are returned unchanged.
func (d *Driver) UncalibratedPoint(dx, dy uint16) (x, y uint16) {
	d.mu.Lock()
	cal := d.cal
	d.mu.Unlock()
	if !cal.enabled {
		return dx, dy
	}
	x = uint16(((int32(dx)*cal.x.dot)>>dot2OriginShift + cal.x.origin) >> originShift)
	y = uint16(((int32(dy)*cal.y.dot)>>dot2OriginShift + cal.y.origin) >> originShift)
	return x, y
}

// UserInfoCalibration computes the calibration from the reference points of
// the user settings. Unset or unusable points give a zero parameter.
func (d *Driver) UserInfoCalibration(info UserInfo) CalibrateParam {
	if info.Raw1 == (Point{}) && info.Raw2 == (Point{}) {
		return CalibrateParam{}
	}
	p, err := d.CalcCalibrateParam(info.Raw1, info.Disp1, info.Raw2, info.Disp2)
	if err != nil {
		return CalibrateParam{}
	}
	return p
}
