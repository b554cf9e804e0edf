package tp_test

import (
	"context"
	"testing"
	"time"

	"github.com/clktmr/twl/arm7"
	"github.com/clktmr/twl/drivers/periph"
	"github.com/clktmr/twl/drivers/spi"
	"github.com/clktmr/twl/drivers/tp"
	"github.com/clktmr/twl/pxi"
	twltesting "github.com/clktmr/twl/testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) { twltesting.TestMain(m) }

type event struct {
	cmd   tp.Command
	r     tp.Result
	index int
}

func start(t *testing.T, opts ...tp.Option) (*tp.Driver, *arm7.TouchPanel, *pxi.Link, chan event) {
	t.Helper()
	link := twltesting.StartLink(t)
	sim := arm7.NewTouchPanel(link.ARM7(), &link.Work)
	d := tp.New(link.ARM9(), &link.Work, opts...)
	require.NoError(t, d.Init(context.Background()))

	events := make(chan event, 16)
	d.SetCallback(func(ctx context.Context, cmd tp.Command, r tp.Result, index int) {
		events <- event{cmd, r, index}
	})
	return d, sim, link, events
}

func next(t *testing.T, events chan event) event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no callback")
	}
	return event{}
}

func TestSampling(t *testing.T) {
	d, sim, _, events := start(t)
	sim.Touch(100, 200)

	require.Equal(t, tp.Success, d.RequestSamplingAsync())
	s, err := d.WaitRawResult(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tp.Sample{X: 100, Y: 200, Touch: true, Validity: tp.Valid}, s)
	assert.Equal(t, event{tp.CmdSampling, tp.Success, 0}, next(t, events))
	assert.Zero(t, d.CheckBusy(tp.FlagAll))
	assert.Zero(t, d.CheckError(tp.FlagAll))

	sim.Release()
	require.Equal(t, tp.Success, d.RequestSamplingAsync())
	s, err = d.WaitRawResult(context.Background())
	require.NoError(t, err)
	assert.False(t, s.Touch)
}

func TestExclusive(t *testing.T) {
	link := twltesting.StartLink(t)
	link.ARM7().SetHandler(pxi.TagTouchPanel, func(context.Context, pxi.Tag, uint32, bool) {})
	d := tp.New(link.ARM9(), &link.Work, tp.WithBusyTimeout(10*time.Millisecond))

	assert.Equal(t, tp.IllegalStatus, d.RequestSamplingAsync())
	require.NoError(t, d.Init(context.Background()))

	require.Equal(t, tp.Success, d.RequestSamplingAsync())
	assert.Equal(t, tp.Exclusive, d.RequestSamplingAsync())
	assert.Equal(t, tp.FlagSampling, d.CheckBusy(tp.FlagAll))

	// Other commands may be in flight at the same time.
	require.Equal(t, tp.Success, d.RequestSetStabilityAsync(0, 20))
	assert.Equal(t, tp.FlagSampling|tp.FlagSetStability, d.CheckBusy(tp.FlagAll))

	_, err := d.WaitRawResult(context.Background())
	assert.ErrorIs(t, err, periph.ErrTimeout)
	assert.ErrorIs(t, d.WaitAllBusy(pxi.WithInterrupt(context.Background())), periph.ErrInterruptContext)
}

func TestInvalidParameter(t *testing.T) {
	bufs := make([]tp.Sample, 4)
	tests := map[string]func(d *tp.Driver) tp.Result{
		"vcount":         func(d *tp.Driver) tp.Result { return d.RequestAutoSamplingStartAsync(tp.LCDLines, 1, bufs) },
		"zero frequency": func(d *tp.Driver) tp.Result { return d.RequestAutoSamplingStartAsync(0, 0, bufs) },
		"frequency":      func(d *tp.Driver) tp.Result { return d.RequestAutoSamplingStartAsync(0, tp.MaxFrequency+1, bufs) },
		"no buffers":     func(d *tp.Driver) tp.Result { return d.RequestAutoSamplingStartAsync(0, 1, nil) },
		"zero range":     func(d *tp.Driver) tp.Result { return d.RequestSetStabilityAsync(0, 0) },
		"range":          func(d *tp.Driver) tp.Result { return d.RequestSetStabilityAsync(0, 255) },
	}
	for name, call := range tests {
		t.Run(name, func(t *testing.T) {
			d, sim, _, _ := start(t)
			assert.Equal(t, tp.InvalidParameter, call(d))
			assert.Empty(t, sim.History())
			assert.Zero(t, d.CheckBusy(tp.FlagAll))
		})
	}
}

func TestAutoSampling(t *testing.T) {
	d, sim, _, events := start(t)
	bufs := make([]tp.Sample, 4)
	for i := range bufs {
		bufs[i].Touch = true
	}

	require.Equal(t, tp.Success, d.RequestAutoSamplingStartAsync(100, 2, bufs))
	assert.Equal(t, event{tp.CmdAutoOn, tp.Success, 0}, next(t, events))
	assert.Equal(t, tp.StateAutoSampling, d.State())
	assert.True(t, sim.Auto())
	assert.Equal(t, tp.Sample{Validity: tp.InvalidXY}, d.LatestRawPointInAuto())

	assert.Equal(t, tp.IllegalStatus, d.RequestSamplingAsync())
	assert.Equal(t, tp.IllegalStatus, d.RequestAutoSamplingStartAsync(100, 2, bufs))

	sim.Touch(300, 400)
	sim.Tick()
	assert.Equal(t, event{tp.CmdAutoSampling, tp.Success, 1}, next(t, events))
	assert.Equal(t, event{tp.CmdAutoSampling, tp.Success, 2}, next(t, events))
	assert.Equal(t, 2, d.LatestIndexInAuto())
	assert.Equal(t, tp.Sample{X: 300, Y: 400, Touch: true}, d.LatestRawPointInAuto())

	// Merge an invalid coordinate from the previous sample of the frame.
	sim.Touch(30, 40)
	sim.SetValidity(tp.InvalidX)
	sim.Tick()
	assert.Equal(t, event{tp.CmdAutoSampling, tp.Success, 3}, next(t, events))
	assert.Equal(t, event{tp.CmdAutoSampling, tp.Success, 0}, next(t, events))
	assert.Equal(t, tp.Sample{Y: 40, Touch: true, Validity: tp.InvalidX}, d.LatestRawPointInAuto())

	sim.Release()
	sim.Tick()
	next(t, events)
	next(t, events)
	assert.Equal(t, tp.Sample{Validity: tp.InvalidXY}, d.LatestRawPointInAuto())

	require.Equal(t, tp.Success, d.RequestAutoSamplingStopAsync())
	assert.Equal(t, event{tp.CmdAutoOff, tp.Success, 0}, next(t, events))
	assert.Equal(t, tp.StateReady, d.State())
	assert.Equal(t, tp.IllegalStatus, d.RequestAutoSamplingStopAsync())
}

func TestReplyError(t *testing.T) {
	d, sim, _, events := start(t)

	sim.FailNext(tp.CmdSetStability, spi.InvalidParameter)
	require.Equal(t, tp.Success, d.RequestSetStabilityAsync(0, 30))
	assert.Equal(t, event{tp.CmdSetStability, tp.InvalidParameter, 0}, next(t, events))
	assert.Equal(t, tp.FlagSetStability, d.CheckError(tp.FlagAll))
	assert.Zero(t, d.CheckBusy(tp.FlagAll))

	sim.FailNext(tp.CmdSampling, spi.Exclusive)
	require.Equal(t, tp.Success, d.RequestSamplingAsync())
	_, err := d.WaitRawResult(context.Background())
	assert.ErrorIs(t, err, tp.ErrRequest)
	_, err = d.GetCalibratedResult()
	assert.ErrorIs(t, err, tp.ErrRequest)

	// A new request clears the error.
	require.Equal(t, tp.Success, d.RequestSetStabilityAsync(0, 30))
	next(t, events)
	next(t, events)
	assert.Equal(t, tp.FlagSampling, d.CheckError(tp.FlagAll))
	assert.Equal(t, uint8(30), sim.Stability())
}

func TestDamagedReply(t *testing.T) {
	d, _, link, events := start(t)
	link.ARM7().CorruptNext()

	require.Equal(t, tp.Success, d.RequestSamplingAsync())
	assert.Equal(t, event{tp.CmdSampling, tp.PxiBusy, 0}, next(t, events))
	assert.Equal(t, tp.FlagSampling, d.CheckError(tp.FlagAll))
}

func TestSendError(t *testing.T) {
	link := pxi.NewLink(pxi.Config{Depth: 1})
	arm7.NewTouchPanel(link.ARM7(), &link.Work)
	d := tp.New(link.ARM9(), &link.Work)
	require.NoError(t, d.Init(context.Background()))

	var got []tp.Result
	d.SetCallback(func(ctx context.Context, cmd tp.Command, r tp.Result, index int) {
		got = append(got, r)
	})
	assert.Equal(t, tp.PxiBusy, d.RequestAutoSamplingStartAsync(0, 1, make([]tp.Sample, 2)))
	assert.Equal(t, []tp.Result{tp.PxiBusy}, got)
	assert.Equal(t, tp.FlagAutoOn, d.CheckError(tp.FlagAll))
	assert.Zero(t, d.CheckBusy(tp.FlagAll))
}

func TestUnexpectedReply(t *testing.T) {
	tests := map[string]struct {
		cmd  tp.Command
		flag tp.CommandFlag
	}{
		"auto on":   {tp.CmdAutoOn, tp.FlagAutoOn},
		"auto off":  {tp.CmdAutoOff, tp.FlagAutoOff},
		"sampling":  {tp.CmdSampling, tp.FlagSampling},
		"stability": {tp.CmdSetStability, tp.FlagSetStability},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			d, _, link, events := start(t)
			require.NoError(t, link.ARM7().Send(pxi.TagTouchPanel, spi.Reply(uint8(tc.cmd), spi.Success)))

			assert.Equal(t, event{tc.cmd, tp.FatalError, 0}, next(t, events))
			assert.Equal(t, tp.StateReady, d.State())
			assert.Equal(t, tc.flag, d.CheckError(tp.FlagAll))
			assert.Zero(t, d.CheckBusy(tp.FlagAll))
		})
	}
}

func TestIllegalResult(t *testing.T) {
	d, sim, _, events := start(t)
	sim.FailNext(tp.CmdSetStability, spi.InvalidCommand)

	require.Equal(t, tp.Success, d.RequestSetStabilityAsync(0, 30))
	assert.Equal(t, event{tp.CmdSetStability, tp.FatalError, 0}, next(t, events))
	assert.Equal(t, tp.FlagSetStability, d.CheckError(tp.FlagAll))
	assert.Zero(t, d.CheckBusy(tp.FlagAll))

	sim.Touch(10, 20)
	require.Equal(t, tp.Success, d.RequestSamplingAsync())
	s, err := d.WaitRawResult(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tp.Sample{X: 10, Y: 20, Touch: true, Validity: tp.Valid}, s)
	assert.Equal(t, event{tp.CmdSampling, tp.Success, 0}, next(t, events))
}
