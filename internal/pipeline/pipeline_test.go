package pipeline

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/relabs-tech/tilt_computer/internal/imu"
	"github.com/relabs-tech/tilt_computer/internal/orientation"
)

// stubBus serves a fixed calibration baseline, then queued live samples.
type stubBus struct {
	baseline imu.RawSample
	calReads int
	live     []imu.RawSample
	liveErr  error
	reads    int
}

func (b *stubBus) ReadRaw() (imu.RawSample, error) {
	b.reads++
	if b.reads <= b.calReads {
		return b.baseline, nil
	}
	if b.liveErr != nil {
		return imu.RawSample{}, b.liveErr
	}
	s := b.live[0]
	if len(b.live) > 1 {
		b.live = b.live[1:]
	}
	return s, nil
}

var level = imu.RawSample{Ax: 0, Ay: 0, Az: 16384, Temp: 300}

func calibratedState(t *testing.T, bus *stubBus) *State {
	t.Helper()
	st := NewState(imu.DefaultScaleConfig())
	test.That(t, st.Calibrate(bus), test.ShouldBeNil)
	return st
}

func TestEndToEndLevelDevice(t *testing.T) {
	bus := &stubBus{baseline: level, calReads: 1000, live: []imu.RawSample{level}}
	st := calibratedState(t, bus)

	bias, ok := st.Bias()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, bias, test.ShouldResemble, imu.BiasVector{Az: 32768, Temp: 300})

	rec, err := st.RunCycle(bus)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bus.reads, test.ShouldEqual, 1001)

	test.That(t, rec.Ax, test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, rec.Ay, test.ShouldAlmostEqual, 0.0, 1e-9)
	// the resting gravity offset leaves exactly +1 g on Z
	test.That(t, rec.Az, test.ShouldAlmostEqual, imu.StandardGravity, 1e-9)
	test.That(t, rec.Roll, test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, rec.Pitch, test.ShouldAlmostEqual, 0.0, 1e-9)
}

func TestRunCycleIsIdempotent(t *testing.T) {
	live := imu.RawSample{Ax: 1200, Ay: -800, Az: 15000, Temp: 310, Gx: 4, Gy: -2, Gz: 1}
	bus := &stubBus{baseline: level, calReads: 1000, live: []imu.RawSample{live}}
	st := calibratedState(t, bus)

	a, err := st.RunCycle(bus)
	test.That(t, err, test.ShouldBeNil)
	b, err := st.RunCycle(bus)
	test.That(t, err, test.ShouldBeNil)

	fa, fb := a.Fields(), b.Fields()
	for i := range fa {
		test.That(t, math.Float64bits(fa[i]), test.ShouldEqual, math.Float64bits(fb[i]))
	}
}

func TestRunCycleBeforeCalibration(t *testing.T) {
	bus := &stubBus{live: []imu.RawSample{level}}
	st := NewState(imu.DefaultScaleConfig())

	_, err := st.RunCycle(bus)
	test.That(t, err, test.ShouldEqual, imu.ErrUncalibrated)
	test.That(t, imu.IsUncalibrated(err), test.ShouldBeTrue)
	test.That(t, imu.IsTransient(err), test.ShouldBeFalse)
	test.That(t, bus.reads, test.ShouldEqual, 0)
}

func TestCalibrateOnlyOnce(t *testing.T) {
	bus := &stubBus{baseline: level, calReads: 2000}
	st := calibratedState(t, bus)
	first, _ := st.Bias()

	err := st.Calibrate(bus)
	test.That(t, err, test.ShouldEqual, ErrAlreadyCalibrated)
	second, _ := st.Bias()
	test.That(t, second, test.ShouldResemble, first)
	test.That(t, bus.reads, test.ShouldEqual, 1000)
}

type failingReader struct {
	okReads int
	reads   int
}

func (f *failingReader) ReadRaw() (imu.RawSample, error) {
	f.reads++
	if f.reads > f.okReads {
		return imu.RawSample{}, &imu.BusError{Addr: 0x68, Register: 0x3B, Op: "read_block", Err: errors.New("nack")}
	}
	return level, nil
}

func TestFailedCalibrationLeavesStateUncalibrated(t *testing.T) {
	st := NewState(imu.DefaultScaleConfig())
	err := st.Calibrate(&failingReader{okReads: 10})
	test.That(t, imu.IsTransient(err), test.ShouldBeTrue)
	test.That(t, st.Calibrated(), test.ShouldBeFalse)

	_, err = st.RunCycle(&failingReader{okReads: 10})
	test.That(t, imu.IsUncalibrated(err), test.ShouldBeTrue)

	// a later attempt may succeed
	test.That(t, st.Calibrate(&failingReader{okReads: 1000}), test.ShouldBeNil)
	test.That(t, st.Calibrated(), test.ShouldBeTrue)
}

func TestRunCycleReadFailure(t *testing.T) {
	bus := &stubBus{baseline: level, calReads: 1000, liveErr: &imu.BusError{Op: "read_block", Err: errors.New("nack")}}
	st := calibratedState(t, bus)

	_, err := st.RunCycle(bus)
	test.That(t, imu.IsTransient(err), test.ShouldBeTrue)
	test.That(t, imu.IsEstimation(err), test.ShouldBeFalse)
	var acq *imu.AcquisitionError
	test.That(t, errors.As(err, &acq), test.ShouldBeTrue)
	test.That(t, acq.Phase, test.ShouldEqual, "cycle")
}

func TestDegenerateSampleDoesNotCorruptState(t *testing.T) {
	// corrected accel of zero: raw equals bias on x, y, z
	degenerate := imu.RawSample{Az: 32767, Temp: 300}
	bus := &stubBus{baseline: imu.RawSample{Az: 16383, Temp: 300}, calReads: 1000}
	st := calibratedState(t, bus)
	bias, _ := st.Bias()
	test.That(t, bias.Az, test.ShouldEqual, int32(32767))

	bus.live = []imu.RawSample{degenerate, imu.RawSample{Az: 16383, Temp: 300}}
	rec, err := st.RunCycle(bus)
	test.That(t, imu.IsEstimation(err), test.ShouldBeTrue)
	test.That(t, imu.IsTransient(err), test.ShouldBeFalse)
	test.That(t, rec, test.ShouldResemble, imu.OutputRecord{})

	after, ok := st.Bias()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, after, test.ShouldResemble, bias)

	rec, err = st.RunCycle(bus)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.IsNaN(rec.Roll), test.ShouldBeFalse)
	test.That(t, rec.Az, test.ShouldAlmostEqual, imu.StandardGravity, 1e-9)
}

func TestRunCycleDetailed(t *testing.T) {
	live := imu.RawSample{Ax: 0, Ay: 0, Az: 16384, Temp: 340, Gx: 16384 + 65, Gy: 65, Gz: 65 - 16384}
	bus := &stubBus{baseline: imu.RawSample{Az: 16384, Temp: 0, Gx: 65, Gy: 65, Gz: 65}, calReads: 1000, live: []imu.RawSample{live}}
	st := calibratedState(t, bus)

	c, err := st.RunCycleDetailed(bus)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Raw, test.ShouldResemble, live)
	test.That(t, c.Corrected.Gx, test.ShouldEqual, int32(16384))
	test.That(t, c.GyroDPS[0], test.ShouldEqual, 250.0)
	test.That(t, c.GyroDPS[1], test.ShouldEqual, 0.0)
	test.That(t, c.GyroDPS[2], test.ShouldEqual, -250.0)
	test.That(t, c.TemperatureC, test.ShouldAlmostEqual, 37.53, 1e-9)
}

func TestTiltedCycleReportsDegrees(t *testing.T) {
	tilted := imu.RawSample{Ax: 8192, Ay: -4096, Az: 12000}
	for _, tc := range []struct {
		name string
		est  Estimator
	}{
		{"acos", orientation.Estimate},
		{"atan2", orientation.EstimateAtan2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			bus := &stubBus{baseline: level, calReads: 1000, live: []imu.RawSample{tilted}}
			st := calibratedState(t, bus)
			st.SetEstimator(tc.est)
			bias, ok := st.Bias()
			test.That(t, ok, test.ShouldBeTrue)

			want, err := orientation.Estimate(imu.Correct(tilted, bias))
			test.That(t, err, test.ShouldBeNil)
			want = want.Degrees()

			rec, err := st.RunCycle(bus)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, rec.Roll, test.ShouldAlmostEqual, want.Roll, 1e-9)
			test.That(t, rec.Pitch, test.ShouldAlmostEqual, want.Pitch, 1e-9)
			test.That(t, rec.Roll, test.ShouldBeGreaterThan, 0.0)
			test.That(t, rec.Pitch, test.ShouldBeGreaterThan, 0.0)
		})
	}
}
