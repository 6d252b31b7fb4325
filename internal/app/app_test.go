package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/relabs-tech/tilt_computer/internal/calibration"
	"github.com/relabs-tech/tilt_computer/internal/config"
	"github.com/relabs-tech/tilt_computer/internal/imu"
	"github.com/relabs-tech/tilt_computer/internal/pipeline"
	"github.com/relabs-tech/tilt_computer/internal/sensors"
)

type queueReader struct {
	samples []imu.RawSample
	errs    []error
	i       int
}

func (q *queueReader) ReadRaw() (imu.RawSample, error) {
	i := q.i
	q.i++
	if i < len(q.errs) && q.errs[i] != nil {
		return imu.RawSample{}, q.errs[i]
	}
	return q.samples[i%len(q.samples)], nil
}

type recordingSink struct {
	mu   sync.Mutex
	recs []imu.OutputRecord
	err  error
}

func (s *recordingSink) Emit(rec imu.OutputRecord, _ imu.RawSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return s.err
}

func (s *recordingSink) Close() error { return nil }

func calibratedState(t *testing.T) *pipeline.State {
	t.Helper()
	sc := imu.DefaultScaleConfig()
	sc.CalibrationSamples = 10
	st := pipeline.NewState(sc)
	test.That(t, st.Calibrate(&queueReader{samples: []imu.RawSample{{Az: 16384}}}), test.ShouldBeNil)
	return st
}

func TestStepEmitsStampedRecord(t *testing.T) {
	logger := golog.NewTestLogger(t)
	st := calibratedState(t)
	sink := &recordingSink{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := step(st, &queueReader{samples: []imu.RawSample{{Az: 16384}}}, sink, now, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sink.recs, test.ShouldHaveLength, 1)
	test.That(t, sink.recs[0].Time, test.ShouldEqual, now)
	test.That(t, sink.recs[0].Az, test.ShouldAlmostEqual, imu.StandardGravity, 1e-9)

	// a failing sink does not stop the loop
	sink.err = errors.New("broker down")
	err = step(st, &queueReader{samples: []imu.RawSample{{Az: 16384}}}, sink, now, logger)
	test.That(t, err, test.ShouldBeNil)
}

func TestStepSkipsRecoverableErrors(t *testing.T) {
	logger := golog.NewTestLogger(t)
	st := calibratedState(t)
	sink := &recordingSink{}

	readFail := &queueReader{
		samples: []imu.RawSample{{Az: 16384}},
		errs:    []error{&imu.BusError{Addr: 0x68, Register: 0x3B, Op: "read_block", Err: errors.New("nack")}},
	}
	test.That(t, step(st, readFail, sink, time.Now(), logger), test.ShouldBeNil)

	// raw equal to the bias leaves a zero accel vector
	degenerate := &queueReader{samples: []imu.RawSample{{Az: 32768}}}
	test.That(t, step(st, degenerate, sink, time.Now(), logger), test.ShouldBeNil)
	test.That(t, sink.recs, test.ShouldHaveLength, 0)
}

func TestStepStopsWhenUncalibrated(t *testing.T) {
	st := pipeline.NewState(imu.DefaultScaleConfig())
	err := step(st, &queueReader{samples: []imu.RawSample{{Az: 1}}}, &recordingSink{}, time.Now(), golog.NewTestLogger(t))
	test.That(t, imu.IsUncalibrated(err), test.ShouldBeTrue)
}

// cancelAfter cancels ctx once n lines have been written.
type cancelAfter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	n      int
	cancel context.CancelFunc
}

func (c *cancelAfter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.buf.Write(p)
	if strings.Count(c.buf.String(), "\n") >= c.n {
		c.cancel()
	}
	return n, err
}

func mockConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.IMUMock = true
	cfg.CalibrationSamples = 200
	cfg.IMUSampleInterval = 1
	cfg.CalibrationOutput = filepath.Join(t.TempDir(), "out", "cal.json")
	return cfg
}

func TestRunConsoleWithSimulator(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out := &cancelAfter{n: 3, cancel: cancel}

	err := RunConsole(ctx, mockConfig(t), out, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	out.mu.Lock()
	defer out.mu.Unlock()
	lines := strings.Split(strings.TrimSpace(out.buf.String()), "\n")
	test.That(t, len(lines), test.ShouldBeGreaterThanOrEqualTo, 3)
	test.That(t, lines[0], test.ShouldContainSubstring, "ROLL=")
	test.That(t, lines[0], test.ShouldContainSubstring, "PITCH=")
}

func TestRunCalibrationWritesReport(t *testing.T) {
	cfg := mockConfig(t)
	var out bytes.Buffer

	err := RunCalibration(cfg, strings.NewReader("\n"), &out, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "press ENTER")
	test.That(t, out.String(), test.ShouldContainSubstring, "bias:")

	data, err := os.ReadFile(cfg.CalibrationOutput)
	test.That(t, err, test.ShouldBeNil)
	var rep CalibrationReport
	test.That(t, json.Unmarshal(data, &rep), test.ShouldBeNil)
	test.That(t, rep.SchemaVersion, test.ShouldEqual, reportSchemaVersion)
	test.That(t, rep.Samples, test.ShouldEqual, 200)
	test.That(t, rep.Device, test.ShouldEqual, "mpu6050@0x68")
	test.That(t, rep.Bias.Ax, test.ShouldAlmostEqual, mockOffset.Ax, mockNoise)
	test.That(t, rep.Bias.Az, test.ShouldAlmostEqual, 2*16384+mockOffset.Az, mockNoise)
}

func TestCalibrationReportNotes(t *testing.T) {
	sc := imu.DefaultScaleConfig()
	st := calibration.Stats{Samples: 10, Stillness: 0.2}
	st.Min[2], st.Max[2] = 15000, 18000

	rep := newCalibrationReport(time.Unix(0, 0), 0x69, sc, imu.BiasVector{}, st)
	test.That(t, rep.Device, test.ShouldEqual, "mpu6050@0x69")
	test.That(t, rep.Notes, test.ShouldHaveLength, 2)

	st = calibration.Stats{Samples: 10, Stillness: 1}
	rep = newCalibrationReport(time.Unix(0, 0), 0x68, sc, imu.BiasVector{}, st)
	test.That(t, rep.Notes, test.ShouldBeEmpty)
}

func TestFormatRecord(t *testing.T) {
	s := formatRecord(imu.OutputRecord{Ax: 0.5, Ay: -0.25, Az: 9.80665, Roll: 12.345, Pitch: -1})
	test.That(t, s, test.ShouldEqual, "AX=  0.500  AY= -0.250  AZ=  9.807  ROLL=  12.35  PITCH=  -1.00")
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return true }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func TestRecordHandler(t *testing.T) {
	var got []imu.OutputRecord
	h := recordHandler(golog.NewTestLogger(t), func(rec imu.OutputRecord) { got = append(got, rec) })

	h(nil, &fakeMessage{topic: "tilt/output", payload: []byte(`{"ax":1,"ay":2,"az":3,"roll":4,"pitch":5}`)})
	h(nil, &fakeMessage{topic: "tilt/output", payload: []byte(`not json`)})

	test.That(t, got, test.ShouldHaveLength, 1)
	test.That(t, got[0].Fields(), test.ShouldResemble, [5]float64{1, 2, 3, 4, 5})
}

func TestWebAPIAndStream(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cache := newRecordCache()
	srv := httptest.NewServer(newWebMux(cache, t.TempDir(), logger))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/output")
	test.That(t, err, test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusServiceUnavailable)

	first := imu.OutputRecord{Az: 9.8, Roll: 1}
	cache.Update(first)

	resp, err = http.Get(srv.URL + "/api/output")
	test.That(t, err, test.ShouldBeNil)
	var rec imu.OutputRecord
	test.That(t, json.NewDecoder(resp.Body).Decode(&rec), test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, rec, test.ShouldResemble, first)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	test.That(t, err, test.ShouldBeNil)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	test.That(t, conn.ReadJSON(&rec), test.ShouldBeNil)
	test.That(t, rec, test.ShouldResemble, first)

	second := imu.OutputRecord{Az: 9.7, Pitch: -3}
	cache.Update(second)
	test.That(t, conn.ReadJSON(&rec), test.ShouldBeNil)
	test.That(t, rec, test.ShouldResemble, second)
}

func TestRecordCacheDropsForSlowSubscribers(t *testing.T) {
	cache := newRecordCache()
	ch, release := cache.Subscribe()
	for i := 0; i < 20; i++ {
		cache.Update(imu.OutputRecord{Roll: float64(i)})
	}
	test.That(t, len(ch), test.ShouldEqual, cap(ch))
	rec, ok := cache.Latest()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, rec.Roll, test.ShouldEqual, 19.0)

	release()
	cache.Update(imu.OutputRecord{})
	test.That(t, len(ch), test.ShouldEqual, cap(ch))
}

func newDebugger(t *testing.T) *RegisterDebugger {
	t.Helper()
	sim := sensors.NewSimBus(sensors.DefaultAddress, imu.RawSample{}, 0, 1)
	dev := sensors.NewMPU6050(sim, sensors.DefaultAddress, golog.NewTestLogger(t))
	ranges, err := config.ParseRegisterRanges("0x19-0x1C,0x6B-0x6C")
	test.That(t, err, test.ShouldBeNil)
	d := NewRegisterDebugger(dev, ranges, golog.NewTestLogger(t))
	d.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return d
}

func TestRegisterDebuggerCommands(t *testing.T) {
	d := newDebugger(t)

	resp := d.Handle(RegisterCommand{Action: "read", Address: "0x75"})
	test.That(t, resp.Type, test.ShouldEqual, "register_data")
	test.That(t, resp.Value, test.ShouldEqual, "0x68")

	resp = d.Handle(RegisterCommand{Action: "write", Address: "0x1C", Value: "0x08"})
	test.That(t, resp.Type, test.ShouldEqual, "register_data")
	test.That(t, resp.Message, test.ShouldEqual, "write successful")
	resp = d.Handle(RegisterCommand{Action: "read", Address: "28"})
	test.That(t, resp.Value, test.ShouldEqual, "0x08")

	resp = d.Handle(RegisterCommand{Action: "write", Address: "0x75", Value: "0x00"})
	test.That(t, resp.Type, test.ShouldEqual, "error")
	test.That(t, resp.Message, test.ShouldContainSubstring, "not in allowed write ranges")

	resp = d.Handle(RegisterCommand{Action: "read", Address: "0x1FF"})
	test.That(t, resp.Type, test.ShouldEqual, "error")

	resp = d.Handle(RegisterCommand{Action: "write", Address: "0x1C", Value: "zz"})
	test.That(t, resp.Message, test.ShouldContainSubstring, "invalid value")

	resp = d.Handle(RegisterCommand{Action: "reboot"})
	test.That(t, resp.Message, test.ShouldEqual, "unknown action: reboot")

	resp = d.Handle(RegisterCommand{Action: "read_all"})
	test.That(t, resp.Registers["0x75"], test.ShouldEqual, "0x68")
	test.That(t, len(resp.Registers), test.ShouldEqual, len(sensors.RegisterMap()))

	resp = d.Handle(RegisterCommand{Action: "export_config"})
	test.That(t, resp.Type, test.ShouldEqual, "export_config")
	test.That(t, resp.Message, test.ShouldEqual, "mpu6050_20260102_030405_registers.json")
	test.That(t, resp.Config.Device, test.ShouldEqual, "mpu6050")
	test.That(t, resp.Config.Registers["0x1C"], test.ShouldEqual, "0x08")
}

func TestRegisterDebuggerWebsocket(t *testing.T) {
	srv := httptest.NewServer(newDebugger(t))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	test.That(t, err, test.ShouldBeNil)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var resp RegisterResponse
	test.That(t, conn.ReadJSON(&resp), test.ShouldBeNil)
	test.That(t, resp.Type, test.ShouldEqual, "register_map")
	test.That(t, resp.RegisterMap, test.ShouldHaveLength, len(sensors.RegisterMap()))

	test.That(t, conn.WriteJSON(RegisterCommand{Action: "read", Address: "0x75"}), test.ShouldBeNil)
	resp = RegisterResponse{}
	test.That(t, conn.ReadJSON(&resp), test.ShouldBeNil)
	test.That(t, resp.Value, test.ShouldEqual, "0x68")
}

func litBytes(pix []byte) int {
	n := 0
	for _, b := range pix {
		if b != 0 {
			n++
		}
	}
	return n
}

func TestRenderRecord(t *testing.T) {
	waiting := renderRecord(imu.OutputRecord{}, false)
	live := renderRecord(imu.OutputRecord{Ax: 1, Az: 9.8, Roll: -10, Pitch: 3}, true)
	test.That(t, waiting.Bounds().Dx(), test.ShouldEqual, displayW)
	test.That(t, waiting.Bounds().Dy(), test.ShouldEqual, displayH)
	test.That(t, litBytes(waiting.Pix), test.ShouldBeGreaterThan, 0)
	test.That(t, litBytes(live.Pix), test.ShouldBeGreaterThan, litBytes(waiting.Pix))
	test.That(t, litBytes(renderSplash().Pix), test.ShouldBeGreaterThan, 0)
}

func TestSplashWaitsForProducer(t *testing.T) {
	var text []string
	for _, l := range splashLines {
		text = append(text, l.s)
		// basicfont glyphs are 7px wide
		test.That(t, l.x+7*len(l.s), test.ShouldBeLessThanOrEqualTo, displayW)
		test.That(t, l.y, test.ShouldBeLessThanOrEqualTo, displayH)
	}
	joined := strings.Join(text, " ")
	test.That(t, joined, test.ShouldContainSubstring, "Waiting for producer")
	test.That(t, strings.Contains(joined, "Calibrat"), test.ShouldBeFalse)
	test.That(t, litBytes(renderSplash().Pix), test.ShouldBeGreaterThan, 0)
}
