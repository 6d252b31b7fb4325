package sensors

import (
	"fmt"
	"testing"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/relabs-tech/tilt_computer/internal/imu"
)

// recordingBus is a register file that logs every transfer.
type recordingBus struct {
	regs    map[byte]byte
	block   []byte
	ops     []string
	failReg map[byte]error
}

func newRecordingBus() *recordingBus {
	return &recordingBus{regs: map[byte]byte{}, failReg: map[byte]error{}}
}

func (b *recordingBus) WriteRegister(addr uint16, reg, value byte) error {
	b.ops = append(b.ops, fmt.Sprintf("w %02X %02X=%02X", addr, reg, value))
	if err := b.failReg[reg]; err != nil {
		return busErr(addr, reg, "write", err)
	}
	b.regs[reg] = value
	return nil
}

func (b *recordingBus) ReadRegister(addr uint16, reg byte) (byte, error) {
	b.ops = append(b.ops, fmt.Sprintf("r %02X %02X", addr, reg))
	if err := b.failReg[reg]; err != nil {
		return 0, busErr(addr, reg, "read", err)
	}
	return b.regs[reg], nil
}

func (b *recordingBus) ReadBlock(addr uint16, reg byte, n int) ([]byte, error) {
	b.ops = append(b.ops, fmt.Sprintf("b %02X %02X %d", addr, reg, n))
	if err := b.failReg[reg]; err != nil {
		return nil, busErr(addr, reg, "read_block", err)
	}
	return b.block, nil
}

func TestMPU6050InitSequence(t *testing.T) {
	logger := golog.NewTestLogger(t)
	bus := newRecordingBus()
	bus.regs[RegAccelConfig] = 0xFF
	bus.regs[RegGyroConfig] = 0xFF

	dev := NewMPU6050(bus, DefaultAddress, logger)
	err := dev.Init(imu.DefaultScaleConfig())
	test.That(t, err, test.ShouldBeNil)

	test.That(t, bus.ops, test.ShouldResemble, []string{
		"w 68 6B=00",
		"r 68 1C",
		"w 68 1C=E7",
		"r 68 1B",
		"w 68 1B=EF",
	})
}

func TestMPU6050InitPreservesOtherBits(t *testing.T) {
	bus := newRecordingBus()
	bus.regs[RegAccelConfig] = 0xE0 // self-test bits set, range 0
	dev := NewMPU6050(bus, DefaultAddress, golog.NewTestLogger(t))

	sc := imu.DefaultScaleConfig()
	sc.AccelRange = 3
	sc.GyroRange = 2
	test.That(t, dev.Init(sc), test.ShouldBeNil)
	test.That(t, bus.regs[RegAccelConfig], test.ShouldEqual, byte(0xF8))
	test.That(t, bus.regs[RegGyroConfig], test.ShouldEqual, byte(0x10))
}

func TestMPU6050InitFailure(t *testing.T) {
	bus := newRecordingBus()
	bus.failReg[RegPwrMgmt1] = errors.New("nack")
	dev := NewMPU6050(bus, DefaultAddress, golog.NewTestLogger(t))

	err := dev.Init(imu.DefaultScaleConfig())
	test.That(t, err, test.ShouldNotBeNil)
	var be *imu.BusError
	test.That(t, errors.As(err, &be), test.ShouldBeTrue)
	test.That(t, be.Register, test.ShouldEqual, RegPwrMgmt1)
	test.That(t, len(bus.ops), test.ShouldEqual, 1)
}

func TestMPU6050ReadRaw(t *testing.T) {
	bus := newRecordingBus()
	bus.block = []byte{0, 1, 0, 2, 0x40, 0, 0, 4, 0xFF, 0xFF, 0, 6, 0, 7}
	dev := NewMPU6050(bus, DefaultAddress, golog.NewTestLogger(t))

	s, err := dev.ReadRaw()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s, test.ShouldResemble, imu.RawSample{Ax: 1, Ay: 2, Az: 16384, Temp: 4, Gx: -1, Gy: 6, Gz: 7})
	test.That(t, bus.ops, test.ShouldResemble, []string{"b 68 3B 14"})

	bus.block = bus.block[:10]
	_, err = dev.ReadRaw()
	var be *imu.BusError
	test.That(t, errors.As(err, &be), test.ShouldBeTrue)

	bus.failReg[RegAccelXoutH] = errors.New("timeout")
	_, err = dev.ReadRaw()
	test.That(t, errors.As(err, &be), test.ShouldBeTrue)
	test.That(t, be.Op, test.ShouldEqual, "read_block")
}

func TestMPU6050Sleep(t *testing.T) {
	bus := newRecordingBus()
	dev := NewMPU6050(bus, DefaultAddress, golog.NewTestLogger(t))
	test.That(t, dev.Sleep(), test.ShouldBeNil)
	test.That(t, bus.regs[RegPwrMgmt1], test.ShouldEqual, byte(0x40))
}

func TestReadAllRegisters(t *testing.T) {
	bus := newRecordingBus()
	bus.regs[RegWhoAmI] = 0x68
	bus.failReg[RegIntStatus] = errors.New("nack")
	dev := NewMPU6050(bus, DefaultAddress, golog.NewTestLogger(t))

	regs, err := dev.ReadAllRegisters()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, regs[RegWhoAmI], test.ShouldEqual, byte(0x68))
	_, ok := regs[RegIntStatus]
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, len(regs), test.ShouldEqual, len(RegisterMap())-1)
}

func TestSimBusFollowsRegisterProtocol(t *testing.T) {
	sim := NewSimBus(DefaultAddress, imu.RawSample{}, 0, 1)
	dev := NewMPU6050(sim, DefaultAddress, golog.NewTestLogger(t))

	// asleep until woken
	s, err := dev.ReadRaw()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s, test.ShouldResemble, imu.RawSample{})

	test.That(t, dev.Init(imu.DefaultScaleConfig()), test.ShouldBeNil)
	s, err = dev.ReadRaw()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Ax, test.ShouldEqual, int32(0))
	test.That(t, s.Ay, test.ShouldEqual, int32(0))
	test.That(t, s.Az, test.ShouldEqual, int32(16384))

	id, err := dev.WhoAmI()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id, test.ShouldEqual, byte(0x68))

	_, err = sim.ReadRegister(AlternateAddress, RegWhoAmI)
	var be *imu.BusError
	test.That(t, errors.As(err, &be), test.ShouldBeTrue)
}

func TestSimBusNoiseBounded(t *testing.T) {
	offset := imu.RawSample{Ax: 50, Gx: -20}
	sim := NewSimBus(DefaultAddress, offset, 5, 42)
	dev := NewMPU6050(sim, DefaultAddress, golog.NewTestLogger(t))
	test.That(t, dev.Init(imu.DefaultScaleConfig()), test.ShouldBeNil)

	for i := 0; i < 200; i++ {
		s, err := dev.ReadRaw()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s.Ax, test.ShouldAlmostEqual, 50, 5)
		test.That(t, s.Gx, test.ShouldAlmostEqual, -20, 5)
	}
}

func TestSimBusTilt(t *testing.T) {
	sim := NewSimBus(DefaultAddress, imu.RawSample{}, 0, 1)
	dev := NewMPU6050(sim, DefaultAddress, golog.NewTestLogger(t))
	test.That(t, dev.Init(imu.DefaultScaleConfig()), test.ShouldBeNil)

	sim.SetTilt(90, 0)
	s, err := dev.ReadRaw()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Ay, test.ShouldEqual, int32(-16384))
	test.That(t, s.Az, test.ShouldEqual, int32(0))
}

func TestSimBusTemperature(t *testing.T) {
	sim := NewSimBus(DefaultAddress, imu.RawSample{}, 0, 1)
	dev := NewMPU6050(sim, DefaultAddress, golog.NewTestLogger(t))
	test.That(t, dev.Init(imu.DefaultScaleConfig()), test.ShouldBeNil)

	s, err := dev.ReadRaw()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Temp, test.ShouldEqual, int32(-3920))
	test.That(t, imu.DefaultScaleConfig().Temperature(s.Temp), test.ShouldAlmostEqual, simTempC, 0.01)
}
