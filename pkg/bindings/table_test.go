package bindings

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mbalug7/go-longfi-board/pkg/hal"
)

type fakeLine struct {
	value   int
	history []int
	err     error
}

func (obj *fakeLine) SetValue(value int) error {
	if obj.err != nil {
		return obj.err
	}
	obj.value = value
	obj.history = append(obj.history, value)
	return nil
}

func (obj *fakeLine) Value() (int, error) {
	return obj.value, obj.err
}

type fakeTransport struct {
	sent  []byte
	reply byte
	block chan struct{}
}

func (obj *fakeTransport) Exchange(out byte) (byte, error) {
	if obj.block != nil {
		<-obj.block
	}
	obj.sent = append(obj.sent, out)
	return obj.reply, nil
}

type fakeRNG struct {
	calls  []string
	sample uint32
}

func (obj *fakeRNG) Enable() error {
	obj.calls = append(obj.calls, "enable")
	return nil
}

func (obj *fakeRNG) Wait() error {
	obj.calls = append(obj.calls, "wait")
	return nil
}

func (obj *fakeRNG) Take() (uint32, error) {
	obj.calls = append(obj.calls, "take")
	obj.sample++
	return obj.sample, nil
}

func (obj *fakeRNG) Disable() error {
	obj.calls = append(obj.calls, "disable")
	return nil
}

func mustPanicWith(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("expected panic with %v", target)
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, target) {
			t.Fatalf("expected panic with %v, got %v", target, r)
		}
	}()
	fn()
}

func leased(t *testing.T, opts ...Option) *Table {
	t.Helper()
	table := NewTable(opts...)
	release := table.Lease()
	t.Cleanup(release)
	return table
}

func TestTransportExchange_Unpopulated(t *testing.T) {
	table := leased(t)
	mustPanicWith(t, hal.ErrSlotUnpopulated, func() {
		table.TransportExchange(0xAA)
	})
}

func TestCapabilities_UnpopulatedSlots(t *testing.T) {
	table := leased(t)
	calls := map[string]func(){
		"reset":   func() { table.Reset(true) },
		"nss":     func() { table.ChipSelect(true) },
		"random":  func() { table.RandomBits(32) },
		"antenna": func() { table.SetAntennaMode(hal.AntModeRx, 0) },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			mustPanicWith(t, hal.ErrSlotUnpopulated, call)
		})
	}
}

func TestTransportExchange(t *testing.T) {
	table := leased(t)
	tr := &fakeTransport{reply: 0x55}
	if err := table.InstallTransport(tr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := table.TransportExchange(0xAA); got != 0x55 {
		t.Fatalf("expected 0x55, got 0x%02X", got)
	}
	if len(tr.sent) != 1 || tr.sent[0] != 0xAA {
		t.Fatalf("unexpected sent bytes %v", tr.sent)
	}
}

func TestTransportExchange_Timeout(t *testing.T) {
	table := leased(t, WithExchangeTimeout(10*time.Millisecond))
	tr := &fakeTransport{block: make(chan struct{})}
	defer close(tr.block)
	table.InstallTransport(tr)
	mustPanicWith(t, hal.ErrHardwareTimeout, func() {
		table.TransportExchange(0x01)
	})
}

func TestInstall_Twice(t *testing.T) {
	table := NewTable()
	if err := table.InstallReset(&fakeLine{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := table.InstallReset(&fakeLine{}); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
}

func TestLease(t *testing.T) {
	table := NewTable()
	table.InstallChipSelect(&fakeLine{})
	mustPanicWith(t, hal.ErrNotLeased, func() {
		table.ChipSelect(true)
	})

	release := table.Lease()
	mustPanicWith(t, ErrLeaseHeld, func() {
		table.Lease()
	})
	table.ChipSelect(true)
	release()
	release()
	if table.Leased() {
		t.Fatalf("lease should be released")
	}
	table.Lease()()
}

func TestReset_Polarity(t *testing.T) {
	line := &fakeLine{}
	table := leased(t)
	table.InstallReset(line)
	table.Reset(true)
	if line.value != 0 {
		t.Fatalf("active-low reset must drive line low")
	}
	table.Reset(false)
	if line.value != 1 {
		t.Fatalf("released reset must drive line high")
	}

	line = &fakeLine{}
	table = NewTable(WithResetActiveHigh())
	defer table.Lease()()
	table.InstallReset(line)
	table.Reset(true)
	if line.value != 1 {
		t.Fatalf("active-high reset must drive line high")
	}
}

func TestChipSelect_FollowsLevel(t *testing.T) {
	line := &fakeLine{}
	table := leased(t)
	table.InstallChipSelect(line)
	table.ChipSelect(false)
	table.ChipSelect(true)
	if fmt.Sprint(line.history) != "[0 1]" {
		t.Fatalf("unexpected history %v", line.history)
	}
}

func TestRandomBits_FullCyclePerCall(t *testing.T) {
	rng := &fakeRNG{}
	table := leased(t)
	table.InstallRandom(rng)
	a := table.RandomBits(8)
	b := table.RandomBits(32)
	if a == b {
		t.Fatalf("expected two samples")
	}
	want := "[enable wait take disable enable wait take disable]"
	if fmt.Sprint(rng.calls) != want {
		t.Fatalf("expected %s, got %v", want, rng.calls)
	}
}

func TestBusyPoll(t *testing.T) {
	table := leased(t)
	if !table.BusyPoll() {
		t.Fatalf("missing busy line must read as busy")
	}
	busy := &fakeLine{value: 0}
	table.InstallBusy(busy)
	if table.BusyPoll() {
		t.Fatalf("expected not busy")
	}
	busy.value = 1
	if !table.BusyPoll() {
		t.Fatalf("expected busy")
	}
}

func TestBusyPoll_Fault(t *testing.T) {
	table := leased(t)
	table.InstallBusy(&fakeLine{err: errors.New("line gone")})
	mustPanicWith(t, hal.ErrHardwareFault, func() {
		table.BusyPoll()
	})
}

func TestDelayMs(t *testing.T) {
	var slept time.Duration
	table := leased(t, WithSleeper(func(d time.Duration) { slept += d }))
	table.DelayMs(25)
	if slept != 25*time.Millisecond {
		t.Fatalf("unexpected delay %s", slept)
	}
}

func TestReducePower(t *testing.T) {
	if got := leased(t).ReducePower(22); got != 22 {
		t.Fatalf("default policy must pass through, got %d", got)
	}
	if got := leased(t, WithPowerPolicy(Ceiling(17))).ReducePower(5); got != 17 {
		t.Fatalf("ceiling policy must answer 17, got %d", got)
	}
	clamp := leased(t, WithPowerPolicy(Clamp(14)))
	if clamp.ReducePower(20) != 14 || clamp.ReducePower(10) != 10 {
		t.Fatalf("clamp policy misbehaves")
	}
}

func TestSetBoardTcxo(t *testing.T) {
	if leased(t).SetBoardTcxo(5000) {
		t.Fatalf("board has no tcxo")
	}
}
