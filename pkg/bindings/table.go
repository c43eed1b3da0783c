package bindings

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mbalug7/go-longfi-board/pkg/hal"
)

var (
	ErrSlotTaken = errors.New("hardware slot already populated")
	ErrLeaseHeld = errors.New("capability table already leased")
)

// Sleeper blocks the calling task for the given duration.
type Sleeper func(d time.Duration)

type Option func(*Table)

// WithResetActiveHigh flips the reset polarity, by default asserting reset drives the line low.
func WithResetActiveHigh() Option {
	return func(obj *Table) {
		obj.resetActiveLow = false
	}
}

// WithExchangeTimeout bounds every transport exchange. Zero waits forever.
func WithExchangeTimeout(timeout time.Duration) Option {
	return func(obj *Table) {
		obj.exchangeTimeout = timeout
	}
}

func WithPowerPolicy(policy PowerPolicy) Option {
	return func(obj *Table) {
		obj.power = policy
	}
}

func WithSleeper(sleep Sleeper) Option {
	return func(obj *Table) {
		obj.sleep = sleep
	}
}

// Table is the capability table handed to the radio engine. It owns every hardware handle slot.
// Slots are populated once during bring-up and never reassigned.
type Table struct {
	muSlots   sync.Mutex // guards installation only
	transport hal.Transport
	nss       hal.OutputLine
	reset     hal.OutputLine
	busy      hal.InputLine
	rng       hal.RandomSource
	antenna   AntennaSwitch

	antMode         hal.AntennaMode
	resetActiveLow  bool
	exchangeTimeout time.Duration
	power           PowerPolicy
	sleep           Sleeper
	leased          atomic.Bool
}

var _ hal.Capabilities = (*Table)(nil)

func NewTable(opts ...Option) *Table {
	t := &Table{
		antMode:        hal.AntModeSleep,
		resetActiveLow: true,
		power:          PassThrough{},
		sleep:          time.Sleep,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (obj *Table) install(name string, populated bool, set func()) error {
	obj.muSlots.Lock()
	defer obj.muSlots.Unlock()
	if populated {
		return fmt.Errorf("failed to install %s: %w", name, ErrSlotTaken)
	}
	set()
	return nil
}

func (obj *Table) InstallTransport(t hal.Transport) error {
	return obj.install("transport", obj.transport != nil, func() { obj.transport = t })
}

func (obj *Table) InstallChipSelect(l hal.OutputLine) error {
	return obj.install("chip select", obj.nss != nil, func() { obj.nss = l })
}

func (obj *Table) InstallReset(l hal.OutputLine) error {
	return obj.install("reset", obj.reset != nil, func() { obj.reset = l })
}

func (obj *Table) InstallBusy(l hal.InputLine) error {
	return obj.install("busy", obj.busy != nil, func() { obj.busy = l })
}

func (obj *Table) InstallRandom(r hal.RandomSource) error {
	return obj.install("random source", obj.rng != nil, func() { obj.rng = r })
}

func (obj *Table) InstallAntenna(a AntennaSwitch) error {
	return obj.install("antenna switch", obj.antenna != nil, func() { obj.antenna = a })
}

// Lease hands out the exclusive right to call capabilities. Only one holder may exist at a time,
// a second concurrent Lease is a fatal error. The returned func gives the lease back.
func (obj *Table) Lease() (release func()) {
	if !obj.leased.CompareAndSwap(false, true) {
		panic(ErrLeaseHeld)
	}
	var once sync.Once
	return func() {
		once.Do(func() { obj.leased.Store(false) })
	}
}

// Leased reports whether a lease is outstanding.
func (obj *Table) Leased() bool {
	return obj.leased.Load()
}

// AntennaMode returns the path selected by the most recent SetAntennaMode.
func (obj *Table) AntennaMode() hal.AntennaMode {
	return obj.antMode
}

func (obj *Table) mustLease(capability string) {
	if !obj.leased.Load() {
		panic(fmt.Errorf("%s: %w", capability, hal.ErrNotLeased))
	}
}

func unpopulated(slot string) {
	panic(fmt.Errorf("no %s: %w", slot, hal.ErrSlotUnpopulated))
}

func fault(op string, err error) {
	panic(fmt.Errorf("%s: %w: %v", op, hal.ErrHardwareFault, err))
}

func setLine(l hal.OutputLine, op string, high bool) {
	value := 0
	if high {
		value = 1
	}
	if err := l.SetValue(value); err != nil {
		fault(op, err)
	}
}

func (obj *Table) Reset(active bool) {
	obj.mustLease("reset")
	if obj.reset == nil {
		unpopulated("radio reset")
	}
	setLine(obj.reset, "reset", active != obj.resetActiveLow)
}

type exchangeResult struct {
	in  byte
	err error
}

func (obj *Table) TransportExchange(out byte) byte {
	obj.mustLease("transport exchange")
	if obj.transport == nil {
		unpopulated("transport")
	}
	if obj.exchangeTimeout <= 0 {
		in, err := obj.transport.Exchange(out)
		if err != nil {
			fault("transport exchange", err)
		}
		return in
	}

	done := make(chan exchangeResult, 1)
	go func() {
		in, err := obj.transport.Exchange(out)
		done <- exchangeResult{in: in, err: err}
	}()
	select {
	case <-time.After(obj.exchangeTimeout):
		panic(fmt.Errorf("transport exchange of 0x%02X after %s: %w", out, obj.exchangeTimeout, hal.ErrHardwareTimeout))
	case res := <-done:
		if res.err != nil {
			fault("transport exchange", res.err)
		}
		return res.in
	}
}

func (obj *Table) ChipSelect(active bool) {
	obj.mustLease("chip select")
	if obj.nss == nil {
		unpopulated("chip select")
	}
	setLine(obj.nss, "chip select", active)
}

func (obj *Table) DelayMs(ms uint32) {
	obj.mustLease("delay")
	obj.sleep(time.Duration(ms) * time.Millisecond)
}

// RandomBits arms the random source, waits for a sample, takes it and powers the source down.
// The full 32-bit sample is returned whatever width is requested, callers mask what they need.
func (obj *Table) RandomBits(width uint8) uint32 {
	obj.mustLease("random bits")
	if obj.rng == nil {
		unpopulated("random source")
	}
	if err := obj.rng.Enable(); err != nil {
		fault("random source enable", err)
	}
	if err := obj.rng.Wait(); err != nil {
		fault("random source wait", err)
	}
	val, err := obj.rng.Take()
	if err != nil {
		fault("random source take", err)
	}
	if err := obj.rng.Disable(); err != nil {
		fault("random source disable", err)
	}
	return val
}

// SetAntennaMode switches the antenna path. powerHint is accepted and not used by any switch yet.
func (obj *Table) SetAntennaMode(mode hal.AntennaMode, powerHint uint8) {
	obj.mustLease("antenna mode")
	if obj.antenna == nil {
		unpopulated("antenna switch")
	}
	if err := obj.antenna.Apply(mode); err != nil {
		fault("antenna mode", err)
	}
	obj.antMode = mode
}

// BusyPoll reports the radio busy line. Without a busy line the radio is assumed busy.
func (obj *Table) BusyPoll() bool {
	obj.mustLease("busy poll")
	if obj.busy == nil {
		return true
	}
	val, err := obj.busy.Value()
	if err != nil {
		fault("busy poll", err)
	}
	return val == 1
}

func (obj *Table) ReducePower(requested uint8) uint8 {
	obj.mustLease("reduce power")
	return obj.power.Limit(requested)
}

// SetBoardTcxo always reports false, there is no TCXO on this board.
func (obj *Table) SetBoardTcxo(timeoutUs uint32) bool {
	obj.mustLease("board tcxo")
	return false
}
