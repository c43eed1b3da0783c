package hal

import "errors"

var (
	// ErrSlotUnpopulated marks a capability call against a hardware slot that was never installed.
	// It is a wiring defect, never a runtime condition.
	ErrSlotUnpopulated = errors.New("hardware slot unpopulated")
	ErrHardwareTimeout = errors.New("hardware did not respond in time")
	ErrHardwareFault   = errors.New("hardware operation failed")
	// ErrNotLeased is raised when a capability is called without holding the capability table lease.
	ErrNotLeased = errors.New("capability table not leased")
)

// OutputLine is a single digital output. *gpiod.Line satisfies it.
type OutputLine interface {
	SetValue(value int) error
}

// InputLine is a single digital input. *gpiod.Line satisfies it.
type InputLine interface {
	Value() (int, error)
}

// Transport performs one full-duplex byte exchange, blocking until the hardware completes it.
type Transport interface {
	Exchange(out byte) (byte, error)
}

// RandomSource is a hardware random generator that has to be armed before and powered down after each sample.
type RandomSource interface {
	Enable() error
	Wait() error
	Take() (uint32, error)
	Disable() error
}

type AntennaMode int

const (
	AntModeSleep AntennaMode = iota
	AntModeTx
	AntModeRx
)

func (m AntennaMode) String() string {
	switch m {
	case AntModeSleep:
		return "sleep"
	case AntModeTx:
		return "tx"
	case AntModeRx:
		return "rx"
	}
	return "unknown"
}

// Capabilities is the fixed set of board operations a radio engine is allowed to call.
// Signatures are plain scalars; failures are fatal and surface as panics.
type Capabilities interface {
	Reset(active bool)
	TransportExchange(out byte) byte
	ChipSelect(active bool)
	DelayMs(ms uint32)
	RandomBits(width uint8) uint32
	SetAntennaMode(mode AntennaMode, powerHint uint8)
	BusyPoll() bool
	ReducePower(requested uint8) uint8
	SetBoardTcxo(timeoutUs uint32) bool
}
