//go:build tinygo

package board

import (
	"fmt"
	"io"
	"machine"
	"sync"
	"time"

	"github.com/mbalug7/go-longfi-board/pkg/bindings"
)

// PicoPins is the RP2040 wiring of the radio board.
type PicoPins struct {
	Reset    machine.Pin
	NSS      machine.Pin
	Busy     machine.Pin // machine.NoPin when the radio has no busy line
	RadioIRQ machine.Pin
	AntEn    machine.Pin
	SeCsd    machine.Pin // front-end pins, machine.NoPin on one-wire boards
	SeCps    machine.Pin
	SeCtx    machine.Pin
	SCK      machine.Pin
	SDO      machine.Pin
	SDI      machine.Pin
}

// Pico binds the radio board to an RP2040: machine pins, an SPI peripheral, the ring oscillator RNG and a UART console.
type Pico struct {
	Table *bindings.Table

	uart        *machine.UART
	consoleRx   chan byte
	radioIRQ    PendingFlag
	muHandlers  sync.Mutex
	onRadioIRQ  func()
	onConsoleRx func()
}

// NewPico configures every pin and peripheral and installs them in a new capability table.
func NewPico(pins PicoPins, spi *machine.SPI, uart *machine.UART, spiHz uint32, opts ...bindings.Option) (*Pico, error) {
	handler := &Pico{
		Table:     bindings.NewTable(opts...),
		uart:      uart,
		consoleRx: make(chan byte, 64),
	}
	err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure console uart: %w", err)
	}
	err = spi.Configure(machine.SPIConfig{
		Frequency: spiHz,
		Mode:      0,
		SCK:       pins.SCK,
		SDO:       pins.SDO,
		SDI:       pins.SDI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure SPI: %w", err)
	}
	if err := handler.Table.InstallTransport(&picoSPI{bus: spi}); err != nil {
		return nil, err
	}

	// active-low reset, released
	if err := handler.Table.InstallReset(outputPin(pins.Reset, true)); err != nil {
		return nil, err
	}
	if err := handler.Table.InstallChipSelect(outputPin(pins.NSS, true)); err != nil {
		return nil, err
	}
	if pins.Busy != machine.NoPin {
		pins.Busy.Configure(machine.PinConfig{Mode: machine.PinInput})
		if err := handler.Table.InstallBusy(pinLine(pins.Busy)); err != nil {
			return nil, err
		}
	}
	var ant bindings.AntennaSwitch
	if pins.SeCsd == machine.NoPin {
		ant = bindings.NewOneWire(outputPin(pins.AntEn, false))
	} else {
		ant = bindings.NewThreeWire(outputPin(pins.AntEn, false), outputPin(pins.SeCsd, false),
			outputPin(pins.SeCps, false), outputPin(pins.SeCtx, false))
	}
	if err := handler.Table.InstallAntenna(ant); err != nil {
		return nil, err
	}
	if err := handler.Table.InstallRandom(picoRNG{}); err != nil {
		return nil, err
	}

	pins.RadioIRQ.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	err = pins.RadioIRQ.SetInterrupt(machine.PinRising, func(machine.Pin) {
		handler.radioIRQ.raise()
		go handler.onRadioIRQEvent()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set radio interrupt: %w", err)
	}
	go handler.readConsole()
	return handler, nil
}

func outputPin(p machine.Pin, high bool) pinLine {
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Set(high)
	return pinLine(p)
}

// OnRadioIRQ registers the radio interrupt handler and services an edge still pending from before registration.
func (obj *Pico) OnRadioIRQ(fn func()) {
	obj.muHandlers.Lock()
	obj.onRadioIRQ = fn
	obj.muHandlers.Unlock()
	// the radio holds its irq line high until cleared, an edge seen before registration never repeats
	if fn != nil && obj.radioIRQ.Pending() {
		fn()
	}
}

// OnConsoleRx registers the console receive handler.
func (obj *Pico) OnConsoleRx(fn func()) {
	obj.muHandlers.Lock()
	defer obj.muHandlers.Unlock()
	obj.onConsoleRx = fn
}

func (obj *Pico) RadioLine() *PendingFlag {
	return &obj.radioIRQ
}

func (obj *Pico) ConsoleRx() *ConsoleRx {
	return &ConsoleRx{rx: obj.consoleRx}
}

func (obj *Pico) Console() io.Writer {
	return obj.uart
}

func (obj *Pico) onRadioIRQEvent() {
	obj.muHandlers.Lock()
	fn := obj.onRadioIRQ
	obj.muHandlers.Unlock()
	if fn != nil {
		fn()
	}
}

func (obj *Pico) readConsole() {
	for {
		if obj.uart.Buffered() == 0 {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		b, err := obj.uart.ReadByte()
		if err != nil {
			continue
		}
		obj.muHandlers.Lock()
		fn := obj.onConsoleRx
		obj.muHandlers.Unlock()
		if fn == nil {
			continue
		}
		obj.consoleRx <- b
		// a burst longer than the ping queue during a slow send overflows it, which is fatal
		fn()
	}
}

// pinLine adapts a machine pin to the binding line interfaces.
type pinLine machine.Pin

func (obj pinLine) SetValue(v int) error {
	machine.Pin(obj).Set(v != 0)
	return nil
}

func (obj pinLine) Value() (int, error) {
	if machine.Pin(obj).Get() {
		return 1, nil
	}
	return 0, nil
}

type picoSPI struct {
	bus *machine.SPI
}

func (obj *picoSPI) Exchange(out byte) (byte, error) {
	in, err := obj.bus.Transfer(out)
	if err != nil {
		return 0, fmt.Errorf("failed to exchange SPI byte: %w", err)
	}
	return in, nil
}

// picoRNG samples the ring oscillator, which is always running.
type picoRNG struct{}

func (obj picoRNG) Enable() error  { return nil }
func (obj picoRNG) Disable() error { return nil }
func (obj picoRNG) Wait() error    { return nil }

func (obj picoRNG) Take() (uint32, error) {
	v, err := machine.GetRNG()
	if err != nil {
		return 0, fmt.Errorf("failed to read RNG: %w", err)
	}
	return v, nil
}
