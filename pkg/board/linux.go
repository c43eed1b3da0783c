//go:build linux && !tinygo

package board

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mbalug7/go-longfi-board/pkg/bindings"
	"github.com/mbalug7/go-longfi-board/pkg/config"
	"github.com/tarm/serial"
	"github.com/warthog618/gpiod"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Linux binds the radio board to a Linux host: gpiochip lines, spidev and a serial debug console.
type Linux struct {
	Table *bindings.Table

	chip        *gpiod.Chip
	lines       []*gpiod.Line
	irqLine     *gpiod.Line
	spiPort     spi.PortCloser
	console     *serial.Port
	consoleRx   chan byte
	radioIRQ    PendingFlag
	muHandlers  sync.Mutex // guards the handlers below, set once before the interrupt lines go live
	onRadioIRQ  func()
	onConsoleRx func()
	closed      atomic.Bool
	readerDone  chan struct{}
}

// NewLinux requests every board line, opens the transport and the console and installs them in a new capability table.
func NewLinux(cfg config.BoardConfig) (*Linux, error) {
	opts := []bindings.Option{
		bindings.WithExchangeTimeout(time.Duration(cfg.ExchangeTimeoutMs) * time.Millisecond),
	}
	if cfg.ResetActiveHigh {
		opts = append(opts, bindings.WithResetActiveHigh())
	}
	if cfg.PowerCeiling != nil {
		opts = append(opts, bindings.WithPowerPolicy(bindings.Ceiling(*cfg.PowerCeiling)))
	}
	handler := &Linux{
		Table:      bindings.NewTable(opts...),
		consoleRx:  make(chan byte, 64),
		readerDone: make(chan struct{}),
	}
	err := handler.open(cfg)
	if err != nil {
		handler.Close()
		return nil, err
	}
	return handler, nil
}

func (obj *Linux) open(cfg config.BoardConfig) (err error) {
	obj.chip, err = gpiod.NewChip(cfg.GPIOChip, gpiod.WithConsumer("longfi-board"))
	if err != nil {
		return fmt.Errorf("failed to create GPIO chip: %w", err)
	}

	// reset released and NSS deselected from the first edge
	resetIdle := 1
	if cfg.ResetActiveHigh {
		resetIdle = 0
	}
	reset, err := obj.requestOutput("reset", cfg.Pins.Reset, resetIdle)
	if err != nil {
		return err
	}
	if err := obj.Table.InstallReset(reset); err != nil {
		return err
	}
	nss, err := obj.requestOutput("NSS", cfg.Pins.NSS, 1)
	if err != nil {
		return err
	}
	if err := obj.Table.InstallChipSelect(nss); err != nil {
		return err
	}
	if cfg.Pins.Busy != nil {
		busy, err := obj.chip.RequestLine(*cfg.Pins.Busy, gpiod.AsInput)
		if err != nil {
			return fmt.Errorf("failed to request BUSY GPIO line: %w", err)
		}
		obj.lines = append(obj.lines, busy)
		if err := obj.Table.InstallBusy(busy); err != nil {
			return err
		}
	}
	if err := obj.openAntenna(cfg.Antenna); err != nil {
		return err
	}

	transport, err := obj.openSPI(cfg.SPIDevice, cfg.SPISpeedHz)
	if err != nil {
		return err
	}
	if err := obj.Table.InstallTransport(transport); err != nil {
		return err
	}
	if err := obj.Table.InstallRandom(newHWRNG(cfg.RNGDevice)); err != nil {
		return err
	}

	obj.console, err = serial.OpenPort(&serial.Config{
		Name:        cfg.Console.TTY,
		Baud:        cfg.Console.Baud,
		Size:        8,
		ReadTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("failed to open console serial port, err: %w", err)
	}
	go obj.readConsole()

	obj.irqLine, err = obj.chip.RequestLine(cfg.Pins.RadioIRQ, gpiod.WithEventHandler(obj.onRadioIRQEvent), gpiod.WithRisingEdge)
	if err != nil {
		return fmt.Errorf("failed to request radio IRQ GPIO line: %w", err)
	}
	return nil
}

func (obj *Linux) requestOutput(name string, offset int, value int) (*gpiod.Line, error) {
	line, err := obj.chip.RequestLine(offset, gpiod.AsOutput(value))
	if err != nil {
		return nil, fmt.Errorf("failed to request %s GPIO line: %w", name, err)
	}
	obj.lines = append(obj.lines, line)
	return line, nil
}

func (obj *Linux) openAntenna(cfg config.AntennaConfig) error {
	en, err := obj.requestOutput("ANT_EN", cfg.AntEn, 0)
	if err != nil {
		return err
	}
	if cfg.Variant == config.AntennaOneWire {
		return obj.Table.InstallAntenna(bindings.NewOneWire(en))
	}
	csd, err := obj.requestOutput("SE_CSD", cfg.SeCsd, 0)
	if err != nil {
		return err
	}
	cps, err := obj.requestOutput("SE_CPS", cfg.SeCps, 0)
	if err != nil {
		return err
	}
	ctx, err := obj.requestOutput("SE_CTX", cfg.SeCtx, 0)
	if err != nil {
		return err
	}
	return obj.Table.InstallAntenna(bindings.NewThreeWire(en, csd, cps, ctx))
}

func (obj *Linux) openSPI(device string, speedHz int64) (*spiTransport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to init periph host drivers: %w", err)
	}
	port, err := spireg.Open(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", device, err)
	}
	obj.spiPort = port
	// chip select is driven through the NSS line, not by spidev
	conn, err := port.Connect(physic.Frequency(speedHz)*physic.Hertz, spi.Mode0|spi.NoCS, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to connect SPI port %s: %w", device, err)
	}
	return &spiTransport{conn: conn}, nil
}

// OnRadioIRQ registers the radio interrupt handler. It runs in the gpiod event goroutine.
// An edge still pending from before registration is serviced immediately.
func (obj *Linux) OnRadioIRQ(fn func()) {
	obj.muHandlers.Lock()
	obj.onRadioIRQ = fn
	obj.muHandlers.Unlock()
	// the radio holds its irq line high until cleared, an edge seen before registration never repeats
	if fn != nil && obj.radioIRQ.Pending() {
		fn()
	}
}

// OnConsoleRx registers the console receive handler, called once per received byte.
func (obj *Linux) OnConsoleRx(fn func()) {
	obj.muHandlers.Lock()
	defer obj.muHandlers.Unlock()
	obj.onConsoleRx = fn
}

// RadioLine is the pending flag of the radio interrupt.
func (obj *Linux) RadioLine() *PendingFlag {
	return &obj.radioIRQ
}

// ConsoleRx is the receive side of the debug console.
func (obj *Linux) ConsoleRx() *ConsoleRx {
	return &ConsoleRx{rx: obj.consoleRx}
}

// Console is the debug console byte sink.
func (obj *Linux) Console() io.Writer {
	return obj.console
}

func (obj *Linux) onRadioIRQEvent(evt gpiod.LineEvent) {
	obj.radioIRQ.raise()
	obj.muHandlers.Lock()
	fn := obj.onRadioIRQ
	obj.muHandlers.Unlock()
	if fn != nil {
		fn()
	}
}

func (obj *Linux) readConsole() {
	defer close(obj.readerDone)
	buf := make([]byte, 64)
	for {
		n, err := obj.console.Read(buf)
		if obj.closed.Load() {
			return
		}
		if err != nil && !errors.Is(err, io.EOF) {
			log.Printf("console read error: %s", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		for _, b := range buf[:n] {
			obj.consoleRx <- b
			obj.muHandlers.Lock()
			fn := obj.onConsoleRx
			obj.muHandlers.Unlock()
			if fn != nil {
				// one spawn per byte, a pasted burst longer than the ping queue while a send
				// is still running overflows it, which is fatal
				fn()
			} else {
				// nobody listening yet, drop the byte
				<-obj.consoleRx
			}
		}
	}
}

func (obj *Linux) Close() (err error) {
	obj.closed.Store(true)
	if obj.irqLine != nil {
		if cerr := obj.irqLine.Close(); cerr != nil {
			err = fmt.Errorf("failed to close radio IRQ line: %w", cerr)
		}
	}
	for _, line := range obj.lines {
		if cerr := line.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close GPIO line: %w", cerr)
		}
	}
	if obj.chip != nil {
		if cerr := obj.chip.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close GPIO chip: %w", cerr)
		}
	}
	if obj.spiPort != nil {
		if cerr := obj.spiPort.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close SPI port: %w", cerr)
		}
	}
	if obj.console != nil {
		if cerr := obj.console.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close console serial port: %w", cerr)
		}
		select {
		case <-obj.readerDone:
		case <-time.After(2 * time.Second):
		}
	}
	return err
}

// spiTransport exchanges single bytes over a periph.io SPI connection.
type spiTransport struct {
	conn spi.Conn
}

func (obj *spiTransport) Exchange(out byte) (byte, error) {
	w := [1]byte{out}
	var r [1]byte
	if err := obj.conn.Tx(w[:], r[:]); err != nil {
		return 0, fmt.Errorf("failed to exchange SPI byte: %w", err)
	}
	return r[0], nil
}

// hwRNG reads the kernel hardware random device. The device is opened when armed and closed when disarmed.
type hwRNG struct {
	path   string
	file   *os.File
	sample [4]byte
}

func newHWRNG(path string) *hwRNG {
	return &hwRNG{path: path}
}

func (obj *hwRNG) Enable() error {
	f, err := os.Open(obj.path)
	if err != nil {
		return fmt.Errorf("failed to open random device: %w", err)
	}
	obj.file = f
	return nil
}

func (obj *hwRNG) Wait() error {
	if obj.file == nil {
		return errors.New("random device not enabled")
	}
	if _, err := io.ReadFull(obj.file, obj.sample[:]); err != nil {
		return fmt.Errorf("failed to read random device: %w", err)
	}
	return nil
}

func (obj *hwRNG) Take() (uint32, error) {
	s := obj.sample
	obj.sample = [4]byte{}
	return uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3]), nil
}

func (obj *hwRNG) Disable() error {
	if obj.file == nil {
		return nil
	}
	err := obj.file.Close()
	obj.file = nil
	return err
}
