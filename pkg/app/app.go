package app

import (
	"fmt"
	"io"
	"log"

	"github.com/mbalug7/go-longfi-board/pkg/buffer"
	"github.com/mbalug7/go-longfi-board/pkg/dispatch"
	"github.com/mbalug7/go-longfi-board/pkg/hal"
)

// Leaser grants exclusive use of the capability table for the duration of a task.
type Leaser interface {
	Lease() (release func())
}

// Buffer is the application side of the shared packet buffer.
type Buffer interface {
	HandToEngine() (*buffer.Grant, error)
	ReturnToApplication() error
}

// ping packet layout, the counter goes at pingCounterPos
var pingTemplate = [14]byte{1, 2, 3, 4, 0, 5, 6, 7, 8, 9, 10, 12, 13, 14}

const pingCounterPos = 4

// App owns the radio engine and turns its client events into console output and buffer hand-offs.
type App struct {
	engine  hal.Engine
	caps    Leaser
	buf     Buffer
	console io.Writer
	count   uint8

	RadioEvent *dispatch.Task[hal.RfEvent]
	SendPing   *dispatch.Task[struct{}]
}

// New registers the application tasks on the dispatcher. Radio events run on the application tier,
// ping requests on the interrupt tier so a fresh radio event always goes first.
func New(d *dispatch.Dispatcher, engine hal.Engine, caps Leaser, buf Buffer, console io.Writer, capacity int) *App {
	a := &App{
		engine:  engine,
		caps:    caps,
		buf:     buf,
		console: console,
	}
	a.RadioEvent = dispatch.Register(d, "radio_event", dispatch.PriorityApplication, capacity, a.radioEvent)
	a.SendPing = dispatch.Register(d, "send_ping", dispatch.PriorityInterrupt, capacity, a.sendPing)
	return a
}

// Start gives the buffer to the engine for the first receive cycle.
func (obj *App) Start() error {
	defer obj.caps.Lease()()
	return obj.armEngine()
}

func (obj *App) armEngine() error {
	grant, err := obj.buf.HandToEngine()
	if err != nil {
		return fmt.Errorf("failed to hand buffer to engine: %w", err)
	}
	if err := obj.engine.SetBuffer(grant); err != nil {
		return fmt.Errorf("failed to arm engine: %w", err)
	}
	return nil
}

func (obj *App) radioEvent(evt hal.RfEvent) {
	defer obj.caps.Lease()()
	ce, err := obj.engine.HandleEvent(evt)
	if err != nil {
		log.Printf("radio event %d error: %s", evt, err)
	}
	if err := obj.translate(ce); err != nil {
		panic(err)
	}
}

// translate acts on one client event. Buffer protocol violations come back as errors and are fatal for the caller.
func (obj *App) translate(ce hal.ClientEvent) error {
	switch ce {
	case hal.EventNone:
		return nil
	case hal.EventTxDone:
		obj.print("Transmit Done!\r\n")
		return nil
	case hal.EventRx:
		pkt, err := obj.engine.Received()
		if err != nil {
			return fmt.Errorf("failed to get received packet: %w", err)
		}
		obj.printPacket(pkt)
		if err := obj.buf.ReturnToApplication(); err != nil {
			return fmt.Errorf("failed to take buffer back: %w", err)
		}
		return obj.armEngine()
	}
	return fmt.Errorf("unknown client event %d", ce)
}

func (obj *App) printPacket(pkt hal.RxPacket) {
	obj.print("Received packet\r\n")
	obj.print(fmt.Sprintf("  Length =  %d\r\n", pkt.Len))
	obj.print(fmt.Sprintf("  Rssi   = %d\r\n", pkt.RSSI))
	obj.print(fmt.Sprintf("  Snr    =  %d\r\n", pkt.SNR))
	data, err := pkt.Data.Bytes()
	if err != nil {
		log.Printf("received packet no longer readable: %s", err)
	}
	line := make([]byte, 0, len(data)*3+2)
	for _, b := range data {
		line = fmt.Appendf(line, "%X ", b)
	}
	obj.print(string(append(line, '\r', '\n')))
}

func (obj *App) sendPing(struct{}) {
	defer obj.caps.Lease()()
	obj.print("Sending Ping\r\n")
	packet := pingTemplate
	packet[pingCounterPos] = obj.count
	obj.count++
	if err := obj.engine.Send(packet[:]); err != nil {
		log.Printf("failed to send ping: %s", err)
	}
}

func (obj *App) print(s string) {
	if _, err := io.WriteString(obj.console, s); err != nil {
		log.Printf("console write failed: %s", err)
	}
}
