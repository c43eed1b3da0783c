package hal

import (
	"errors"

	"github.com/mbalug7/go-longfi-board/pkg/buffer"
)

var ErrBufferNotOwned = errors.New("engine does not own the packet buffer")

// RfEvent is the raw interrupt tag handed to the engine.
type RfEvent int

const (
	DIO0 RfEvent = iota
	DIO1
	DIO2
	DIO3
	Timer1
	Timer2
)

// ClientEvent is the engine's classification of a handled interrupt.
type ClientEvent int

const (
	EventNone ClientEvent = iota
	EventTxDone
	EventRx
)

func (e ClientEvent) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventTxDone:
		return "tx-done"
	case EventRx:
		return "rx"
	}
	return "unknown"
}

// RxPacket describes a received packet. Data points into the shared buffer and dies on the next hand-off.
type RxPacket struct {
	Len  int
	RSSI int16
	SNR  int8
	Data buffer.View
}

// Engine is the radio protocol engine driven by the application tasks.
type Engine interface {
	HandleEvent(evt RfEvent) (ClientEvent, error)
	SetBuffer(grant *buffer.Grant) error
	Received() (RxPacket, error)
	Send(payload []byte) error
}
