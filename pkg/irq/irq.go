// Package irq holds the interrupt handlers. A handler only clears the hardware pending
// condition and spawns exactly one task, it never touches the radio engine or the capability table.
package irq

import (
	"fmt"

	"github.com/mbalug7/go-longfi-board/pkg/hal"
)

// PendingLine is an interrupt line whose pending flag has to be cleared by the handler.
type PendingLine interface {
	Unpend() error
}

// ByteSource is a receiver with an unread byte.
type ByteSource interface {
	ReadByte() (byte, error)
}

// Spawner enqueues one task run. dispatch.Task satisfies it.
type Spawner[P any] interface {
	MustSpawn(payload P)
}

// RadioLine is the radio interrupt pin handler.
type RadioLine struct {
	line  PendingLine
	event hal.RfEvent
	task  Spawner[hal.RfEvent]
}

func NewRadioLine(line PendingLine, event hal.RfEvent, task Spawner[hal.RfEvent]) *RadioLine {
	return &RadioLine{line: line, event: event, task: task}
}

// Handle clears the pending flag before spawning so the line cannot re-enter for the same edge.
func (obj *RadioLine) Handle() {
	if obj.line != nil {
		if err := obj.line.Unpend(); err != nil {
			panic(fmt.Errorf("failed to unpend radio interrupt: %w", err))
		}
	}
	obj.task.MustSpawn(obj.event)
}

// SerialRx is the console receive handler, any byte requests a test packet.
type SerialRx struct {
	rx   ByteSource
	task Spawner[struct{}]
}

func NewSerialRx(rx ByteSource, task Spawner[struct{}]) *SerialRx {
	return &SerialRx{rx: rx, task: task}
}

// Handle drains one byte, acknowledging the receive flag, and spawns the send task.
func (obj *SerialRx) Handle() {
	if _, err := obj.rx.ReadByte(); err != nil {
		panic(fmt.Errorf("failed to drain console byte: %w", err))
	}
	obj.task.MustSpawn(struct{}{})
}
