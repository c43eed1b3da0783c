// Package board brings up the radio board peripherals and installs them in a capability table.
package board

import (
	"io"
	"sync/atomic"
)

// PendingFlag is a software interrupt pending flag, raised by the edge event and cleared by the handler.
type PendingFlag struct {
	pending atomic.Bool
}

func (obj *PendingFlag) raise() {
	obj.pending.Store(true)
}

func (obj *PendingFlag) Pending() bool {
	return obj.pending.Load()
}

func (obj *PendingFlag) Unpend() error {
	obj.pending.Store(false)
	return nil
}

// ConsoleRx hands out console bytes one at a time.
type ConsoleRx struct {
	rx chan byte
}

// ReadByte drains one received byte. It never blocks, io.EOF means nothing is waiting.
func (obj *ConsoleRx) ReadByte() (byte, error) {
	select {
	case b := <-obj.rx:
		return b, nil
	default:
		return 0, io.EOF
	}
}
