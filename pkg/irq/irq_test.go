package irq

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/mbalug7/go-longfi-board/pkg/dispatch"
	"github.com/mbalug7/go-longfi-board/pkg/hal"
)

type fakeExti struct {
	pending bool
	unpends int
	log     *[]string
}

func (obj *fakeExti) Unpend() error {
	obj.pending = false
	obj.unpends++
	*obj.log = append(*obj.log, "unpend")
	return nil
}

type fakeRx struct {
	data []byte
}

func (obj *fakeRx) ReadByte() (byte, error) {
	if len(obj.data) == 0 {
		return 0, io.EOF
	}
	b := obj.data[0]
	obj.data = obj.data[1:]
	return b, nil
}

type recordingSpawner struct {
	log *[]string
}

func (obj recordingSpawner) MustSpawn(evt hal.RfEvent) {
	*obj.log = append(*obj.log, fmt.Sprintf("spawn %d", evt))
}

func TestRadioLine_UnpendsBeforeSpawn(t *testing.T) {
	var log []string
	exti := &fakeExti{pending: true, log: &log}
	NewRadioLine(exti, hal.DIO0, recordingSpawner{log: &log}).Handle()
	if fmt.Sprint(log) != "[unpend spawn 0]" {
		t.Fatalf("unexpected sequence %v", log)
	}
	if exti.pending {
		t.Fatalf("pending flag must be cleared")
	}
}

func TestSerialRx_DrainsOneByte(t *testing.T) {
	d := dispatch.New()
	ping := dispatch.Register(d, "send_ping", dispatch.PriorityInterrupt, 4, func(struct{}) {})
	rx := &fakeRx{data: []byte{'a', 'b'}}
	NewSerialRx(rx, ping).Handle()
	if len(rx.data) != 1 {
		t.Fatalf("expected exactly one byte drained, %d left", len(rx.data))
	}
	if ping.Pending() != 1 {
		t.Fatalf("expected one pending send task, got %d", ping.Pending())
	}
}

func TestSerialRx_EmptyIsFatal(t *testing.T) {
	d := dispatch.New()
	ping := dispatch.Register(d, "send_ping", dispatch.PriorityInterrupt, 4, func(struct{}) {})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
		if ping.Pending() != 0 {
			t.Fatalf("nothing must be spawned")
		}
	}()
	NewSerialRx(&fakeRx{}, ping).Handle()
}

func TestRadioEventPreemptsQueuedPing(t *testing.T) {
	var log []string
	d := dispatch.New()
	radio := dispatch.Register(d, "radio_event", dispatch.PriorityApplication, 4, func(evt hal.RfEvent) {
		log = append(log, fmt.Sprintf("radio_event %d", evt))
	})
	ping := dispatch.Register(d, "send_ping", dispatch.PriorityInterrupt, 4, func(struct{}) {
		log = append(log, "send_ping")
	})

	NewSerialRx(&fakeRx{data: []byte{'x'}}, ping).Handle()
	NewRadioLine(&fakeExti{log: &log}, hal.DIO0, radio).Handle()
	d.Drain()

	want := "[unpend radio_event 0 send_ping]"
	if fmt.Sprint(log) != want {
		t.Fatalf("expected %s, got %v", want, log)
	}
}

func TestRadioLine_FifthPendingEventIsFatal(t *testing.T) {
	var log []string
	d := dispatch.New()
	radio := dispatch.Register(d, "radio_event", dispatch.PriorityApplication, 4, func(hal.RfEvent) {})
	handler := NewRadioLine(&fakeExti{log: &log}, hal.DIO0, radio)
	for i := 0; i < 4; i++ {
		handler.Handle()
	}
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, dispatch.ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull panic, got %v", r)
		}
		if radio.Pending() != 4 {
			t.Fatalf("queue must stay at capacity, got %d", radio.Pending())
		}
	}()
	handler.Handle()
}

func TestSerialRx_BurstBeyondQueueIsFatal(t *testing.T) {
	d := dispatch.New()
	ping := dispatch.Register(d, "send_ping", dispatch.PriorityInterrupt, 4, func(struct{}) {})
	rx := &fakeRx{data: []byte("hello")}
	handler := NewSerialRx(rx, ping)
	for i := 0; i < 4; i++ {
		handler.Handle()
	}
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, dispatch.ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull panic, got %v", r)
		}
		if ping.Pending() != 4 || len(rx.data) != 0 {
			t.Fatalf("expected 4 queued pings and the burst drained, got %d pending %d left", ping.Pending(), len(rx.data))
		}
	}()
	handler.Handle()
}
