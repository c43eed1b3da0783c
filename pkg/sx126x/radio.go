package sx126x

import (
	"errors"
	"fmt"

	"github.com/mbalug7/go-longfi-board/pkg/buffer"
	"github.com/mbalug7/go-longfi-board/pkg/hal"
)

var (
	ErrBusyTimeout  = fmt.Errorf("radio busy line never cleared: %w", hal.ErrHardwareTimeout)
	ErrNoPacket     = errors.New("no received packet pending")
	ErrTxInProgress = errors.New("transmission already in progress")
	ErrInvalidSize  = errors.New("invalid payload size")
)

type AuthMode int

const (
	AuthNone AuthMode = iota
	AuthPresharedKey128
)

// Options configure the radio engine. Identity and key are carried for the protocol layer.
type Options struct {
	OUI             uint32
	DeviceID        uint16
	AuthMode        AuthMode
	PresharedKey    []byte
	FrequencyHz     uint32
	SpreadingFactor uint8
	Bandwidth       Bandwidth
	CodingRate      CodingRate
	TxPowerDbm      uint8
	PreambleLength  uint16
	TxJitterMaxMs   uint32 // random delay before each transmission, 0 disables it
}

func (obj Options) validate() error {
	if obj.AuthMode == AuthPresharedKey128 && len(obj.PresharedKey) != 16 {
		return fmt.Errorf("preshared key must be 16 bytes, got %d", len(obj.PresharedKey))
	}
	if obj.FrequencyHz < 150000000 || obj.FrequencyHz > 960000000 {
		return fmt.Errorf("frequency %d Hz out of range", obj.FrequencyHz)
	}
	if obj.SpreadingFactor < 5 || obj.SpreadingFactor > 12 {
		return fmt.Errorf("spreading factor %d out of range [5, 12]", obj.SpreadingFactor)
	}
	if _, ok := bandwidthKHz[obj.Bandwidth]; !ok {
		return fmt.Errorf("unsupported bandwidth code 0x%02X", byte(obj.Bandwidth))
	}
	if obj.CodingRate < CR_4_5 || obj.CodingRate > CR_4_8 {
		return fmt.Errorf("unsupported coding rate %d", obj.CodingRate)
	}
	return nil
}

// Radio drives an SX126x through the board capability table. Every method must be called
// by the holder of the capability table lease.
type Radio struct {
	caps         hal.Capabilities
	opts         Options
	grant        *buffer.Grant
	rx           hal.RxPacket
	rxPending    bool
	transmitting bool
}

var _ hal.Engine = (*Radio)(nil)

// New resets and configures the radio.
func New(caps hal.Capabilities, opts Options) (*Radio, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("failed to configure radio: %w", err)
	}
	if opts.PreambleLength == 0 {
		opts.PreambleLength = 8
	}
	r := &Radio{caps: caps, opts: opts}

	caps.Reset(true)
	caps.DelayMs(resetPulseMs)
	caps.Reset(false)
	caps.DelayMs(resetSettleMs)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"standby", r.standby},
		{"tcxo", r.setupTcxo},
		{"packet type", func() error { return r.command(cmdSetPacketType, packetTypeLoRa) }},
		{"frequency", r.setFrequency},
		{"modulation", r.setModulation},
		{"packet params", func() error { return r.setPacketParams(maxPayload) }},
		{"tx params", r.setTxParams},
		{"buffer base", func() error { return r.command(cmdSetBufferBaseAddress, 0x00, 0x00) }},
		{"irq params", r.setIrqParams},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return nil, fmt.Errorf("failed to set radio %s: %w", step.name, err)
		}
	}
	caps.SetAntennaMode(hal.AntModeSleep, 0)
	return r, nil
}

// Identity returns the device identity the engine was configured with.
func (obj *Radio) Identity() (oui uint32, deviceID uint16) {
	return obj.opts.OUI, obj.opts.DeviceID
}

// SetBuffer hands the engine a receive buffer and arms continuous receive.
// A grant the engine does not exclusively own is refused.
func (obj *Radio) SetBuffer(grant *buffer.Grant) error {
	if !grant.Writable() {
		return fmt.Errorf("failed to set receive buffer: %w", hal.ErrBufferNotOwned)
	}
	obj.grant = grant
	obj.rxPending = false
	obj.rx = hal.RxPacket{}
	if obj.transmitting {
		// receive is re-armed on TxDone
		return nil
	}
	return obj.startRx()
}

// Received returns the packet published by the last Rx event.
func (obj *Radio) Received() (hal.RxPacket, error) {
	if !obj.rxPending {
		return hal.RxPacket{}, ErrNoPacket
	}
	return obj.rx, nil
}

// Send writes the payload into the radio FIFO and starts a transmission.
func (obj *Radio) Send(payload []byte) error {
	if len(payload) == 0 || len(payload) > maxPayload {
		return fmt.Errorf("failed to send %d bytes: %w", len(payload), ErrInvalidSize)
	}
	if obj.transmitting {
		return ErrTxInProgress
	}
	if obj.opts.TxJitterMaxMs > 0 {
		jitter := obj.caps.RandomBits(32) % (obj.opts.TxJitterMaxMs + 1)
		obj.caps.DelayMs(jitter)
	}
	if err := obj.standby(); err != nil {
		return fmt.Errorf("failed to enter standby before tx: %w", err)
	}
	if err := obj.setPacketParams(byte(len(payload))); err != nil {
		return fmt.Errorf("failed to set tx packet params: %w", err)
	}
	if err := obj.command(cmdWriteBuffer, append([]byte{0x00}, payload...)...); err != nil {
		return fmt.Errorf("failed to write tx fifo: %w", err)
	}
	obj.caps.SetAntennaMode(hal.AntModeTx, obj.opts.TxPowerDbm)
	if err := obj.command(cmdSetTx, 0x00, 0x00, 0x00); err != nil {
		return fmt.Errorf("failed to start tx: %w", err)
	}
	obj.transmitting = true
	return nil
}

// HandleEvent services a radio interrupt and classifies it.
func (obj *Radio) HandleEvent(evt hal.RfEvent) (hal.ClientEvent, error) {
	if evt != hal.DIO0 {
		return hal.EventNone, nil
	}
	irq, err := obj.irqStatus()
	if err != nil {
		return hal.EventNone, fmt.Errorf("failed to read irq status: %w", err)
	}
	if err := obj.command(cmdClearIrqStatus, byte(irqAll>>8), byte(irqAll&0xFF)); err != nil {
		return hal.EventNone, fmt.Errorf("failed to clear irq status: %w", err)
	}

	switch {
	case irq&irqTxDone != 0:
		obj.transmitting = false
		return hal.EventTxDone, obj.rearm()
	case irq&irqRxDone != 0 && irq&irqCrcErr != 0:
		return hal.EventNone, obj.rearm()
	case irq&irqRxDone != 0:
		return obj.receive()
	case irq&irqTimeout != 0:
		return hal.EventNone, obj.rearm()
	}
	return hal.EventNone, nil
}

func (obj *Radio) receive() (hal.ClientEvent, error) {
	data, err := obj.grant.Bytes()
	if err != nil {
		// the application still holds the buffer, refuse to touch it
		return hal.EventNone, errors.Join(fmt.Errorf("failed to receive packet: %w", hal.ErrBufferNotOwned), obj.sleep())
	}
	status, err := obj.read(cmdGetRxBufferStatus, nil, 2)
	if err != nil {
		return hal.EventNone, fmt.Errorf("failed to read rx buffer status: %w", err)
	}
	length, start := int(status[0]), status[1]
	if length > len(data) {
		return hal.EventNone, errors.Join(
			fmt.Errorf("failed to receive %d bytes into a %d byte buffer: %w", length, len(data), ErrInvalidSize),
			obj.rearm())
	}
	pkt, err := obj.read(cmdGetPacketStatus, nil, 3)
	if err != nil {
		return hal.EventNone, fmt.Errorf("failed to read packet status: %w", err)
	}
	payload, err := obj.read(cmdReadBuffer, []byte{start}, length)
	if err != nil {
		return hal.EventNone, fmt.Errorf("failed to read rx fifo: %w", err)
	}
	copy(data, payload)

	view, err := obj.grant.Publish(length)
	if err != nil {
		return hal.EventNone, fmt.Errorf("failed to publish received packet: %w", err)
	}
	obj.rx = hal.RxPacket{
		Len:  length,
		RSSI: -int16(pkt[0]) / 2,
		SNR:  int8(pkt[1]) / 4,
		Data: view,
	}
	obj.rxPending = true
	// nothing more to receive into until the buffer comes back
	if err := obj.sleep(); err != nil {
		return hal.EventRx, fmt.Errorf("failed to sleep after rx: %w", err)
	}
	return hal.EventRx, nil
}

func (obj *Radio) rearm() error {
	if obj.grant.Writable() {
		return obj.startRx()
	}
	return obj.sleep()
}

func (obj *Radio) startRx() error {
	if err := obj.setPacketParams(maxPayload); err != nil {
		return fmt.Errorf("failed to set rx packet params: %w", err)
	}
	obj.caps.SetAntennaMode(hal.AntModeRx, 0)
	if err := obj.command(cmdSetRx, 0xFF, 0xFF, 0xFF); err != nil {
		return fmt.Errorf("failed to start rx: %w", err)
	}
	return nil
}

func (obj *Radio) sleep() error {
	if err := obj.standby(); err != nil {
		return fmt.Errorf("failed to enter standby: %w", err)
	}
	obj.caps.SetAntennaMode(hal.AntModeSleep, 0)
	return nil
}

func (obj *Radio) standby() error {
	return obj.command(cmdSetStandby, standbyRC)
}

func (obj *Radio) setupTcxo() error {
	if !obj.caps.SetBoardTcxo(tcxoStartupUs) {
		return nil
	}
	// delay is in steps of 15.625us
	steps := uint32(tcxoStartupUs) * 64 / 1000
	return obj.command(cmdSetDio3AsTcxoCtrl, tcxoVoltage1v8, byte(steps>>16), byte(steps>>8), byte(steps))
}

func (obj *Radio) setFrequency() error {
	reg := uint32((uint64(obj.opts.FrequencyHz) << 25) / xtalFrequencyHz)
	return obj.command(cmdSetRfFrequency, byte(reg>>24), byte(reg>>16), byte(reg>>8), byte(reg))
}

func (obj *Radio) setModulation() error {
	ldro := byte(0)
	// symbol time above 16.38 ms needs low data rate optimisation
	if (uint32(1)<<obj.opts.SpreadingFactor)*100 >= 1638*bandwidthKHz[obj.opts.Bandwidth] {
		ldro = 1
	}
	return obj.command(cmdSetModulationParams, obj.opts.SpreadingFactor, byte(obj.opts.Bandwidth), byte(obj.opts.CodingRate), ldro)
}

func (obj *Radio) setPacketParams(payloadLength byte) error {
	p := obj.opts.PreambleLength
	return obj.command(cmdSetPacketParams, byte(p>>8), byte(p), headerExplicit, payloadLength, crcOn, iqStandard)
}

func (obj *Radio) setTxParams() error {
	power := obj.caps.ReducePower(obj.opts.TxPowerDbm)
	return obj.command(cmdSetTxParams, power, rampTime200us)
}

func (obj *Radio) setIrqParams() error {
	return obj.command(cmdSetDioIrqParams,
		byte(irqMask>>8), byte(irqMask&0xFF), // global mask
		byte(irqMask>>8), byte(irqMask&0xFF), // DIO1
		0x00, 0x00, // DIO2
		0x00, 0x00, // DIO3
	)
}

func (obj *Radio) irqStatus() (uint16, error) {
	b, err := obj.read(cmdGetIrqStatus, nil, 2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (obj *Radio) waitBusy() error {
	for i := 0; i < maxBusyPolls; i++ {
		if !obj.caps.BusyPoll() {
			return nil
		}
		obj.caps.DelayMs(1)
	}
	return ErrBusyTimeout
}

// command sends an opcode and its parameters inside one chip select frame.
func (obj *Radio) command(op byte, params ...byte) error {
	if err := obj.waitBusy(); err != nil {
		return err
	}
	obj.caps.ChipSelect(false)
	obj.caps.TransportExchange(op)
	for _, p := range params {
		obj.caps.TransportExchange(p)
	}
	obj.caps.ChipSelect(true)
	return nil
}

// read sends an opcode and its arguments, skips the status byte and clocks out n response bytes.
func (obj *Radio) read(op byte, args []byte, n int) ([]byte, error) {
	if err := obj.waitBusy(); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	obj.caps.ChipSelect(false)
	obj.caps.TransportExchange(op)
	for _, a := range args {
		obj.caps.TransportExchange(a)
	}
	obj.caps.TransportExchange(nop)
	for i := range out {
		out[i] = obj.caps.TransportExchange(nop)
	}
	obj.caps.ChipSelect(true)
	return out, nil
}
