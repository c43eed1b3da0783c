package sx126x

// SX126x command opcodes
const (
	cmdSetStandby           byte = 0x80
	cmdSetPacketType        byte = 0x8A
	cmdSetRfFrequency       byte = 0x86
	cmdSetModulationParams  byte = 0x8B
	cmdSetPacketParams      byte = 0x8C
	cmdSetTxParams          byte = 0x8E
	cmdSetBufferBaseAddress byte = 0x8F
	cmdSetDioIrqParams      byte = 0x08
	cmdSetDio3AsTcxoCtrl    byte = 0x97
	cmdGetIrqStatus         byte = 0x12
	cmdClearIrqStatus       byte = 0x02
	cmdGetRxBufferStatus    byte = 0x13
	cmdGetPacketStatus      byte = 0x14
	cmdWriteBuffer          byte = 0x0E
	cmdReadBuffer           byte = 0x1E
	cmdSetTx                byte = 0x83
	cmdSetRx                byte = 0x82
)

const (
	standbyRC      byte = 0x00
	packetTypeLoRa byte = 0x01
	headerExplicit byte = 0x00
	crcOn          byte = 0x01
	iqStandard     byte = 0x00
	rampTime200us  byte = 0x04
	tcxoVoltage1v8 byte = 0x02
	nop            byte = 0x00
)

const (
	maxPayload      = 255
	xtalFrequencyHz = 32000000
	tcxoStartupUs   = 5000
	resetPulseMs    = 10
	resetSettleMs   = 20
	maxBusyPolls    = 1000
)

// IRQ bits
const (
	irqTxDone  uint16 = 1 << 0
	irqRxDone  uint16 = 1 << 1
	irqCrcErr  uint16 = 1 << 6
	irqTimeout uint16 = 1 << 9
	irqAll     uint16 = 0x03FF

	irqMask = irqTxDone | irqRxDone | irqCrcErr | irqTimeout
)

// Bandwidth register codes
type Bandwidth byte

const (
	BW_7   Bandwidth = 0x00
	BW_10  Bandwidth = 0x08
	BW_15  Bandwidth = 0x01
	BW_20  Bandwidth = 0x09
	BW_31  Bandwidth = 0x02
	BW_41  Bandwidth = 0x0A
	BW_62  Bandwidth = 0x03
	BW_125 Bandwidth = 0x04
	BW_250 Bandwidth = 0x05
	BW_500 Bandwidth = 0x06
)

var bandwidthKHz = map[Bandwidth]uint32{
	BW_7:   7,
	BW_10:  10,
	BW_15:  15,
	BW_20:  20,
	BW_31:  31,
	BW_41:  41,
	BW_62:  62,
	BW_125: 125,
	BW_250: 250,
	BW_500: 500,
}

// CodingRate 4/5 .. 4/8
type CodingRate byte

const (
	CR_4_5 CodingRate = 0x01
	CR_4_6 CodingRate = 0x02
	CR_4_7 CodingRate = 0x03
	CR_4_8 CodingRate = 0x04
)

// BandwidthFromKHz maps a bandwidth in kHz to its register code.
func BandwidthFromKHz(khz uint32) (Bandwidth, bool) {
	for bw, v := range bandwidthKHz {
		if v == khz {
			return bw, true
		}
	}
	return 0, false
}
