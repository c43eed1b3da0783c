package config

// Normalize fills defaults. It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	b := &cfg.Board
	if b.Antenna.Variant == "" {
		b.Antenna.Variant = AntennaThreeWire
	}
	if b.SPISpeedHz == 0 {
		b.SPISpeedHz = 1000000
	}
	if b.RNGDevice == "" {
		b.RNGDevice = "/dev/hwrng"
	}
	if b.Console.Baud == 0 {
		b.Console.Baud = 115200
	}

	r := &cfg.Radio
	if r.FrequencyHz == 0 {
		r.FrequencyHz = 915000000
	}
	if r.SpreadingFactor == 0 {
		r.SpreadingFactor = 9
	}
	if r.BandwidthKHz == 0 {
		r.BandwidthKHz = 125
	}
	if r.CodingRate == 0 {
		r.CodingRate = 5
	}
	if r.TxPowerDbm == 0 {
		r.TxPowerDbm = 22
	}
	if r.PreambleLength == 0 {
		r.PreambleLength = 8
	}

	d := &cfg.Dispatch
	if d.TaskCapacity == 0 {
		d.TaskCapacity = 4
	}
	if d.BufferSize == 0 {
		d.BufferSize = 512
	}
}
