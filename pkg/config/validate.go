package config

import (
	"encoding/hex"
	"errors"
	"fmt"
)

const maxRadioPayload = 255

// Validate checks the configuration for wiring mistakes. It does not apply defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	b := cfg.Board

	if b.GPIOChip == "" {
		return errors.New("board.gpio_chip is required")
	}
	if b.SPIDevice == "" {
		return errors.New("board.spi_device is required")
	}
	if b.Console.TTY == "" {
		return errors.New("board.console.tty is required")
	}
	if b.ExchangeTimeoutMs < 0 {
		return fmt.Errorf("board.exchange_timeout_ms must not be negative, got %d", b.ExchangeTimeoutMs)
	}

	// every line is owned by exactly one slot
	used := map[int]string{}
	claim := func(name string, pin int) error {
		if pin < 0 {
			return fmt.Errorf("board pin %s must not be negative", name)
		}
		if other, ok := used[pin]; ok {
			return fmt.Errorf("board pin %d used by both %s and %s", pin, other, name)
		}
		used[pin] = name
		return nil
	}
	pins := []struct {
		name string
		pin  int
	}{
		{"reset", b.Pins.Reset},
		{"nss", b.Pins.NSS},
		{"radio_irq", b.Pins.RadioIRQ},
		{"ant_en", b.Antenna.AntEn},
	}
	if b.Pins.Busy != nil {
		pins = append(pins, struct {
			name string
			pin  int
		}{"busy", *b.Pins.Busy})
	}

	switch b.Antenna.Variant {
	case "", AntennaThreeWire:
		pins = append(pins, []struct {
			name string
			pin  int
		}{{"se_csd", b.Antenna.SeCsd}, {"se_cps", b.Antenna.SeCps}, {"se_ctx", b.Antenna.SeCtx}}...)
	case AntennaOneWire:
	default:
		return fmt.Errorf("unknown antenna variant %q", b.Antenna.Variant)
	}
	for _, p := range pins {
		if err := claim(p.name, p.pin); err != nil {
			return err
		}
	}

	r := cfg.Radio
	key, err := hex.DecodeString(r.PresharedKey)
	if err != nil {
		return fmt.Errorf("radio.preshared_key is not hex: %w", err)
	}
	if len(key) != 16 {
		return fmt.Errorf("radio.preshared_key must be 16 bytes, got %d", len(key))
	}
	if r.CodingRate != 0 && (r.CodingRate < 5 || r.CodingRate > 8) {
		return fmt.Errorf("radio.coding_rate must be 5..8, got %d", r.CodingRate)
	}
	if cfg.Dispatch.TaskCapacity < 0 {
		return fmt.Errorf("dispatch.task_capacity must not be negative, got %d", cfg.Dispatch.TaskCapacity)
	}
	// zero picks the default, anything else must hold the largest radio payload
	if cfg.Dispatch.BufferSize != 0 && (cfg.Dispatch.BufferSize < maxRadioPayload || cfg.Dispatch.BufferSize > 4096) {
		return fmt.Errorf("dispatch.buffer_size must be %d..4096, got %d", maxRadioPayload, cfg.Dispatch.BufferSize)
	}
	return nil
}

// Key returns the decoded preshared key. It must be called only after Validate().
func (obj RadioConfig) Key() []byte {
	key, _ := hex.DecodeString(obj.PresharedKey)
	return key
}
