package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Board    BoardConfig    `yaml:"board"`
	Radio    RadioConfig    `yaml:"radio"`
	Dispatch DispatchConfig `yaml:"dispatch"`
}

// ---- BOARD ----

type BoardConfig struct {
	GPIOChip          string        `yaml:"gpio_chip"`
	Pins              PinsConfig    `yaml:"pins"`
	Antenna           AntennaConfig `yaml:"antenna"`
	ResetActiveHigh   bool          `yaml:"reset_active_high"`
	SPIDevice         string        `yaml:"spi_device"`
	SPISpeedHz        int64         `yaml:"spi_speed_hz"`
	RNGDevice         string        `yaml:"rng_device"`
	ExchangeTimeoutMs int           `yaml:"exchange_timeout_ms"` // 0 waits forever
	PowerCeiling      *uint8        `yaml:"power_ceiling"`       // unset passes requests through
	Console           ConsoleConfig `yaml:"console"`
}

type PinsConfig struct {
	Reset    int  `yaml:"reset"`
	NSS      int  `yaml:"nss"`
	Busy     *int `yaml:"busy"` // optional, radio is treated as busy without it
	RadioIRQ int  `yaml:"radio_irq"`
}

const (
	AntennaThreeWire = "three_wire"
	AntennaOneWire   = "one_wire"
)

type AntennaConfig struct {
	Variant string `yaml:"variant"`
	AntEn   int    `yaml:"ant_en"`
	SeCsd   int    `yaml:"se_csd"`
	SeCps   int    `yaml:"se_cps"`
	SeCtx   int    `yaml:"se_ctx"`
}

type ConsoleConfig struct {
	TTY  string `yaml:"tty"`
	Baud int    `yaml:"baud"`
}

// ---- RADIO ----

type RadioConfig struct {
	OUI             uint32 `yaml:"oui"`
	DeviceID        uint16 `yaml:"device_id"`
	PresharedKey    string `yaml:"preshared_key"` // 32 hex characters
	FrequencyHz     uint32 `yaml:"frequency_hz"`
	SpreadingFactor uint8  `yaml:"spreading_factor"`
	BandwidthKHz    uint32 `yaml:"bandwidth_khz"`
	CodingRate      uint8  `yaml:"coding_rate"` // 5..8 for 4/5..4/8
	TxPowerDbm      uint8  `yaml:"tx_power_dbm"`
	PreambleLength  uint16 `yaml:"preamble_length"`
	TxJitterMaxMs   uint32 `yaml:"tx_jitter_max_ms"`
}

// ---- DISPATCH ----

type DispatchConfig struct {
	TaskCapacity int `yaml:"task_capacity"`
	BufferSize   int `yaml:"buffer_size"`
}

// Load reads, validates and normalizes a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	Normalize(&cfg)
	return &cfg, nil
}
