package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// helper to build a valid three-wire board quickly
func validConfig() *Config {
	busy := 18
	return &Config{
		Board: BoardConfig{
			GPIOChip:  "gpiochip0",
			SPIDevice: "/dev/spidev0.0",
			Pins: PinsConfig{
				Reset:    17,
				NSS:      8,
				Busy:     &busy,
				RadioIRQ: 22,
			},
			Antenna: AntennaConfig{
				Variant: AntennaThreeWire,
				AntEn:   23,
				SeCsd:   24,
				SeCps:   25,
				SeCtx:   26,
			},
			Console: ConsoleConfig{TTY: "/dev/ttyS0"},
		},
		Radio: RadioConfig{
			OUI:          1,
			DeviceID:     3,
			PresharedKey: "7b60c0f0775150d302ceae50a0d211c1",
		},
	}
}

// ---- tests ----

func TestValidate_OK(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidate_DuplicatePin(t *testing.T) {
	cfg := validConfig()
	cfg.Board.Antenna.SeCtx = cfg.Board.Pins.NSS
	err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "used by both")
}

func TestValidate_OneWireIgnoresFrontEndPins(t *testing.T) {
	cfg := validConfig()
	cfg.Board.Antenna = AntennaConfig{Variant: AntennaOneWire, AntEn: 23, SeCsd: 8, SeCps: 8, SeCtx: 8}
	require.NoError(t, Validate(cfg))
}

func TestValidate_UnknownAntennaVariant(t *testing.T) {
	cfg := validConfig()
	cfg.Board.Antenna.Variant = "two_wire"
	require.Error(t, Validate(cfg))
}

func TestValidate_Key(t *testing.T) {
	cfg := validConfig()
	cfg.Radio.PresharedKey = "7b60"
	require.Error(t, Validate(cfg), "short key")
	cfg.Radio.PresharedKey = "zz"
	require.Error(t, Validate(cfg), "non hex key")
}

func TestValidate_MissingRequired(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"gpio chip": func(c *Config) { c.Board.GPIOChip = "" },
		"spi":       func(c *Config) { c.Board.SPIDevice = "" },
		"console":   func(c *Config) { c.Board.Console.TTY = "" },
		"timeout":   func(c *Config) { c.Board.ExchangeTimeoutMs = -1 },
		"cr":        func(c *Config) { c.Radio.CodingRate = 9 },
		"buffer":    func(c *Config) { c.Dispatch.BufferSize = 8192 },
		"small buf": func(c *Config) { c.Dispatch.BufferSize = 254 },
		"neg buf":   func(c *Config) { c.Dispatch.BufferSize = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			require.Error(t, Validate(cfg))
		})
	}
	require.Error(t, Validate(nil))
}

func TestValidate_BufferHoldsLargestPayload(t *testing.T) {
	cfg := validConfig()
	cfg.Dispatch.BufferSize = 255
	require.NoError(t, Validate(cfg))
	cfg.Dispatch.BufferSize = 0
	require.NoError(t, Validate(cfg), "zero selects the default size")
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := validConfig()
	cfg.Board.Antenna.Variant = ""
	Normalize(cfg)
	require.Equal(t, AntennaThreeWire, cfg.Board.Antenna.Variant)
	require.Equal(t, 4, cfg.Dispatch.TaskCapacity)
	require.Equal(t, 512, cfg.Dispatch.BufferSize)
	require.Equal(t, 115200, cfg.Board.Console.Baud)
	require.Equal(t, "/dev/hwrng", cfg.Board.RNGDevice)
	require.Len(t, cfg.Radio.Key(), 16)
}

func TestLoad(t *testing.T) {
	yml := `
board:
  gpio_chip: gpiochip0
  spi_device: /dev/spidev0.0
  power_ceiling: 17
  pins:
    reset: 17
    nss: 8
    radio_irq: 22
  antenna:
    variant: one_wire
    ant_en: 23
  console:
    tty: /dev/ttyS0
radio:
  oui: 1
  device_id: 3
  preshared_key: 7b60c0f0775150d302ceae50a0d211c1
`
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Board.PowerCeiling)
	require.Equal(t, uint8(17), *cfg.Board.PowerCeiling)
	require.Nil(t, cfg.Board.Pins.Busy, "busy pin must stay unset")
	require.Equal(t, uint16(3), cfg.Radio.DeviceID)
	require.Equal(t, uint32(915000000), cfg.Radio.FrequencyHz)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_RepoSample(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "board.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Board.Pins.Busy)
	require.Equal(t, uint32(125), cfg.Radio.BandwidthKHz)
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("board: [unterminated"))
	require.Error(t, err)
}
