//go:build linux && !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mazen160/go-random"
	"github.com/mbalug7/go-longfi-board/pkg/app"
	"github.com/mbalug7/go-longfi-board/pkg/board"
	"github.com/mbalug7/go-longfi-board/pkg/buffer"
	"github.com/mbalug7/go-longfi-board/pkg/config"
	"github.com/mbalug7/go-longfi-board/pkg/dispatch"
	"github.com/mbalug7/go-longfi-board/pkg/hal"
	"github.com/mbalug7/go-longfi-board/pkg/irq"
	"github.com/mbalug7/go-longfi-board/pkg/sx126x"
)

// radioOptions maps the radio section of the config file to engine options.
func radioOptions(cfg config.RadioConfig) (sx126x.Options, error) {
	bw, ok := sx126x.BandwidthFromKHz(cfg.BandwidthKHz)
	if !ok {
		return sx126x.Options{}, fmt.Errorf("unsupported bandwidth %d kHz", cfg.BandwidthKHz)
	}
	return sx126x.Options{
		OUI:             cfg.OUI,
		DeviceID:        cfg.DeviceID,
		AuthMode:        sx126x.AuthPresharedKey128,
		PresharedKey:    cfg.Key(),
		FrequencyHz:     cfg.FrequencyHz,
		SpreadingFactor: cfg.SpreadingFactor,
		Bandwidth:       bw,
		CodingRate:      sx126x.CodingRate(cfg.CodingRate - 4),
		TxPowerDbm:      cfg.TxPowerDbm,
		PreambleLength:  cfg.PreambleLength,
		TxJitterMaxMs:   cfg.TxJitterMaxMs,
	}, nil
}

func printConsole(w io.Writer, s string) {
	if _, err := io.WriteString(w, s); err != nil {
		log.Printf("console write failed: %s", err)
	}
}

func main() {
	configPath := flag.String("config", "board.yaml", "path to the board config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Board.Pins.Busy == nil {
		log.Fatal("board.pins.busy is required, the SX126x cannot be driven without its busy line")
	}

	session, err := random.String(8)
	if err != nil {
		log.Fatalf("failed to generate session tag: %s", err)
	}
	log.SetPrefix(fmt.Sprintf("[%s] ", session))

	// request lines, open SPI, RNG and the console, and fill the capability table
	hw, err := board.NewLinux(cfg.Board)
	if err != nil {
		log.Fatal(err)
	}

	opts, err := radioOptions(cfg.Radio)
	if err != nil {
		log.Fatal(err)
	}
	release := hw.Table.Lease()
	radio, err := sx126x.New(hw.Table, opts)
	release()
	if err != nil {
		log.Fatal(err)
	}
	oui, deviceID := radio.Identity()
	log.Printf("radio ready, oui %d device %d", oui, deviceID)

	printConsole(hw.Console(), "LongFi Device Test\r\n")

	d := dispatch.New()
	a := app.New(d, radio, hw.Table, buffer.New(cfg.Dispatch.BufferSize), hw.Console(), cfg.Dispatch.TaskCapacity)
	// handlers only queue work, nothing runs until the dispatcher starts
	radioIRQ := irq.NewRadioLine(hw.RadioLine(), hal.DIO0, a.RadioEvent)
	consoleRx := irq.NewSerialRx(hw.ConsoleRx(), a.SendPing)
	hw.OnRadioIRQ(radioIRQ.Handle)
	hw.OnConsoleRx(consoleRx.Handle)

	if err := a.Start(); err != nil {
		log.Fatal(err)
	}

	printConsole(hw.Console(), "Going to main loop\r\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("dispatcher stopped: %s", err)
	}
	err = hw.Close()
	if err != nil {
		log.Printf("failed to close board: %s", err)
	}
}
