package bindings

import (
	"fmt"

	"github.com/mbalug7/go-longfi-board/pkg/hal"
)

// AntennaSwitch drives the RF switching network for a given antenna path.
type AntennaSwitch interface {
	Apply(mode hal.AntennaMode) error
}

type threeWireLineState struct {
	antEn int
	seCsd int
	seCps int
	seCtx int
}

var threeWireModes = map[hal.AntennaMode]*threeWireLineState{
	hal.AntModeSleep: {antEn: 0, seCsd: 0, seCps: 0, seCtx: 0},
	hal.AntModeTx:    {antEn: 0, seCsd: 1, seCps: 1, seCtx: 1},
	hal.AntModeRx:    {antEn: 1, seCsd: 1, seCps: 1, seCtx: 0},
}

// ThreeWire is the antenna enable line plus the front-end module CSD/CPS/CTX lines.
type ThreeWire struct {
	AntEn hal.OutputLine
	SeCsd hal.OutputLine
	SeCps hal.OutputLine
	SeCtx hal.OutputLine
}

func NewThreeWire(antEn, seCsd, seCps, seCtx hal.OutputLine) *ThreeWire {
	return &ThreeWire{AntEn: antEn, SeCsd: seCsd, SeCps: seCps, SeCtx: seCtx}
}

func (obj *ThreeWire) Apply(mode hal.AntennaMode) error {
	state, ok := threeWireModes[mode]
	if !ok {
		return fmt.Errorf("failed to set unsupported antenna mode: %d", mode)
	}
	// every line is written on every transition, nothing carries over from the previous mode
	if err := obj.AntEn.SetValue(state.antEn); err != nil {
		return fmt.Errorf("failed to set ANT_EN line for %s: %w", mode, err)
	}
	if err := obj.SeCps.SetValue(state.seCps); err != nil {
		return fmt.Errorf("failed to set SE_CPS line for %s: %w", mode, err)
	}
	if err := obj.SeCsd.SetValue(state.seCsd); err != nil {
		return fmt.Errorf("failed to set SE_CSD line for %s: %w", mode, err)
	}
	if err := obj.SeCtx.SetValue(state.seCtx); err != nil {
		return fmt.Errorf("failed to set SE_CTX line for %s: %w", mode, err)
	}
	return nil
}

// OneWire collapses Tx and Rx onto a single enable line.
type OneWire struct {
	En hal.OutputLine
}

func NewOneWire(en hal.OutputLine) *OneWire {
	return &OneWire{En: en}
}

func (obj *OneWire) Apply(mode hal.AntennaMode) error {
	value := 0
	switch mode {
	case hal.AntModeTx, hal.AntModeRx:
		value = 1
	case hal.AntModeSleep:
	default:
		return fmt.Errorf("failed to set unsupported antenna mode: %d", mode)
	}
	if err := obj.En.SetValue(value); err != nil {
		return fmt.Errorf("failed to set antenna enable line for %s: %w", mode, err)
	}
	return nil
}
