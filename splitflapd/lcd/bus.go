package lcd

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers/hd44780i2c"

	"github.com/harveysanders/splitflap/config"
)

// commonAddrs are the usual addresses of PCF8574 LCD backpacks.
var commonAddrs = []uint8{0x27, 0x3F}

// Open initializes the host I2C bus named in cfg and the HD44780 behind it.
// A zero address probes the common backpack addresses. The returned closer
// releases the bus.
func Open(cfg config.LCD) (*hd44780i2c.Device, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("lcd: host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, nil, fmt.Errorf("lcd: opening i2c bus %q: %w", cfg.Bus, err)
	}

	addr, err := findAddr(bus, cfg.Address)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	dev := hd44780i2c.New(bus, addr)
	dev.Configure(hd44780i2c.Config{
		Width:  uint8(cfg.Width),
		Height: uint8(cfg.Height),
	})
	dev.ClearDisplay()
	return &dev, bus, nil
}

// findAddr returns addr, or when it is zero the first common address that
// acknowledges a read.
func findAddr(bus i2c.Bus, addr uint8) (uint8, error) {
	if addr != 0 {
		return addr, nil
	}
	buf := make([]byte, 1)
	for _, a := range commonAddrs {
		if err := bus.Tx(uint16(a), nil, buf); err == nil {
			return a, nil
		}
	}
	return 0, errors.New("lcd: no LCD found on addresses 0x27, 0x3f")
}
