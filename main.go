package main

import (
	"log/slog"
	"machine"
	"time"

	"github.com/tuffrabit/tinygo-epd-link/pkg/clock"
	"github.com/tuffrabit/tinygo-epd-link/pkg/config"
	"github.com/tuffrabit/tinygo-epd-link/pkg/display"
	"github.com/tuffrabit/tinygo-epd-link/pkg/epd"
	"github.com/tuffrabit/tinygo-epd-link/pkg/protocol"
	"github.com/tuffrabit/tinygo-epd-link/pkg/storage"
	"github.com/tuffrabit/tinygo-epd-link/serial"
)

// Panel wiring (SPI0).
const (
	epdSCK  = machine.GPIO18
	epdSDO  = machine.GPIO19
	epdCS   = machine.GPIO17
	epdDC   = machine.GPIO20
	epdRST  = machine.GPIO21
	epdBUSY = machine.GPIO22
)

// Holding this pin low at reset erases stored settings and banner.
const factoryResetPin = machine.GPIO15

// stepInterval bounds how often the machine polls the serial link.
const stepInterval = time.Millisecond

// bannerText provisions the stored boot banner, e.g.
//
//	tinygo build -ldflags="-X 'main.bannerText=SHELF 3'" -target=pico .
var bannerText string

func factoryResetHeld() bool {
	factoryResetPin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	time.Sleep(time.Millisecond)
	return !factoryResetPin.Get()
}

// MAIN THREAD DUTIES
//
// Boot: settings, panel, banner, debug monitor. Then step the link forever.

func main() {
	machine.UART0.Configure(machine.UARTConfig{BaudRate: 115200})

	settings := config.Default()
	logLevel := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(machine.UART0, &slog.HandlerOptions{Level: logLevel}))

	banner := epd.DefaultBanner
	sm, err := storage.New(machine.Flash, true)
	if err != nil {
		logger.Error("storage unavailable, using defaults", "err", err)
	} else {
		rep, err := sm.Boot(storage.BootOptions{
			Wipe:   factoryResetHeld(),
			Banner: bannerText,
		})
		if err != nil {
			logger.Warn("storage boot incomplete", "err", err)
		}
		settings = rep.Settings
		if rep.Banner != "" {
			banner = rep.Banner
		}
		if st := rep.Stats; st != nil {
			logger.Info("storage",
				"total", st.TotalSpace,
				"used", st.UsedSpace,
				"free", st.FreeSpace,
				"wiped", rep.Wiped,
				"created", rep.Created,
				"banner_saved", rep.BannerSaved)
		}
	}
	logLevel.Set(settings.LogLevel())

	machine.SPI0.Configure(machine.SPIConfig{
		Frequency: 12000000,
		SCK:       epdSCK,
		SDO:       epdSDO,
	})
	panel := epd.NewPanel(epd.PanelConfig{
		Bus:      machine.SPI0,
		CS:       epdCS,
		DC:       epdDC,
		Reset:    epdRST,
		Busy:     epdBUSY,
		Rotation: settings.Rotation,
	})

	if settings.Has(config.FlagBanner) {
		if err := epd.DrawBanner(panel.Displayer(), banner); err != nil {
			logger.Warn("banner draw failed", "err", err)
		}
		panel.PowerOff()
	}

	var mon protocol.Monitor
	if settings.Has(config.FlagDebugDisplay) {
		if dbg := display.NewManager(logger); dbg != nil {
			mon = display.NewMonitor(dbg)
		}
	}

	port := serial.NewPort(machine.Serial) // USB CDC Serial
	m := protocol.NewMachine(port, panel, clock.System{}, settings.ProtocolConfig(logger, mon))

	w, h := panel.Size()
	logger.Info("link ready", "width", w, "height", h, "capacity", protocol.Capacity)

	for {
		m.Step()
		time.Sleep(stepInterval)
	}
}
