// Command epdsend drives the e-paper link firmware from a host: it can start
// the pulse loop or send an image or a text page as a packed frame.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/signal"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/tuffrabit/tinygo-epd-link/pkg/epd"
	"github.com/tuffrabit/tinygo-epd-link/pkg/hostlink"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "epdsend: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("epdsend", flag.ContinueOnError)
	configPath := fs.String("config", "", "TOML config file")
	port := fs.String("port", "", "serial port of the device")
	baud := fs.Int("baud", 115200, "serial baud rate")
	pulse := fs.Bool("pulse", false, "start the pulse loop")
	imagePath := fs.String("image", "", "image file to send")
	text := fs.String("text", "", "text to lay out and send as a page")
	rotate := fs.Int("rotate", 0, "clockwise rotation in degrees before packing")
	invert := fs.Bool("invert", false, "send a negative")
	verbose := fs.Bool("v", false, "debug logging")
	list := fs.Bool("list", false, "list serial ports and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := defaultSendConfig()
	if *configPath != "" {
		loaded, err := loadSendConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyFlags(fs, &cfg, *port, *baud, *rotate, *invert, *verbose)

	logger := newLogger(cfg.Debug)

	if *list {
		ports, err := hostlink.Ports()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	}

	if !*pulse && *imagePath == "" && *text == "" {
		return fmt.Errorf("nothing to do: pass -pulse, -image or -text")
	}
	if *imagePath != "" && *text != "" {
		return fmt.Errorf("-image and -text are exclusive")
	}
	if cfg.Port == "" {
		return fmt.Errorf("no serial port: pass -port or set port in the config")
	}

	var frame []byte
	if *imagePath != "" {
		var err error
		frame, err = loadFrame(*imagePath, cfg.Rotate, cfg.Invert)
		if err != nil {
			return err
		}
		logger.Debug().Str("image", *imagePath).Int("bytes", len(frame)).Msg("image packed")
	}
	if *text != "" {
		var err error
		frame, err = textFrame(*text, cfg.Rotate, cfg.Invert)
		if err != nil {
			return err
		}
		logger.Debug().Int("chars", len(*text)).Int("bytes", len(frame)).Msg("text packed")
	}

	sp, err := hostlink.Open(cfg.Port, cfg.Baud)
	if err != nil {
		return err
	}
	defer sp.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := hostlink.NewClient(sp, logger, cfg.Client)

	if *pulse {
		if err := client.Pulse(ctx); err != nil {
			return fmt.Errorf("pulse: %w", err)
		}
		logger.Info().Str("port", cfg.Port).Msg("device pulsing")
	}

	if frame != nil {
		start := time.Now()
		if err := client.SendFrame(ctx, frame); err != nil {
			return fmt.Errorf("send frame: %w", err)
		}
		logger.Info().
			Int("bytes", len(frame)).
			Dur("elapsed", time.Since(start)).
			Msg("frame rendered")
	}

	return nil
}

// applyFlags overlays flags given on the command line onto cfg.
func applyFlags(fs *flag.FlagSet, cfg *sendConfig, port string, baud, rotate int, invert, verbose bool) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = port
		case "baud":
			cfg.Baud = baud
		case "rotate":
			cfg.Rotate = rotate
		case "invert":
			cfg.Invert = invert
		case "v":
			cfg.Debug = verbose
		}
	})
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", "epdsend").Logger()
}

func loadFrame(path string, rotate int, invert bool) ([]byte, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	return packImage(img, rotate, invert)
}

// textFrame renders text on a page that is portrait once rotated.
func textFrame(text string, rotate int, invert bool) ([]byte, error) {
	w, h := epd.NativeWidth, epd.NativeHeight
	if q := ((rotate % 360) + 360) % 360; q == 90 || q == 270 {
		w, h = h, w
	}
	img, err := hostlink.RenderText(text, w, h)
	if err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}
	return packImage(img, rotate, invert)
}

func packImage(img image.Image, rotate int, invert bool) ([]byte, error) {
	rotated, err := hostlink.Rotate(img, rotate)
	if err != nil {
		return nil, err
	}
	return hostlink.Pack(rotated, epd.NativeWidth, epd.NativeHeight, invert)
}
