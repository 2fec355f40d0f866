package storage

import (
	"errors"
	"fmt"

	"github.com/tuffrabit/tinygo-epd-link/pkg/config"
)

// BootOptions selects maintenance done before settings are read.
type BootOptions struct {
	Wipe   bool   // erase stored settings and banner first (factory reset)
	Banner string // when non-empty, replaces a different stored banner
}

// BootReport is what Boot found and did.
type BootReport struct {
	Settings    config.Settings
	Banner      string // empty when none is stored
	Created     bool   // default settings were written
	Wiped       bool
	BannerSaved bool
	Stats       *Stats
}

// Boot runs the boot-time storage sequence: optional wipe, settings load or
// init, banner provisioning, then stats. Settings fall back to defaults on
// error; the report is always usable.
func (m *Manager) Boot(opts BootOptions) (BootReport, error) {
	rep := BootReport{Wiped: m.wiped}

	if opts.Wipe {
		if err := m.ForceWipe(); err != nil {
			rep.Settings = config.Default()
			return rep, fmt.Errorf("wipe: %w", err)
		}
		rep.Wiped = true
	}

	created, err := m.LoadOrInit(&rep.Settings)
	if err != nil {
		rep.Settings = config.Default()
		return rep, fmt.Errorf("settings: %w", err)
	}
	rep.Created = created

	var errs []error
	if opts.Banner != "" {
		stored, err := m.LoadBanner()
		if err != nil || stored != opts.Banner {
			if err := m.SaveBanner(opts.Banner); err != nil {
				errs = append(errs, fmt.Errorf("save banner: %w", err))
			} else {
				rep.BannerSaved = true
			}
		}
	}

	banner, err := m.LoadBanner()
	switch {
	case err == nil:
		rep.Banner = banner
	case !errors.Is(err, ErrBannerNotFound):
		errs = append(errs, fmt.Errorf("load banner: %w", err))
	}

	stats, err := m.GetStats()
	if err != nil {
		errs = append(errs, fmt.Errorf("stats: %w", err))
	}
	rep.Stats = stats

	return rep, errors.Join(errs...)
}
