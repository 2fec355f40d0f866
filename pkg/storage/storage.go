// Package storage persists firmware settings and the boot banner using LittleFS.
// It handles atomic writes, version checking, and cleanup of temporary files.
package storage

import (
	"errors"
	"os"
	"path"
	"strings"

	"github.com/tuffrabit/tinygo-epd-link/pkg/config"

	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/littlefs"
)

const (
	configDir    = "/config"
	settingsFile = "/config/settings.bin"
	bannerFile   = "/config/banner.txt"
	tempSuffix   = ".tmp"

	// MaxBannerSize bounds the stored banner text.
	MaxBannerSize = 128
)

var (
	ErrSettingsNotFound = errors.New("settings not found")
	ErrBannerNotFound   = errors.New("banner not found")
	ErrBannerTooLong    = errors.New("banner too long")
	ErrInvalidSettings  = errors.New("invalid settings data")
)

// Manager handles settings persistence using LittleFS.
type Manager struct {
	fs       *littlefs.LFS
	blockDev tinyfs.BlockDevice
	mounted  bool
	wiped    bool
}

// Stats provides information about storage usage.
type Stats struct {
	TotalSpace  int64
	UsedSpace   int64
	FreeSpace   int64
	HasSettings bool
	HasBanner   bool
}

// New mounts the filesystem on blockDev and performs boot-time cleanup.
// If format is true and mount fails, the device is formatted.
func New(blockDev tinyfs.BlockDevice, format bool) (*Manager, error) {
	lfs := littlefs.New(blockDev)
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 128,
	})

	if err := lfs.Mount(); err != nil {
		if !format {
			return nil, err
		}
		if err := lfs.Format(); err != nil {
			return nil, err
		}
		if err := lfs.Mount(); err != nil {
			return nil, err
		}
	}

	m := &Manager{
		fs:       lfs,
		blockDev: blockDev,
		mounted:  true,
	}

	// Leftover temp files are harmless; cleanup failure is not fatal.
	_ = m.bootCleanup()

	stale, err := m.checkVersion()
	if err != nil {
		stale = false
	}
	if stale {
		if err := m.wipeAll(); err != nil {
			return nil, err
		}
		m.wiped = true
	}

	return m, nil
}

// Close unmounts the filesystem.
func (m *Manager) Close() error {
	if m.mounted {
		m.mounted = false
		return m.fs.Unmount()
	}
	return nil
}

// Wiped reports whether New discarded settings written by another format
// version.
func (m *Manager) Wiped() bool {
	return m.wiped
}

// bootCleanup removes temporary files left over from interrupted writes.
func (m *Manager) bootCleanup() error {
	entries, err := m.readDir(configDir)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, tempSuffix) {
			m.fs.Remove(path.Join(configDir, name))
		}
	}
	return nil
}

func (m *Manager) readDir(dirPath string) ([]os.FileInfo, error) {
	f, err := m.fs.Open(dirPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !f.IsDir() {
		return nil, errors.New("not a directory")
	}
	return f.Readdir(-1)
}

// checkVersion returns true when stored settings carry another version.
func (m *Manager) checkVersion() (bool, error) {
	var s config.Settings
	if err := m.LoadSettings(&s); err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.Version != config.CurrentVersion, nil
}

func (m *Manager) wipeAll() error {
	m.fs.Remove(settingsFile)
	m.fs.Remove(bannerFile)
	return nil
}

func (m *Manager) ensureDir() error {
	if err := m.fs.Mkdir(configDir, 0755); err != nil && !isExist(err) {
		return err
	}
	return nil
}

// isExist checks for "already exists"; LittleFS errors don't always match
// os.IsExist.
func isExist(err error) bool {
	if err == nil {
		return false
	}
	return os.IsExist(err) || strings.Contains(err.Error(), "already exists")
}

func isNotExist(err error) bool {
	if err == nil {
		return false
	}
	return os.IsNotExist(err) || strings.Contains(err.Error(), "No directory entry")
}

// LoadSettings reads the stored settings.
func (m *Manager) LoadSettings(s *config.Settings) error {
	data, err := m.readFile(settingsFile, config.SettingsSize)
	if err != nil {
		if isNotExist(err) {
			return ErrSettingsNotFound
		}
		return err
	}
	if len(data) != config.SettingsSize {
		return ErrInvalidSettings
	}
	return s.UnmarshalBinary(data)
}

// SaveSettings stamps the current version and writes s atomically.
func (m *Manager) SaveSettings(s *config.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := m.ensureDir(); err != nil {
		return err
	}

	s.Version = config.CurrentVersion
	data, err := s.MarshalBinary()
	if err != nil {
		return err
	}
	return m.atomicWrite(settingsFile, data)
}

// LoadOrInit loads the stored settings, or writes and returns the defaults
// when none are stored or the stored record is unusable. The returned bool
// is true when defaults were written.
func (m *Manager) LoadOrInit(s *config.Settings) (bool, error) {
	err := m.LoadSettings(s)
	if err == nil {
		if verr := s.Validate(); verr == nil {
			return false, nil
		}
	} else if !errors.Is(err, ErrSettingsNotFound) && !errors.Is(err, ErrInvalidSettings) {
		return false, err
	}

	*s = config.Default()
	return true, m.SaveSettings(s)
}

// LoadBanner returns the stored banner text.
func (m *Manager) LoadBanner() (string, error) {
	data, err := m.readFile(bannerFile, MaxBannerSize)
	if err != nil {
		if isNotExist(err) {
			return "", ErrBannerNotFound
		}
		return "", err
	}
	return string(data), nil
}

// SaveBanner writes the banner text atomically.
func (m *Manager) SaveBanner(text string) error {
	if len(text) > MaxBannerSize {
		return ErrBannerTooLong
	}
	if err := m.ensureDir(); err != nil {
		return err
	}
	return m.atomicWrite(bannerFile, []byte(text))
}

// GetStats returns storage statistics.
func (m *Manager) GetStats() (*Stats, error) {
	stats := &Stats{
		TotalSpace: m.blockDev.Size(),
	}

	// LittleFS has no free-space query; estimate from what we store.
	// Each file carries roughly 32 bytes of metadata.
	used := int64(100)
	if size, ok := m.fileSize(settingsFile); ok {
		stats.HasSettings = true
		used += size + 32
	}
	if size, ok := m.fileSize(bannerFile); ok {
		stats.HasBanner = true
		used += size + 32
	}

	stats.UsedSpace = used
	stats.FreeSpace = stats.TotalSpace - used
	return stats, nil
}

// ForceWipe erases all stored configuration.
func (m *Manager) ForceWipe() error {
	return m.wipeAll()
}

func (m *Manager) fileSize(name string) (int64, bool) {
	info, err := m.fs.Stat(name)
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}

func (m *Manager) readFile(name string, max int) ([]byte, error) {
	f, err := m.fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, max)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		// An empty file reads as EOF.
		if size, ok := m.fileSize(name); ok && size == 0 {
			return []byte{}, nil
		}
		return nil, err
	}
	return buf[:n], nil
}

// atomicWrite writes data to a temporary file, syncs it, then renames it
// over the target so the target is never partially written.
func (m *Manager) atomicWrite(target string, data []byte) error {
	tempPath := target + tempSuffix
	m.fs.Remove(tempPath)

	f, err := m.fs.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		m.fs.Remove(tempPath)
		return err
	}

	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			m.fs.Remove(tempPath)
			return err
		}
	}

	if err := f.Close(); err != nil {
		m.fs.Remove(tempPath)
		return err
	}

	// LittleFS rename does not replace an existing target.
	m.fs.Remove(target)
	if err := m.fs.Rename(tempPath, target); err != nil {
		m.fs.Remove(tempPath)
		return err
	}
	return nil
}
