package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/shashiranjanraj/leppupy/config"
	"github.com/shashiranjanraj/leppupy/pkg/logger"
)

// Manager holds the configured disks.
type Manager struct {
	mu          sync.RWMutex
	disks       map[string]Disk
	defaultDisk string
}

// NewManager creates a manager whose default disk is name.
func NewManager(defaultDisk string) *Manager {
	return &Manager{disks: map[string]Disk{}, defaultDisk: defaultDisk}
}

// Connect boots the local disk and, when S3_BUCKET is set, the s3 disk.
// An unusable s3 disk is logged and skipped; the default then falls back
// to local.
func Connect(ctx context.Context) (*Manager, error) {
	m := NewManager(config.StorageDefault())
	local, err := NewLocal(config.StorageLocalRoot(), config.StorageURL())
	if err != nil {
		return nil, err
	}
	m.Register("local", local)

	if config.StorageS3Bucket() != "" {
		d, err := NewS3(ctx, S3Options{
			Bucket:   config.StorageS3Bucket(),
			Region:   config.StorageS3Region(),
			Key:      config.StorageS3Key(),
			Secret:   config.StorageS3Secret(),
			Endpoint: config.StorageS3Endpoint(),
			BaseURL:  config.StorageS3URL(),
		})
		if err != nil {
			logger.Warn("storage: s3 disk disabled", "error", err)
		} else {
			m.Register("s3", d)
		}
	}

	if _, ok := m.lookup(m.defaultDisk); !ok {
		logger.Warn("storage: default disk unavailable, using local", "disk", m.defaultDisk)
		m.defaultDisk = "local"
	}
	return m, nil
}

// Register adds or replaces a disk.
func (m *Manager) Register(name string, d Disk) {
	m.mu.Lock()
	m.disks[name] = d
	m.mu.Unlock()
}

func (m *Manager) lookup(name string) (Disk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.disks[name]
	return d, ok
}

// Use returns the named disk.
func (m *Manager) Use(name string) (Disk, error) {
	d, ok := m.lookup(name)
	if !ok {
		return nil, fmt.Errorf("storage: disk %q is not configured", name)
	}
	return d, nil
}

// Default returns the default disk. It panics if none was registered,
// which only happens with a hand-built Manager.
func (m *Manager) Default() Disk {
	d, err := m.Use(m.defaultDisk)
	if err != nil {
		panic(err)
	}
	return d
}
