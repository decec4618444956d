// Package backend provides the drivers behind a disk and a manager for
// named disks. Every disk exposes a *versioning.Controller.
package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/szhorvath/s3plus/pkg/s3client"
	"github.com/szhorvath/s3plus/pkg/types"
	"github.com/szhorvath/s3plus/pkg/versioning"
)

// Driver is what a factory hands back: the object API and, when the driver
// can sign requests, a presigner
type Driver struct {
	API       versioning.ObjectAPI
	Presigner versioning.Presigner
}

// Registry holds registered driver factories
var (
	registryMu sync.RWMutex
	registry   = make(map[types.StorageType]Factory)
)

// Factory creates a Driver from config
type Factory func(ctx context.Context, cfg types.DiskConfig, pool *s3client.Pool) (*Driver, error)

// Register adds a factory for a storage type
func Register(t types.StorageType, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = f
}

// New creates a Driver from config
func New(ctx context.Context, cfg types.DiskConfig, pool *s3client.Pool) (*Driver, error) {
	registryMu.RLock()
	f, ok := registry[cfg.Driver]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Driver)
	}
	return f(ctx, cfg, pool)
}

// ControllerConfig maps disk options onto the controller config
func ControllerConfig(cfg types.DiskConfig) versioning.Config {
	return versioning.Config{
		Bucket:            cfg.Bucket,
		Root:              cfg.Root,
		Policy:            versioning.PolicyFromThrow(cfg.Throw),
		StreamReads:       cfg.StreamReads,
		URL:               cfg.URL,
		TemporaryURL:      cfg.TemporaryURL,
		Endpoint:          cfg.Endpoint,
		Region:            cfg.Region,
		UsePathStyle:      cfg.UsePathStyle,
		DeleteConcurrency: cfg.DeleteConcurrency,
		DeleteRateLimit:   cfg.DeleteRateLimit,
	}
}

// Disk is a configured, ready-to-use disk
type Disk struct {
	Name       string
	Config     types.DiskConfig
	Driver     *Driver
	Controller *versioning.Controller
}

// Manager tracks named disks
type Manager struct {
	mu    sync.RWMutex
	disks map[string]*Disk
	pool  *s3client.Pool
}

// NewManager creates a disk manager. Disks share S3 clients through pool.
func NewManager(pool *s3client.Pool) *Manager {
	if pool == nil {
		pool = s3client.NewPool(0, 0)
	}
	return &Manager{
		disks: make(map[string]*Disk),
		pool:  pool,
	}
}

// Add validates cfg, creates the driver and registers the disk under name,
// replacing any disk with the same name
func (m *Manager) Add(ctx context.Context, name string, cfg types.DiskConfig) (*Disk, error) {
	if err := types.ValidateDisk(name, cfg).Err(); err != nil {
		return nil, fmt.Errorf("invalid disk %s: %w", name, err)
	}

	driver, err := New(ctx, cfg, m.pool)
	if err != nil {
		return nil, fmt.Errorf("create disk %s: %w", name, err)
	}

	var opts []versioning.Option
	if driver.Presigner != nil {
		opts = append(opts, versioning.WithPresigner(driver.Presigner))
	}
	ctrl, err := versioning.NewController(driver.API, ControllerConfig(cfg), opts...)
	if err != nil {
		return nil, fmt.Errorf("create disk %s: %w", name, err)
	}

	disk := &Disk{Name: name, Config: cfg, Driver: driver, Controller: ctrl}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.disks[name] = disk
	return disk, nil
}

// Get retrieves a disk by name
func (m *Manager) Get(name string) (*Disk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.disks[name]
	return d, ok
}

// Remove forgets a disk
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.disks, name)
}

// List returns all disk names, sorted
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.disks))
	for name := range m.disks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close forgets all disks and releases pooled connections
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disks = make(map[string]*Disk)
	return m.pool.Close()
}
