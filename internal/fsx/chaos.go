package fsx

import (
	"errors"
	"io/fs"
	"math/rand"
	"os"
	"sync"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection. Partially initialized configs
// only inject faults for the specified rates; unset fields default to 0.0.
type ChaosConfig struct {
	// OpenFailRate controls how often FS.Open and FS.OpenFile fail,
	// returning EACCES.
	OpenFailRate float64

	// ReadFailRate controls how often FS.ReadFile and File.Read fail
	// entirely, returning zero bytes and an EIO error.
	ReadFailRate float64

	// StatFailRate controls how often FS.Stat, FS.Lstat, and File.Stat
	// fail, returning EIO.
	StatFailRate float64
}

// InjectedError marks an error as intentionally injected by [Chaos].
//
// It wraps the underlying error so errors.Is/As continue to work.
type InjectedError struct {
	Err error
}

// Error returns the underlying error's message.
func (e *InjectedError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *InjectedError) Unwrap() error {
	return e.Err
}

// IsInjected reports whether err (or any wrapped error) was injected by [Chaos].
// Returns false if err is nil.
func IsInjected(err error) bool {
	if err == nil {
		return false
	}

	var injected *InjectedError

	return errors.As(err, &injected)
}

// Chaos implements [FS] by delegating to an underlying filesystem while
// injecting failures at the configured rates. It is safe for concurrent use.
//
// The enforcement hooks must deny whenever the filesystem misbehaves;
// Chaos exists to prove that property without unplugging disks.
type Chaos struct {
	under FS

	mu  sync.Mutex
	cfg ChaosConfig
	rng *rand.Rand
}

// NewChaos wraps under with fault injection. The seed makes failure
// sequences reproducible across runs.
func NewChaos(under FS, cfg ChaosConfig, seed int64) *Chaos {
	return &Chaos{
		under: under,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic test faults
	}
}

// SetConfig replaces the fault rates. Useful for arming injection only
// after test fixtures are in place.
func (c *Chaos) SetConfig(cfg ChaosConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg = cfg
}

// roll returns true when a fault should fire for the given rate.
func (c *Chaos) roll(rate float64) bool {
	if rate <= 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rng.Float64() < rate
}

func (c *Chaos) rate() ChaosConfig {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cfg
}

func injectedPathError(op, path string, errno syscall.Errno) error {
	return &InjectedError{Err: &fs.PathError{Op: op, Path: path, Err: errno}}
}

func (c *Chaos) Open(path string) (File, error) {
	if c.roll(c.rate().OpenFailRate) {
		return nil, injectedPathError("open", path, syscall.EACCES)
	}

	f, err := c.under.Open(path)
	if err != nil {
		return nil, err
	}

	return &chaosFile{File: f, chaos: c, path: path}, nil
}

func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if c.roll(c.rate().OpenFailRate) {
		return nil, injectedPathError("open", path, syscall.EACCES)
	}

	f, err := c.under.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &chaosFile{File: f, chaos: c, path: path}, nil
}

func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if c.roll(c.rate().ReadFailRate) {
		return nil, injectedPathError("read", path, syscall.EIO)
	}

	return c.under.ReadFile(path)
}

func (c *Chaos) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return c.under.WriteFileAtomic(path, data, perm)
}

func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	if c.roll(c.rate().StatFailRate) {
		return nil, injectedPathError("stat", path, syscall.EIO)
	}

	return c.under.Stat(path)
}

func (c *Chaos) Lstat(path string) (os.FileInfo, error) {
	if c.roll(c.rate().StatFailRate) {
		return nil, injectedPathError("lstat", path, syscall.EIO)
	}

	return c.under.Lstat(path)
}

func (c *Chaos) Remove(path string) error {
	return c.under.Remove(path)
}

func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	return c.under.MkdirAll(path, perm)
}

// chaosFile wraps an open [File] and injects read and stat failures.
type chaosFile struct {
	File

	chaos *Chaos
	path  string
}

func (f *chaosFile) Read(p []byte) (int, error) {
	if f.chaos.roll(f.chaos.rate().ReadFailRate) {
		return 0, &InjectedError{Err: syscall.EIO}
	}

	return f.File.Read(p)
}

func (f *chaosFile) Stat() (os.FileInfo, error) {
	if f.chaos.roll(f.chaos.rate().StatFailRate) {
		return nil, injectedPathError("stat", f.path, syscall.EIO)
	}

	return f.File.Stat()
}
