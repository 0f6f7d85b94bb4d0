package gapjl

import (
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/ssiccha/GAP.jl/anchor"
)

// Config holds the validated settings of a Bridge. Embedders normally use
// functional options; Config exists so settings can also come from a file
// (see the config package) and be schema-described for tooling.
type Config struct {
	// StorageGlobal is the guest global name of the anchor storage array.
	StorageGlobal string `json:"storage_global" yaml:"storage_global" validate:"required"`
	// FreeListGlobal is the guest global name of the anchor free-list array.
	FreeListGlobal string `json:"free_list_global" yaml:"free_list_global" validate:"required,nefield=StorageGlobal"`
	// AnchorFuncs anchors function handles like value handles instead of
	// relying on the guest namespace rooting them.
	AnchorFuncs bool `json:"anchor_funcs" yaml:"anchor_funcs"`
}

// DefaultConfig returns the settings a zero-option Bridge runs with.
func DefaultConfig() Config {
	return Config{
		StorageGlobal:  anchor.DefaultStorageGlobal,
		FreeListGlobal: anchor.DefaultFreeListGlobal,
	}
}

// validate is a package-level singleton; constructing a validator per call is
// expensive.
var validate = validator.New()

// Validate checks the config against its validation tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("bridge config validation failed: %w", err)
	}
	return nil
}

// Option configures a Bridge.
type Option func(*settings)

type settings struct {
	cfg    Config
	logger *slog.Logger
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(s *settings) {
		s.cfg = cfg
	}
}

// WithStorageGlobal sets the guest global name of the anchor storage array.
func WithStorageGlobal(name string) Option {
	return func(s *settings) {
		s.cfg.StorageGlobal = name
	}
}

// WithFreeListGlobal sets the guest global name of the anchor free list.
func WithFreeListGlobal(name string) Option {
	return func(s *settings) {
		s.cfg.FreeListGlobal = name
	}
}

// WithAnchoredFuncs makes Function anchor the resolved callable in the
// anchor table, like any other value. The default trusts the guest namespace
// to root named callables; enable this when the guest allows rebinding names.
func WithAnchoredFuncs() Option {
	return func(s *settings) {
		s.cfg.AnchorFuncs = true
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}
