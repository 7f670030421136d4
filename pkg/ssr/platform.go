package ssr

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	v8 "github.com/stumble/v8go"
)

// Option configures process-wide VM state. Options only take effect on the
// first call to Init.
type Option interface {
	Apply() error
}

type MaxHeapSizeOption struct {
	HeapSizeMB uint
}

func (o MaxHeapSizeOption) Apply() error {
	if o.HeapSizeMB == 0 {
		return nil
	}
	v8.SetFlags(fmt.Sprintf("--max-heap-size=%d", o.HeapSizeMB))
	return nil
}

// FlagsOption passes raw V8 flags, e.g. "--stack-size=984".
type FlagsOption struct {
	Flags []string
}

func (o FlagsOption) Apply() error {
	for _, f := range o.Flags {
		if f == "" {
			return fmt.Errorf("empty v8 flag")
		}
	}
	v8.SetFlags(o.Flags...)
	return nil
}

var (
	initOnce    sync.Once
	initErr     error
	initialized atomic.Bool
)

// Init brings up the process-wide V8 state. It must be called before the
// first engine is constructed. It is safe to call any number of times from
// any goroutine: only the first call does work, later calls return the
// result of the first one and ignore their options.
func Init(options ...Option) error {
	initOnce.Do(func() {
		for _, opt := range options {
			if err := opt.Apply(); err != nil {
				initErr = fmt.Errorf("failed to apply option: %w", err)
				return
			}
		}
		initialized.Store(true)
		log.Debug().Str("v8", v8.Version()).Msg("ssr platform initialized")
	})
	return initErr
}

// Initialized reports whether Init has completed successfully.
func Initialized() bool {
	return initialized.Load()
}
