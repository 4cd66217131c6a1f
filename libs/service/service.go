// Package service provides the start/stop lifecycle shared by long-running
// bridge components.
package service

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/darwinia-network/bridge-relay/libs/log"
)

var (
	// ErrAlreadyStarted is returned when somebody tries to start an already
	// running service.
	ErrAlreadyStarted = errors.New("already started")
	// ErrAlreadyStopped is returned when somebody tries to stop an already
	// stopped service.
	ErrAlreadyStopped = errors.New("already stopped")
	// ErrNotStarted is returned when somebody tries to stop a service that
	// never ran.
	ErrNotStarted = errors.New("not started")
)

// Service can be started once and stopped once.
type Service interface {
	// Start runs the service until Stop is called or ctx is done.
	Start(context.Context) error
	Stop() error
	IsRunning() bool
	String() string
	// Wait blocks until the service is stopped.
	Wait()
}

// Implementation is the hook set BaseService drives.
type Implementation interface {
	Service

	OnStart(context.Context) error
	OnStop()
}

// BaseService implements Service for an embedding type that provides
// OnStart and OnStop:
//
//	type Relayer struct {
//		service.BaseService
//	}
//
//	r := &Relayer{}
//	r.BaseService = *service.NewBaseService(logger, "Relayer", r)
type BaseService struct {
	logger  log.Logger
	name    string
	started atomic.Bool
	stopped atomic.Bool
	quit    chan struct{}

	impl Implementation
}

// NewBaseService creates a new BaseService. A nil logger discards output.
func NewBaseService(logger log.Logger, name string, impl Implementation) *BaseService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &BaseService{
		logger: logger,
		name:   name,
		quit:   make(chan struct{}),
		impl:   impl,
	}
}

// Start calls OnStart and arranges for Stop to run when ctx is canceled.
func (bs *BaseService) Start(ctx context.Context) error {
	if bs.stopped.Load() {
		return ErrAlreadyStopped
	}
	if !bs.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	bs.logger.Info("starting service", "service", bs.name)
	if err := bs.impl.OnStart(ctx); err != nil {
		bs.started.Store(false)
		return err
	}

	go func() {
		select {
		case <-bs.quit:
		case <-ctx.Done():
			if err := bs.Stop(); err != nil && !errors.Is(err, ErrAlreadyStopped) {
				bs.logger.Error("stopping service", "service", bs.name, "err", err)
			}
		}
	}()

	return nil
}

// Stop calls OnStop and releases everything blocked in Wait.
func (bs *BaseService) Stop() error {
	if !bs.stopped.CompareAndSwap(false, true) {
		return ErrAlreadyStopped
	}
	if !bs.started.Load() {
		bs.stopped.Store(false)
		return ErrNotStarted
	}

	bs.logger.Info("stopping service", "service", bs.name)
	bs.impl.OnStop()
	close(bs.quit)
	return nil
}

// IsRunning reports whether the service was started and not stopped.
func (bs *BaseService) IsRunning() bool {
	return bs.started.Load() && !bs.stopped.Load()
}

// Wait blocks until the service is stopped.
func (bs *BaseService) Wait() { <-bs.quit }

func (bs *BaseService) String() string { return bs.name }
