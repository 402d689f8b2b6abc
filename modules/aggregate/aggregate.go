package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/chebyrash/promise"
)

type Aggregate struct {
	ctx     context.Context
	cancel  context.CancelFunc
	plugins []Plugin

	// number of plugins whose Init succeeded, only those get stopped
	initialized int
}

var _ Plugin = &Aggregate{}

func New(plugins []Plugin) *Aggregate {
	ctx, cancel := context.WithCancel(context.Background())
	return &Aggregate{
		ctx:     ctx,
		cancel:  cancel,
		plugins: plugins,
	}
}

// Run initializes and starts every plugin, waits for all start promises to
// settle and then stops everything.
func (a *Aggregate) Run() error {
	if err := a.Init(); err != nil {
		return errors.Join(err, a.Stop())
	}

	if _, err := a.Start().Await(a.ctx); err != nil {
		return errors.Join(err, a.Stop())
	}

	return a.Stop()
}

// Init implements Plugin.
func (a *Aggregate) Init() error {
	for i, p := range a.plugins {
		if err := p.Init(); err != nil {
			return fmt.Errorf("init plugin %d (%T): %w", i, p, err)
		}
		a.initialized = i + 1
	}
	return nil
}

// Start implements Plugin.
func (a *Aggregate) Start() *promise.Promise[any] {
	promises := make([]*promise.Promise[any], len(a.plugins))
	for i, p := range a.plugins {
		promises[i] = p.Start()
	}
	return promise.Then(
		promise.All(a.ctx, promises...),
		a.ctx,
		func([]any) (any, error) {
			return nil, nil
		},
	)
}

// Stop implements Plugin.
func (a *Aggregate) Stop() error {
	defer a.cancel()

	var errs []error
	for i := a.initialized - 1; i >= 0; i-- {
		p := a.plugins[i]
		if err := p.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop plugin %d (%T): %w", i, p, err))
		}
	}
	a.initialized = 0
	return errors.Join(errs...)
}
