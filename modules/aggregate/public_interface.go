package aggregate

import "github.com/chebyrash/promise"

type Plugin interface {
	// Runs initialization in order of how they are passed in to `Aggregate`
	Init() error
	// Runs startup and should be non blocking
	Start() *promise.Promise[any]
	// Runs cleanup once the `Aggregate` is finished.
	// Plugins are stopped in the reverse order they were initialized in.
	Stop() error
}

// Resolved is the start promise for plugins that have nothing to run.
func Resolved() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		resolve(nil)
	})
}
