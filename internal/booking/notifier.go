package booking

import "context"

// Notifier receives every commit result, successful or not.
type Notifier interface {
	NotifyCommit(ctx context.Context, result CommitResult) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, result CommitResult) error

func (f NotifierFunc) NotifyCommit(ctx context.Context, result CommitResult) error {
	return f(ctx, result)
}

// Notifiers fans a result out to several notifiers, returning the first error.
type Notifiers []Notifier

func (ns Notifiers) NotifyCommit(ctx context.Context, result CommitResult) error {
	var firstErr error
	for _, n := range ns {
		if n == nil {
			continue
		}
		if err := n.NotifyCommit(ctx, result); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
