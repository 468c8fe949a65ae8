package store

import "context"

// Future is the deferred result of an asynchronous Store operation.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func goFuture[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn()
	}()
	return f
}

// Done is closed when the operation completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the operation completes or ctx is done.
// Abandoning the wait does not cancel the operation.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then calls cb with the result once the operation completes.
func (f *Future[T]) Then(cb func(T, error)) {
	go func() {
		<-f.done
		cb(f.val, f.err)
	}()
}

// PutAsync runs Put in the background.
func (s *Store) PutAsync(ctx context.Context, key string, value any) *Future[struct{}] {
	return goFuture(func() (struct{}, error) {
		return struct{}{}, s.Put(ctx, key, value)
	})
}

// FetchAsync runs Fetch in the background. A nil payload means not found.
func (s *Store) FetchAsync(ctx context.Context, key string) *Future[[]byte] {
	return goFuture(func() ([]byte, error) {
		return s.Fetch(ctx, key)
	})
}

// RemoveAsync runs Remove in the background.
func (s *Store) RemoveAsync(ctx context.Context, key string) *Future[struct{}] {
	return goFuture(func() (struct{}, error) {
		return struct{}{}, s.Remove(ctx, key)
	})
}
