package registry

import (
	"context"
	"sync"

	"github.com/panduza/pza/pkg/logging"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
)

// ID identifies one registered callback. IDs are issued from zero in
// increasing order and are never handed out twice by the same registry.
type ID uint64

// Callback reacts to a value of the registry's data type. The calling
// goroutine blocks until it returns. ctx is the only cancellation signal
// a callback gets; the registry itself never cancels it.
type Callback[T any] func(ctx context.Context, data T)

// Cloner is implemented by data types that need a deep copy per callback
// during ExecuteAll. Types without it are duplicated by value copy.
type Cloner[T any] interface {
	Clone() T
}

// Option configures a Registry
type Option func(*options)

type options struct {
	pool   *ants.Pool
	logger *zerolog.Logger
}

// WithPool runs ExecuteAll fan-out concurrently on the given pool.
// The pool is owned by the caller and must outlive the registry's use.
func WithPool(pool *ants.Pool) Option {
	return func(o *options) {
		o.pool = pool
	}
}

// WithLogger sets the logger used to report recovered callback panics
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// Registry is a thread-safe table of callbacks keyed by ID
type Registry[T any] struct {
	mu        sync.Mutex
	callbacks map[ID]Callback[T]
	nextID    ID

	pool   *ants.Pool
	logger *zerolog.Logger
}

// New creates an empty Registry
func New[T any](opts ...Option) *Registry[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return &Registry[T]{
		callbacks: make(map[ID]Callback[T]),
		pool:      o.pool,
		logger:    o.logger,
	}
}

// Add stores a callback and returns its ID
func (r *Registry[T]) Add(callback Callback[T]) ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.callbacks[id] = callback
	return id
}

// Remove deletes the callback registered under id.
// Returns true if the callback was found and removed, false otherwise.
func (r *Registry[T]) Remove(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.callbacks[id]; !exists {
		return false
	}

	delete(r.callbacks, id)
	return true
}

// Clear removes every callback. The ID counter keeps its value.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.callbacks = make(map[ID]Callback[T])
}

// Count returns the number of registered callbacks
func (r *Registry[T]) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.callbacks)
}

// Has checks if a callback is registered under id
func (r *Registry[T]) Has(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.callbacks[id]
	return exists
}

// IDs returns a snapshot of the registered IDs in no particular order
func (r *Registry[T]) IDs() []ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]ID, 0, len(r.callbacks))
	for id := range r.callbacks {
		ids = append(ids, id)
	}
	return ids
}

// Execute runs the callback registered under id with data and waits for it.
// Returns false without running anything if id is not registered.
func (r *Registry[T]) Execute(ctx context.Context, id ID, data T) bool {
	r.mu.Lock()
	callback, exists := r.callbacks[id]
	r.mu.Unlock()

	if !exists {
		return false
	}

	r.invoke(ctx, id, callback, data)
	return true
}

// ExecuteAll runs every registered callback once with its own duplicate of
// data and returns when all of them are done. Callbacks registered while
// the fan-out is running are not included; callbacks removed while it is
// running still complete.
func (r *Registry[T]) ExecuteAll(ctx context.Context, data T) {
	snapshot := r.snapshot()
	if len(snapshot) == 0 {
		return
	}

	if r.pool == nil {
		for _, e := range snapshot {
			r.invoke(ctx, e.id, e.callback, duplicate(data))
		}
		return
	}

	var wg sync.WaitGroup
	for _, e := range snapshot {
		value := duplicate(data)

		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			r.invoke(ctx, e.id, e.callback, value)
		})
		if err != nil {
			// pool closed or overloaded, run on the caller instead
			r.log().Debug().Err(err).Uint64("callback_id", uint64(e.id)).Msg("Pool rejected callback, running inline")
			r.invoke(ctx, e.id, e.callback, value)
			wg.Done()
		}
	}
	wg.Wait()
}

type entry[T any] struct {
	id       ID
	callback Callback[T]
}

func (r *Registry[T]) snapshot() []entry[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]entry[T], 0, len(r.callbacks))
	for id, callback := range r.callbacks {
		entries = append(entries, entry[T]{id: id, callback: callback})
	}
	return entries
}

// invoke runs one callback outside the lock. A panic inside the callback
// is logged and swallowed so the fan-out and the table stay intact.
func (r *Registry[T]) invoke(ctx context.Context, id ID, callback Callback[T], data T) {
	if callback == nil {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			r.log().Error().
				Uint64("callback_id", uint64(id)).
				Interface("panic", p).
				Msg("Callback panicked")
		}
	}()

	callback(ctx, data)
}

// log resolves the logger at call time so registries created before
// logging is set up still follow the configured level.
func (r *Registry[T]) log() *zerolog.Logger {
	if r.logger != nil {
		return r.logger
	}
	logger := logging.GetLogger(logging.ComponentRegistry)
	return &logger
}

func duplicate[T any](data T) T {
	if c, ok := any(data).(Cloner[T]); ok {
		return c.Clone()
	}
	return data
}
