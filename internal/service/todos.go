package service

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"todo-api/internal/models"
	"todo-api/pkg/logger"
)

// Store is the record store the service writes through.
type Store interface {
	List(ctx context.Context) ([]models.Todo, error)
	Get(ctx context.Context, id int64) (models.Todo, error)
	Create(ctx context.Context, in models.NewTodo) (models.Todo, error)
	Update(ctx context.Context, id int64, patch models.TodoPatch) (models.Todo, error)
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// ListCache caches the full todo list.
type ListCache interface {
	GetTodos(ctx context.Context) ([]models.Todo, bool)
	SetTodos(ctx context.Context, todos []models.Todo) error
	InvalidateTodos(ctx context.Context) error
	Ping(ctx context.Context) error
}

// EventPublisher announces committed writes.
type EventPublisher interface {
	Publish(ctx context.Context, action string, id int64, todo *models.Todo) error
}

// TodoService fronts the store with the list cache and change events.
// Store results are authoritative: cache and publisher failures are logged only.
type TodoService struct {
	store  Store
	cache  ListCache
	events EventPublisher
	sf     singleflight.Group

	// gen counts invalidations. A list read only fills the cache if no
	// invalidation happened while it was running.
	mu  sync.Mutex
	gen uint64
}

// Option configures a TodoService.
type Option func(*TodoService)

// WithCache enables the list cache.
func WithCache(c ListCache) Option {
	return func(s *TodoService) { s.cache = c }
}

// WithEvents enables change events.
func WithEvents(p EventPublisher) Option {
	return func(s *TodoService) { s.events = p }
}

// NewTodoService returns a TodoService over store.
func NewTodoService(store Store, opts ...Option) *TodoService {
	s := &TodoService{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns all todos, from cache when possible. Concurrent misses share one store read.
func (s *TodoService) List(ctx context.Context) ([]models.Todo, error) {
	if s.cache == nil {
		return s.store.List(ctx)
	}
	if todos, ok := s.cache.GetTodos(ctx); ok {
		return todos, nil
	}
	v, err, _ := s.sf.Do("todos", func() (any, error) {
		gen := s.generation()
		todos, err := s.store.List(ctx)
		if err != nil {
			return nil, err
		}
		s.fill(ctx, gen, todos)
		return todos, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Todo), nil
}

// Get returns one todo.
func (s *TodoService) Get(ctx context.Context, id int64) (models.Todo, error) {
	return s.store.Get(ctx, id)
}

// Create stores a new todo.
func (s *TodoService) Create(ctx context.Context, in models.NewTodo) (models.Todo, error) {
	t, err := s.store.Create(ctx, in)
	if err != nil {
		return models.Todo{}, err
	}
	s.written(ctx, models.ActionCreated, t.ID, &t)
	return t, nil
}

// Update applies a partial update. An empty patch returns the todo unchanged
// and announces nothing.
func (s *TodoService) Update(ctx context.Context, id int64, patch models.TodoPatch) (models.Todo, error) {
	t, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return models.Todo{}, err
	}
	if !patch.Empty() {
		s.written(ctx, models.ActionUpdated, t.ID, &t)
	}
	return t, nil
}

// Delete removes a todo.
func (s *TodoService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.written(ctx, models.ActionDeleted, id, nil)
	return nil
}

// Health checks the store connection.
func (s *TodoService) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Ready checks the store and, when enabled, the cache.
func (s *TodoService) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	if s.cache != nil {
		return s.cache.Ping(ctx)
	}
	return nil
}

// InvalidateTodos drops the cached list and stops in-flight reads from
// storing what they read before the drop.
func (s *TodoService) InvalidateTodos(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
	return s.cache.InvalidateTodos(ctx)
}

func (s *TodoService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *TodoService) fill(ctx context.Context, gen uint64, todos []models.Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		logger.Debug(ctx, "Skipping cache fill; list changed during read")
		return
	}
	if err := s.cache.SetTodos(ctx, todos); err != nil {
		logger.Warn(ctx, "Cache fill failed", "error", err)
	}
}

func (s *TodoService) written(ctx context.Context, action string, id int64, t *models.Todo) {
	if err := s.InvalidateTodos(ctx); err != nil {
		logger.Warn(ctx, "Cache invalidation failed", "error", err, "action", action, "todo_id", id)
	}
	if s.events != nil {
		if err := s.events.Publish(ctx, action, id, t); err != nil {
			logger.Error(ctx, "Event publish failed", "error", err, "action", action, "todo_id", id)
		}
	}
}
