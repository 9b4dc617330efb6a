package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/store"
)

// Name is the connector name reported to the ORM.
const Name = "tingodb"

// Settings configures Initialize.
type Settings struct {
	// Path is the database file. Ignored when InMemory is set.
	Path string `koanf:"path" validate:"required_without=InMemory"`

	// InMemory opens a private in-memory database.
	InMemory bool `koanf:"memory"`

	// Debug logs every operation at debug level.
	Debug bool `koanf:"debug"`
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger. Defaults to zerolog.Nop().
func WithLogger(log zerolog.Logger) Option {
	return func(c *Connector) { c.log = log }
}

// WithIDGenerator sets the generator for documents created without an id.
func WithIDGenerator(gen doc.IDGenerator) Option {
	return func(c *Connector) { c.gen = gen }
}

// Connector adapts the document store to the ORM's CRUD contract.
//
// Thread-safety: Connector is safe for concurrent use.
type Connector struct {
	store  *store.Store
	log    zerolog.Logger
	gen    doc.IDGenerator
	debug  bool
	closed atomic.Bool

	mu     sync.RWMutex
	models map[string]*model
}

// Initialize opens the database described by s and returns a connector
// bound to it.
func Initialize(ctx context.Context, s Settings, opts ...Option) (*Connector, error) {
	if err := ctx.Err(); err != nil {
		return nil, &OpError{Op: "initialize", Err: err}
	}

	c := &Connector{
		log:    zerolog.Nop(),
		gen:    doc.UUIDv7Generator{},
		debug:  s.Debug,
		models: make(map[string]*model),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("connector", Name).Logger()

	storeOpts := []store.Option{
		store.WithLogger(c.log),
		store.WithIDGenerator(c.gen),
	}
	path := s.Path
	if s.InMemory {
		storeOpts = append(storeOpts, store.WithInMemory())
		path = store.MemoryPath
	}

	st, err := store.Open(path, storeOpts...)
	if err != nil {
		return nil, &OpError{Op: "initialize", Err: err}
	}
	c.store = st

	c.log.Info().Str("path", st.Path()).Msg("connected")
	return c, nil
}

// Name returns "tingodb".
func (c *Connector) Name() string {
	return Name
}

// Store returns the underlying document store.
func (c *Connector) Store() *store.Store {
	return c.store
}

// Disconnect closes the database. Later operations fail with
// ErrDisconnected.
func (c *Connector) Disconnect() error {
	if c.closed.Swap(true) {
		return nil
	}
	if err := c.store.Close(); err != nil {
		return &OpError{Op: "disconnect", Err: err}
	}
	c.log.Info().Msg("disconnected")
	return nil
}

// Define registers a model and creates indexes for its indexed and unique
// properties. Defining a model again replaces its definition.
func (c *Connector) Define(ctx context.Context, def ModelDefinition) (err error) {
	defer c.finish("define", def.Name, time.Now(), &err)

	if def.Name == "" {
		return errors.New("model name is empty")
	}
	if c.closed.Load() {
		return ErrDisconnected
	}

	m := newModel(def)
	c.mu.Lock()
	c.models[def.Name] = m
	c.mu.Unlock()

	for _, name := range doc.SortedKeys(m.def.Properties) {
		if err := c.ensureIndex(ctx, m, name, m.def.Properties[name]); err != nil {
			return err
		}
	}
	return nil
}

// DefineProperty adds or replaces one property of a defined model.
func (c *Connector) DefineProperty(ctx context.Context, modelName, prop string, p Property) (err error) {
	defer c.finish("defineProperty", modelName, time.Now(), &err)

	c.mu.Lock()
	m, ok := c.models[modelName]
	if ok {
		m = m.withProperty(prop, p)
		c.models[modelName] = m
	}
	c.mu.Unlock()
	if !ok {
		return ErrModelNotDefined
	}
	return c.ensureIndex(ctx, m, prop, p)
}

// DefineForeignKey declares key as a reference to another model and
// returns the coercion the ORM applies to its values.
func (c *Connector) DefineForeignKey(modelName, key string) (kt KeyType, err error) {
	defer c.finish("defineForeignKey", modelName, time.Now(), &err)

	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.models[modelName]
	if !ok {
		return nil, ErrModelNotDefined
	}
	p := m.def.Properties[key]
	p.Type = TypeObjectID
	c.models[modelName] = m.withProperty(key, p)
	return doc.ToObjectID, nil
}

// Models returns the names of defined models in sorted order.
func (c *Connector) Models() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return doc.SortedKeys(c.models)
}

// Definition returns a copy of the definition of a model.
func (c *Connector) Definition(modelName string) (ModelDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[modelName]
	if !ok {
		return ModelDefinition{}, false
	}
	return newModel(m.def).def, true
}

func (c *Connector) ensureIndex(ctx context.Context, m *model, name string, p Property) error {
	if !p.Index && !p.Unique {
		return nil
	}
	if err := c.store.Collection(m.collection).EnsureIndex(ctx, name, p.Unique); err != nil {
		return fmt.Errorf("index %s: %w", name, err)
	}
	return nil
}

func (c *Connector) lookup(modelName string) (*model, *store.Collection, error) {
	if c.closed.Load() {
		return nil, nil, ErrDisconnected
	}
	c.mu.RLock()
	m, ok := c.models[modelName]
	c.mu.RUnlock()
	if !ok {
		return nil, nil, ErrModelNotDefined
	}
	return m, c.store.Collection(m.collection), nil
}

// finish wraps *errp in an OpError and logs the operation.
func (c *Connector) finish(op, modelName string, start time.Time, errp *error) {
	if err := *errp; err != nil {
		var opErr *OpError
		if !errors.As(err, &opErr) {
			*errp = &OpError{Op: op, Model: modelName, Err: err}
		}
		c.log.Warn().Err(err).Str("op", op).Str("model", modelName).Dur("elapsed", time.Since(start)).Msg("operation failed")
		return
	}
	if c.debug {
		c.log.Debug().Str("op", op).Str("model", modelName).Dur("elapsed", time.Since(start)).Msg("operation")
	}
}
