package harness

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/tingo/internal/connector"
	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/filter"
	"github.com/roach88/tingo/internal/schema"
)

// Harness executes scenario steps against one connector.
type Harness struct {
	conn   *connector.Connector
	logger zerolog.Logger
}

// Option configures Run.
type Option func(*Harness)

// WithLogger makes the connector log to log. Scenarios are silent by
// default.
func WithLogger(log zerolog.Logger) Option {
	return func(h *Harness) {
		h.logger = log
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with sequential ids.
// Run fails only when the scenario cannot be set up; step failures are
// reported in the result.
//
// Execution flow:
// 1. Open an in-memory connector
// 2. Define models from the schema file, then the inline models
// 3. Execute steps in order, checking each expect clause
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}

	conn, err := connector.Initialize(ctx,
		connector.Settings{InMemory: true, Debug: true},
		connector.WithLogger(h.logger),
		connector.WithIDGenerator(doc.NewSequenceGenerator()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory connector: %w", err)
	}
	defer conn.Disconnect()
	h.conn = conn

	if err := h.defineModels(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to define models: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		num := i + 1
		out := h.execute(ctx, step)
		result.AddTrace(traceEvent(num, step, out))
		if err := checkStep(num, step, out, result.Trace); err != nil {
			result.AddError(err.Error())
		}
	}

	return result, nil
}

func (h *Harness) defineModels(ctx context.Context, scenario *Scenario) error {
	var defs []connector.ModelDefinition
	if scenario.Schema != "" {
		loaded, err := schema.Load(scenario.Schema)
		if err != nil {
			return err
		}
		defs = append(defs, loaded...)
	}
	for _, m := range scenario.Models {
		defs = append(defs, m.Definition())
	}

	for _, def := range defs {
		if err := h.conn.Define(ctx, def); err != nil {
			return err
		}
	}
	return nil
}

// execute performs one step.
func (h *Harness) execute(ctx context.Context, step Step) outcome {
	var out outcome
	data := resolveData(step.Data)
	id := resolveID(step.ID)

	switch step.Op {
	case OpCreate:
		var oid doc.ObjectID
		oid, out.err = h.conn.Create(ctx, step.Model, data)
		if out.err == nil {
			out.doc = doc.Document{doc.KeyORMID: oid.String()}
		}
	case OpSave:
		out.err = h.conn.Save(ctx, step.Model, data)
	case OpFind:
		out.doc, out.err = h.conn.Find(ctx, step.Model, id)
	case OpExists:
		out.exists, out.err = h.conn.Exists(ctx, step.Model, id)
	case OpAll:
		var f filter.Filter
		if step.Filter != nil {
			f = *step.Filter
		}
		out.docs, out.err = h.conn.All(ctx, step.Model, f)
	case OpCount:
		out.count, out.err = h.conn.Count(ctx, step.Model, step.Where)
	case OpUpdate:
		out.doc, out.err = h.conn.UpdateAttributes(ctx, step.Model, id, data)
	case OpUpsert:
		out.doc, out.err = h.conn.UpdateOrCreate(ctx, step.Model, data)
	case OpDestroy:
		out.err = h.conn.Destroy(ctx, step.Model, id)
	case OpDestroyAll:
		out.count, out.err = h.conn.DestroyAll(ctx, step.Model, step.Where)
	default:
		out.err = fmt.Errorf("unknown op %q", step.Op)
	}
	return out
}

// traceEvent flattens a step outcome into the value recorded for it.
func traceEvent(num int, step Step, out outcome) TraceEvent {
	event := TraceEvent{Step: num, Op: step.Op, Model: step.Model}
	if out.err != nil {
		event.Error = out.err.Error()
		return event
	}

	switch step.Op {
	case OpFind, OpCreate, OpUpdate, OpUpsert:
		if out.doc != nil {
			event.Result = map[string]any(out.doc)
		}
	case OpAll:
		docs := make([]any, len(out.docs))
		for i, d := range out.docs {
			docs[i] = map[string]any(d)
		}
		event.Result = docs
	case OpExists:
		event.Result = out.exists
	case OpCount, OpDestroyAll:
		event.Result = out.count
	}
	return event
}

// resolveID turns an integer id into the n-th generated id.
func resolveID(v any) any {
	switch n := v.(type) {
	case int:
		if n > 0 {
			return doc.SequenceID(uint64(n))
		}
	case int64:
		if n > 0 {
			return doc.SequenceID(uint64(n))
		}
	}
	return v
}

// resolveData copies data with its "id" resolved.
func resolveData(data map[string]any) doc.Document {
	if data == nil {
		return nil
	}
	out := doc.Document(data)
	if id, ok := data[doc.KeyORMID]; ok {
		out = doc.Clone(out)
		out[doc.KeyORMID] = resolveID(id)
	}
	return out
}
