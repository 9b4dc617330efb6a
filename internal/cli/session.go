package cli

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/tingo/internal/config"
	"github.com/roach88/tingo/internal/connector"
	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/filter"
	"github.com/roach88/tingo/internal/logger"
)

// session is an open connector plus the output settings of one command.
type session struct {
	conn *connector.Connector
	log  zerolog.Logger
	out  *OutputFormatter

	// strict is set when models came from a file. Undefined models are
	// then errors instead of being defined schemaless.
	strict bool
}

// newFormatter builds the formatter for cmd.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// commandContext returns the command's context, or a background context
// when the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// resolveConfig loads the configuration and applies flag overrides.
func resolveConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, &CodedError{Code: ErrCodeConfig, Err: err}
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
		cfg.Database.InMemory = false
	}
	if opts.Models != "" {
		cfg.Models = opts.Models
	}
	if opts.Verbose {
		cfg.Database.Debug = true
	}
	if err := config.Validate(cfg); err != nil {
		return nil, &CodedError{Code: ErrCodeConfig, Err: err}
	}
	return cfg, nil
}

// openSession resolves configuration, loads models and connects.
// Errors are already reported through the returned formatter.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	ctx := commandContext(cmd)
	out := newFormatter(opts, cmd)

	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, out.Fail(err)
	}

	log, err := logger.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, out.Fail(&CodedError{Code: ErrCodeConfig, Err: err})
	}
	if opts.Verbose {
		log = logger.Verbose(log, false)
	}

	var models []connector.ModelDefinition
	if cfg.Models != "" {
		res, err := LoadModels(cfg.Models)
		if err != nil {
			return nil, out.Fail(err)
		}
		models = res.Models
		out.VerboseLog("Loaded %d model(s) from %d CUE file(s)", len(models), res.FileCount)
	}

	conn, err := connector.Initialize(ctx, cfg.Database, connector.WithLogger(log))
	if err != nil {
		return nil, out.Fail(&CodedError{Code: ErrCodeOpenFailed, Err: err})
	}
	for _, def := range models {
		if err := conn.Define(ctx, def); err != nil {
			_ = conn.Disconnect()
			return nil, out.Fail(err)
		}
	}

	return &session{conn: conn, log: log, out: out, strict: cfg.Models != ""}, nil
}

// model makes name usable. Without a models file, unknown models are
// defined without properties.
func (s *session) model(ctx context.Context, name string) error {
	if s.strict {
		return nil
	}
	if _, ok := s.conn.Definition(name); ok {
		return nil
	}
	return s.conn.Define(ctx, connector.ModelDefinition{Name: name})
}

// Close disconnects, logging failures.
func (s *session) Close() {
	if err := s.conn.Disconnect(); err != nil {
		s.log.Error().Err(err).Msg("error closing database")
	}
}

// parseData decodes a --data flag into a document.
func parseData(data string) (doc.Document, error) {
	d, err := doc.UnmarshalDocument([]byte(data))
	if err != nil {
		return nil, &CodedError{Code: ErrCodeBadInput, Err: err}
	}
	return d, nil
}

// parseWhere decodes a --where flag. An empty flag matches everything.
func parseWhere(where string) (map[string]any, error) {
	w, err := filter.ParseWhereJSON([]byte(where))
	if err != nil {
		return nil, &CodedError{Code: ErrCodeBadInput, Err: err}
	}
	return w, nil
}

// parseFilter decodes a --filter flag. An empty flag selects everything.
func parseFilter(f string) (filter.Filter, error) {
	parsed, err := filter.ParseJSON([]byte(f))
	if err != nil {
		return filter.Filter{}, &CodedError{Code: ErrCodeBadInput, Err: err}
	}
	return parsed, nil
}
