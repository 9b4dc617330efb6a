package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"cuelang.org/go/cue/token"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/tingo/internal/connector"
	"github.com/roach88/tingo/internal/doc"
)

// ValidationError is one problem found in a model definition.
type ValidationError struct {
	Model   string `json:"model,omitempty"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Models []string          `json:"models,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <models>",
		Short: "Validate model definitions",
		Long: `Validate CUE model definitions without touching a database.

<models> is a .cue file or a directory holding one CUE package. Each model
is loaded and defined against a scratch in-memory store, so index
declarations are checked as well.

Example:
  tingo validate ./models`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, err := LoadModels(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && isDefinitionError(loadErr.Code) {
			return outputValidationErrors(formatter, []ValidationError{{
				Code:    loadErr.Code,
				Message: loadErr.Message,
				Line:    getLineFromCuePos(loadErr.Pos),
			}})
		}
		return formatter.Fail(err)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, path)

	validationErrors := validateModels(commandContext(cmd), loadResult.Models, formatter)
	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	names := make([]string, len(loadResult.Models))
	for i, m := range loadResult.Models {
		names[i] = m.Name
	}
	sort.Strings(names)
	return outputValidateSuccess(formatter, names)
}

// validateModels checks loaded models for problems the loader does not
// catch and defines them against an in-memory connector.
func validateModels(ctx context.Context, models []connector.ModelDefinition, formatter *OutputFormatter) []ValidationError {
	var errs []ValidationError

	for _, m := range models {
		formatter.VerboseLog("Validating model: %s", m.Name)
		for _, name := range doc.SortedKeys(m.Properties) {
			if name != doc.KeyORMID && name != doc.KeyID {
				continue
			}
			if m.Properties[name].Type != connector.TypeObjectID && m.Properties[name].Type != connector.TypeString {
				errs = append(errs, ValidationError{
					Model:   m.Name,
					Field:   name,
					Code:    ErrCodeInvalidType,
					Message: fmt.Sprintf("%s: %s must be ObjectID or String", m.Name, name),
				})
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}

	conn, err := connector.Initialize(ctx, connector.Settings{InMemory: true}, connector.WithLogger(zerolog.Nop()))
	if err != nil {
		return []ValidationError{{Code: ErrCodeOpenFailed, Message: err.Error()}}
	}
	defer conn.Disconnect()

	for _, m := range models {
		if err := conn.Define(ctx, m); err != nil {
			errs = append(errs, ValidationError{
				Model:   m.Name,
				Code:    ErrCodeInvalidModel,
				Message: err.Error(),
			})
		}
	}
	return errs
}

// isDefinitionError reports whether code describes bad model source
// rather than a missing or unreadable path.
func isDefinitionError(code string) bool {
	return code == ErrCodeLoadFailed || strings.HasPrefix(code, "E1")
}

// getLineFromCuePos extracts line number from a token.Pos.
func getLineFromCuePos(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, models []string) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: true, Models: models}
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All models valid (%d)\n", len(models))
	if formatter.Verbose {
		for _, name := range models {
			fmt.Fprintf(formatter.Writer, "  %s\n", name)
		}
	}
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return validationFailed(len(errs))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return validationFailed(len(errs))
}

// validationFailed is the exit error for invalid models. Validation
// failures exit with code 1 like failed scenarios.
func validationFailed(n int) error {
	return &ExitError{
		Code:     ExitFailure,
		Message:  fmt.Sprintf("validation failed with %d error(s)", n),
		Reported: true,
	}
}

// ValidateModels loads and validates the models at path.
// This is a helper function for external callers.
func ValidateModels(ctx context.Context, path string) ([]ValidationError, error) {
	loadResult, err := LoadModels(path)
	if err != nil {
		return nil, err
	}

	silentFormatter := &OutputFormatter{Format: "text", Verbose: false, Writer: io.Discard}
	return validateModels(ctx, loadResult.Models, silentFormatter), nil
}
