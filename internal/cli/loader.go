package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/tingo/internal/connector"
	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/filter"
	"github.com/roach88/tingo/internal/query"
	"github.com/roach88/tingo/internal/schema"
	"github.com/roach88/tingo/internal/store"
)

// LoadResult contains the models loaded from a CUE file or directory.
type LoadResult struct {
	Models    []connector.ModelDefinition
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred during model loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// LoadModels reads model definitions from a .cue file or a directory
// holding one CUE package.
func LoadModels(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("models not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing models: %v", err)}
	}

	fileCount := 1
	if info.IsDir() {
		files, err := FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
		fileCount = len(files)
	}

	models, err := schema.Load(path)
	if err != nil {
		return nil, convertSchemaError(err)
	}
	return &LoadResult{Models: models, FileCount: fileCount}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertSchemaError converts a schema error to a LoadError with position info.
func convertSchemaError(err error) *LoadError {
	var schemaErr *schema.Error
	if errors.As(err, &schemaErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(schemaErr.Field),
			Message: schemaErr.Field + ": " + schemaErr.Message,
			Pos:     schemaErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeScanError  = "E002" // Directory scan error
	ErrCodeNoFiles    = "E003" // No CUE files found
	ErrCodeLoadFailed = "E004" // CUE load failed
	ErrCodeNotFound   = "E005" // Path not found
	ErrCodeConfig     = "E006" // Configuration invalid
	ErrCodeBadInput   = "E007" // Malformed --data, --where or --filter JSON
	ErrCodeOpenFailed = "E008" // Database cannot be opened

	// Model definition errors
	ErrCodeNoModels     = "E101" // No models declared
	ErrCodeInvalidType  = "E102" // Unknown property type
	ErrCodeInvalidModel = "E103" // Malformed model or property

	// Operation errors
	ErrCodeModelNotDefined    = "E201" // Model missing from the models file
	ErrCodeDocNotFound        = "E202" // No document with that id
	ErrCodeDuplicateID        = "E203" // Document id already taken
	ErrCodeUniqueViolation    = "E204" // Unique property value already taken
	ErrCodeInvalidFilter      = "E205" // Filter cannot be translated
	ErrCodeInvalidID          = "E206" // Value is not an object id
	ErrCodeInvalidProperty    = "E207" // Property value has the wrong type
	ErrCodeMissingProperty    = "E208" // Required property or id absent
	ErrCodeIncludeUnsupported = "E209" // Filter include without an includer
)

// MapFieldToErrorCode maps a schema error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "model":
		return ErrCodeNoModels
	case "type":
		return ErrCodeInvalidType
	case "collection", "index", "unique", "required":
		return ErrCodeInvalidModel
	case "cue":
		return ErrCodeLoadFailed
	default:
		return ErrCodeGeneric
	}
}

// operationCodes maps sentinel errors to operation error codes.
var operationCodes = []struct {
	err  error
	code string
}{
	{connector.ErrModelNotDefined, ErrCodeModelNotDefined},
	{store.ErrNotFound, ErrCodeDocNotFound},
	{store.ErrDuplicateID, ErrCodeDuplicateID},
	{store.ErrUniqueViolation, ErrCodeUniqueViolation},
	{filter.ErrInvalidFilter, ErrCodeInvalidFilter},
	{query.ErrUnknownOperator, ErrCodeInvalidFilter},
	{query.ErrInvalidQuery, ErrCodeInvalidFilter},
	{doc.ErrInvalidObjectID, ErrCodeInvalidID},
	{connector.ErrInvalidProperty, ErrCodeInvalidProperty},
	{connector.ErrMissingProperty, ErrCodeMissingProperty},
	{connector.ErrMissingID, ErrCodeMissingProperty},
	{connector.ErrIncludeUnsupported, ErrCodeIncludeUnsupported},
}

// CodedError attaches a CLI error code to an error.
type CodedError struct {
	Code string
	Err  error
}

func (e *CodedError) Error() string {
	return e.Err.Error()
}

func (e *CodedError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the CLI error code for err.
func ErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	for _, oc := range operationCodes {
		if errors.Is(err, oc.err) {
			return oc.code
		}
	}
	return ErrCodeGeneric
}

// exitCodeFor returns ExitFailure for operation errors (E2xx) and
// ExitCommandError for everything else.
func exitCodeFor(code string) int {
	if strings.HasPrefix(code, "E2") {
		return ExitFailure
	}
	return ExitCommandError
}
