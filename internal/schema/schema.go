// Package schema loads model definitions written in CUE.
//
// A models file declares one struct per model under "model":
//
//	model: User: {
//		collection: "users" // optional, defaults to the model name
//		properties: {
//			name:  {type: "String", required: true}
//			email: {type: "String", unique: true}
//			age:   "Number" // shorthand for {type: "Number"}
//		}
//	}
//
// Errors carry the CUE source position of the offending value.
package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tingo/internal/connector"
)

// knownTypes lists the property types a model may declare.
var knownTypes = map[connector.PropertyType]bool{
	connector.TypeString:   true,
	connector.TypeNumber:   true,
	connector.TypeBoolean:  true,
	connector.TypeDate:     true,
	connector.TypeObjectID: true,
	connector.TypeJSON:     true,
	connector.TypeArray:    true,
	connector.TypeAny:      true,
}

// Error is a model definition error with source position.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads model definitions from a .cue file or from a directory
// holding one CUE package.
func Load(path string) ([]connector.ModelDefinition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("models: %w", err)
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("models: %w", err)
		}
		return LoadBytes(path, data)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return nil, fmt.Errorf("models: no CUE instances in %s", path)
	}
	if err := instances[0].Err; err != nil {
		return nil, formatCUEError(err)
	}
	v := cuecontext.New().BuildInstance(instances[0])
	return Compile(v)
}

// LoadBytes compiles CUE source. name is used in error positions.
func LoadBytes(name string, data []byte) ([]connector.ModelDefinition, error) {
	v := cuecontext.New().CompileBytes(data, cue.Filename(name))
	return Compile(v)
}

// Compile extracts every model under "model" in declaration order.
func Compile(v cue.Value) ([]connector.ModelDefinition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	modelsVal := v.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return nil, &Error{Field: "model", Message: "no models declared", Pos: v.Pos()}
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []connector.ModelDefinition
	for iter.Next() {
		def, err := CompileModel(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// CompileModel converts one model struct.
func CompileModel(name string, v cue.Value) (connector.ModelDefinition, error) {
	def := connector.ModelDefinition{
		Name:       name,
		Properties: map[string]connector.Property{},
		Settings:   map[string]any{},
	}

	if collVal := v.LookupPath(cue.ParsePath("collection")); collVal.Exists() {
		collection, err := collVal.String()
		if err != nil {
			return def, &Error{Field: "collection", Message: "must be a string", Pos: collVal.Pos()}
		}
		def.Settings["collection"] = collection
	}

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return def, nil
	}
	iter, err := propsVal.Fields()
	if err != nil {
		return def, formatCUEError(err)
	}
	for iter.Next() {
		prop, err := compileProperty(iter.Value())
		if err != nil {
			return def, err
		}
		def.Properties[iter.Label()] = prop
	}
	return def, nil
}

func compileProperty(v cue.Value) (connector.Property, error) {
	var prop connector.Property

	// Shorthand: name: "String"
	if s, err := v.String(); err == nil {
		prop.Type = connector.PropertyType(s)
		return prop, checkType(prop.Type, v.Pos())
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return prop, &Error{Field: "type", Message: "property type is required", Pos: v.Pos()}
	}
	s, err := typeVal.String()
	if err != nil {
		return prop, &Error{Field: "type", Message: "must be a string", Pos: typeVal.Pos()}
	}
	prop.Type = connector.PropertyType(s)
	if err := checkType(prop.Type, typeVal.Pos()); err != nil {
		return prop, err
	}

	for _, flag := range []struct {
		name string
		dst  *bool
	}{
		{"index", &prop.Index},
		{"unique", &prop.Unique},
		{"required", &prop.Required},
	} {
		fv := v.LookupPath(cue.ParsePath(flag.name))
		if !fv.Exists() {
			continue
		}
		b, err := fv.Bool()
		if err != nil {
			return prop, &Error{Field: flag.name, Message: "must be a bool", Pos: fv.Pos()}
		}
		*flag.dst = b
	}
	return prop, nil
}

func checkType(t connector.PropertyType, pos token.Pos) error {
	if !knownTypes[t] {
		return &Error{Field: "type", Message: fmt.Sprintf("unknown property type %q", t), Pos: pos}
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
