package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tingo/internal/connector"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: test_scenario
description: "Test scenario for validation"
models:
  - name: User
    collection: people
    properties:
      name: {type: String, required: true}
      age: {type: Number, index: true}
steps:
  - op: create
    model: User
    data: {name: ada, age: 36}
  - op: all
    model: User
    filter:
      where: {age: {gt: 30}}
      order: "age DESC, name"
      limit: 10
      fields: [name]
    expect:
      count: 1
      results:
        - {name: ada}
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	require.Len(t, scenario.Models, 1)
	assert.Equal(t, "people", scenario.Models[0].Collection)
	assert.Equal(t, connector.Property{Type: connector.TypeNumber, Index: true}, scenario.Models[0].Properties["age"])

	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, OpCreate, scenario.Steps[0].Op)
	assert.Equal(t, "ada", scenario.Steps[0].Data["name"])

	all := scenario.Steps[1]
	require.NotNil(t, all.Filter)
	assert.Equal(t, []string{"age DESC", "name"}, []string(all.Filter.Order))
	assert.Equal(t, int64(10), all.Filter.Limit)
	assert.True(t, all.Filter.Fields["name"])
	require.NotNil(t, all.Expect)
	require.NotNil(t, all.Expect.Count)
	assert.Equal(t, int64(1), *all.Expect.Count)
}

func TestModelSpec_Definition(t *testing.T) {
	def := ModelSpec{Name: "Post", Collection: "posts"}.Definition()
	assert.Equal(t, "Post", def.Name)
	assert.Equal(t, "posts", def.Settings["collection"])

	def = ModelSpec{Name: "User"}.Definition()
	assert.Nil(t, def.Settings)
}

func TestLoadScenario_ResolvesSchemaPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models.cue"), []byte(`model: User: properties: name: "String"`), 0644))
	path := writeScenario(t, dir, `
name: with_schema
description: "schema relative to the scenario"
schema: models.cue
steps:
  - op: count
    model: User
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "models.cue"), scenario.Schema)
}

func TestLoadScenario_SchemaNotFound(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: with_schema
description: "schema does not exist"
schema: missing.cue
steps:
  - op: count
    model: User
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema file not found")
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	schemaDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(schemaDir, "models.cue"), []byte(`model: User: properties: name: "String"`), 0644))
	path := writeScenario(t, t.TempDir(), `
name: base_path
description: "schema relative to another directory"
schema: models.cue
steps:
  - op: count
    model: User
`)

	scenario, err := LoadScenarioWithBasePath(path, schemaDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(schemaDir, "models.cue"), scenario.Schema)
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: "misspelled steps"
step:
  - op: count
    model: User
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_MalformedYAML(t *testing.T) {
	_, err := ParseScenario([]byte("name: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{op: count, model: User}]",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsteps: [{op: count, model: User}]",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d\nsteps: []",
			wantErr: "steps list is required",
		},
		{
			name:    "model without name",
			yaml:    "name: n\ndescription: d\nmodels: [{collection: c}]\nsteps: [{op: count, model: User}]",
			wantErr: "models[0]: name is required",
		},
		{
			name:    "missing op",
			yaml:    "name: n\ndescription: d\nsteps: [{model: User}]",
			wantErr: "steps[0]: op is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: n\ndescription: d\nsteps: [{op: truncate, model: User}]",
			wantErr: `unknown op "truncate"`,
		},
		{
			name:    "missing model",
			yaml:    "name: n\ndescription: d\nsteps: [{op: count}]",
			wantErr: "steps[0]: model is required",
		},
		{
			name:    "find without id",
			yaml:    "name: n\ndescription: d\nsteps: [{op: find, model: User}]",
			wantErr: "id is required for find",
		},
		{
			name:    "create without data",
			yaml:    "name: n\ndescription: d\nsteps: [{op: create, model: User}]",
			wantErr: "data is required for create",
		},
		{
			name:    "filter on count",
			yaml:    "name: n\ndescription: d\nsteps: [{op: count, model: User, filter: {limit: 1}}]",
			wantErr: "filter is only valid for all",
		},
		{
			name:    "where on all",
			yaml:    "name: n\ndescription: d\nsteps: [{op: all, model: User, where: {a: 1}}]",
			wantErr: "where is only valid for count and destroy-all",
		},
		{
			name:    "exists on find",
			yaml:    "name: n\ndescription: d\nsteps: [{op: find, model: User, id: 1, expect: {exists: true}}]",
			wantErr: "exists is only valid for exists",
		},
		{
			name:    "null on all",
			yaml:    "name: n\ndescription: d\nsteps: [{op: all, model: User, expect: {null: true}}]",
			wantErr: "null is only valid for find",
		},
		{
			name:    "results on find",
			yaml:    "name: n\ndescription: d\nsteps: [{op: find, model: User, id: 1, expect: {results: []}}]",
			wantErr: "results is only valid for all",
		},
		{
			name:    "negative count",
			yaml:    "name: n\ndescription: d\nsteps: [{op: count, model: User, expect: {count: -1}}]",
			wantErr: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
