package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tingo/internal/connector"
)

func TestLoad_File(t *testing.T) {
	defs, err := Load("testdata/models.cue")
	require.NoError(t, err)
	require.Len(t, defs, 2)

	user := defs[0]
	assert.Equal(t, "User", user.Name)
	assert.Empty(t, user.Settings)
	assert.Equal(t, map[string]connector.Property{
		"name":     {Type: connector.TypeString, Required: true},
		"email":    {Type: connector.TypeString, Unique: true},
		"age":      {Type: connector.TypeNumber, Index: true},
		"joinedAt": {Type: connector.TypeDate},
	}, user.Properties)

	post := defs[1]
	assert.Equal(t, "Post", post.Name)
	assert.Equal(t, "posts", post.Settings["collection"])
	assert.Equal(t, connector.TypeObjectID, post.Properties["authorId"].Type)
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile("testdata/models.cue")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models.cue"), data, 0o644))

	defs, err := Load(dir)
	require.NoError(t, err)
	assert.Len(t, defs, 2)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.cue"))
	assert.Error(t, err)
}

func TestLoadBytes_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		field  string
		line   int
	}{
		{"no models", `other: 1`, "model", 0},
		{"unknown type", "model: A: properties: {\n\tx: \"Float\"\n}", "type", 2},
		{"missing type", "model: A: properties: {\n\tx: {index: true}\n}", "type", 2},
		{"bad flag", "model: A: properties: {\n\tx: {type: \"String\", unique: \"yes\"}\n}", "unique", 2},
		{"bad collection", "model: A: {\n\tcollection: 3\n}", "collection", 2},
		{"syntax", "model: A: {", "cue", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes("models.cue", []byte(tt.source))
			require.Error(t, err)

			var serr *Error
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.field, serr.Field)
			if tt.line > 0 {
				assert.Equal(t, tt.line, serr.Pos.Line())
				assert.Contains(t, err.Error(), "models.cue:")
			}
		})
	}
}

func TestLoadBytes_DefinesConnectorModels(t *testing.T) {
	defs, err := LoadBytes("inline.cue", []byte(`model: Tag: properties: label: {type: "String", unique: true}`))
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Tag", defs[0].Name)
	assert.True(t, defs[0].Properties["label"].Unique)
}
