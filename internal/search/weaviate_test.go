package search

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func TestNewWeaviateEngineValidation(t *testing.T) {
	ctx := context.Background()

	_, err := NewWeaviateEngine(ctx, WeaviateConfig{Class: "Entity"})
	assert.ErrorContains(t, err, "host")

	_, err = NewWeaviateEngine(ctx, WeaviateConfig{Host: "localhost:8080"})
	assert.ErrorContains(t, err, "class")

	_, err = NewWeaviateEngine(ctx, WeaviateConfig{Host: "localhost:8080", Class: "Entity", Fields: []string{"bad-name"}})
	assert.ErrorContains(t, err, "bad-name")

	_, err = NewWeaviateEngine(ctx, WeaviateConfig{Host: "localhost:8080", Class: "Entity", Fields: []string{"entity"}})
	assert.Error(t, err, "entity is reserved")
}

func TestObjectIDIsStable(t *testing.T) {
	assert.Equal(t, objectID("urn:a"), objectID("urn:a"))
	assert.NotEqual(t, objectID("urn:a"), objectID("urn:b"))
	assert.Len(t, string(objectID("urn:a")), 36)
}

func TestToObjectAndBack(t *testing.T) {
	e := &WeaviateEngine{class: "Entity", fields: []string{"comment", "label"}}

	obj := e.toObject("urn:a", Document{"label": {"x", "y"}})
	assert.Equal(t, "Entity", obj.Class)
	assert.Equal(t, objectID("urn:a"), obj.ID)

	props := obj.Properties.(map[string]interface{})
	assert.Equal(t, "urn:a", props[entityProperty])
	assert.Equal(t, []string{}, props["comment"], "every field is present so an upsert clears removed values")

	// Objects read back from Weaviate carry JSON arrays.
	read := map[string]interface{}{
		"entity": "urn:a",
		"label":  []interface{}{"x", "y"},
	}
	assert.Equal(t, Document{"label": {"x", "y"}}, documentFromProperties(e.fields, read))
}

func TestClassSchema(t *testing.T) {
	e := &WeaviateEngine{class: "Entity", fields: []string{"label"}}
	class := e.classSchema()

	require.Len(t, class.Properties, 2)
	assert.Equal(t, entityProperty, class.Properties[0].Name)
	assert.Equal(t, []string{"text[]"}, class.Properties[1].DataType)
	assert.Equal(t, "none", class.Vectorizer)
}

func TestParseEntities(t *testing.T) {
	data := map[string]models.JSONObject{
		"Get": map[string]interface{}{
			"Entity": []interface{}{
				map[string]interface{}{"entity": "urn:a"},
				map[string]interface{}{"entity": "urn:b"},
			},
		},
	}
	got, err := parseEntities("Entity", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:a", "urn:b"}, got)

	got, err = parseEntities("Other", data)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// TestWeaviateEngineLive runs against a real Weaviate when
// METASTORE_TEST_WEAVIATE_HOST is set.
func TestWeaviateEngineLive(t *testing.T) {
	host := os.Getenv("METASTORE_TEST_WEAVIATE_HOST")
	if host == "" {
		t.Skip("METASTORE_TEST_WEAVIATE_HOST not set")
	}
	ctx := context.Background()

	e, err := NewWeaviateEngine(ctx, WeaviateConfig{Host: host, Class: "MetastoreTest", Fields: []string{"label"}})
	require.NoError(t, err)
	require.NoError(t, e.Reset(ctx))

	require.NoError(t, e.Apply(ctx, []Operation{
		add("urn:a", "label", "soil"),
		add("urn:a", "label", "water"),
	}))
	require.NoError(t, e.Apply(ctx, []Operation{remove("urn:a", "label", "water")}))

	doc, ok, err := e.Document(ctx, "urn:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Document{"label": {"soil"}}, doc)
}
