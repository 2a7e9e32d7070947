package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// entityProperty holds the entity identifier on every object.
const entityProperty = "entity"

// entityNamespace seeds the deterministic object IDs.
var entityNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://w3id.org/metastore/search"))

var propertyName = regexp.MustCompile(`^[a-z_][A-Za-z0-9_]*$`)

// WeaviateConfig locates the Weaviate class that holds the index.
type WeaviateConfig struct {
	Host   string
	Scheme string
	Class  string

	// Fields are the index field names; each becomes a text[] property.
	Fields []string

	Logger *slog.Logger
}

// WeaviateEngine is an Engine backed by one Weaviate class. Each entity is
// one object whose ID is derived from the entity identifier.
type WeaviateEngine struct {
	client *weaviate.Client
	class  string
	fields []string
	logger *slog.Logger
}

// NewWeaviateEngine connects to Weaviate and creates the class if missing.
func NewWeaviateEngine(ctx context.Context, cfg WeaviateConfig) (*WeaviateEngine, error) {
	if cfg.Host == "" {
		return nil, errors.New("weaviate host is required")
	}
	if cfg.Class == "" {
		return nil, errors.New("weaviate class is required")
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	for _, f := range cfg.Fields {
		if !propertyName.MatchString(f) || f == entityProperty {
			return nil, fmt.Errorf("field %q cannot be used as a weaviate property", f)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := weaviate.NewClient(weaviate.Config{Host: cfg.Host, Scheme: cfg.Scheme})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	fields := append([]string(nil), cfg.Fields...)
	sort.Strings(fields)

	e := &WeaviateEngine{
		client: client,
		class:  cfg.Class,
		fields: fields,
		logger: cfg.Logger.With("component", "weaviate_index"),
	}
	if err := e.ensureClass(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *WeaviateEngine) classSchema() *models.Class {
	filterable := true
	searchable := true

	props := []*models.Property{{
		Name:            entityProperty,
		DataType:        []string{"text"},
		Description:     "Entity identifier",
		IndexFilterable: &filterable,
		Tokenization:    "field",
	}}
	for _, f := range e.fields {
		props = append(props, &models.Property{
			Name:            f,
			DataType:        []string{"text[]"},
			IndexFilterable: &filterable,
			IndexSearchable: &searchable,
			Tokenization:    "word",
		})
	}

	return &models.Class{
		Class:       e.class,
		Description: "Full-text projection of metadata entities",
		Vectorizer:  "none",
		Properties:  props,
	}
}

func (e *WeaviateEngine) ensureClass(ctx context.Context) error {
	if _, err := e.client.Schema().ClassGetter().WithClassName(e.class).Do(ctx); err == nil {
		return nil
	}
	if err := e.client.Schema().ClassCreator().WithClass(e.classSchema()).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", e.class, err)
	}
	e.logger.Info("created index class", "class", e.class)
	return nil
}

// objectID derives a stable object ID for an entity.
func objectID(entity string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(entityNamespace, []byte(entity)).String())
}

// isNotFound matches the error the client returns for a missing object.
func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "404") ||
		strings.Contains(msg, "does not exist")
}

// Apply implements Engine. Affected documents are read, patched in memory
// in operation order and written back in one batch request.
func (e *WeaviateEngine) Apply(ctx context.Context, batch []Operation) error {
	docs := make(map[string]Document)
	var order []string
	for _, op := range batch {
		doc, ok := docs[op.Entity]
		if !ok {
			existing, _, err := e.Document(ctx, op.Entity)
			if err != nil {
				return err
			}
			doc = existing
			if doc == nil {
				doc = Document{}
			}
			docs[op.Entity] = doc
			order = append(order, op.Entity)
		}
		doc.apply(op)
	}

	objects := make([]*models.Object, 0, len(order))
	for _, entity := range order {
		objects = append(objects, e.toObject(entity, docs[entity]))
	}

	results, err := e.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch upsert: %w", err)
	}

	var msgs []string
	for _, r := range results {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, item := range r.Result.Errors.Error {
			msgs = append(msgs, fmt.Sprintf("%s: %s", r.ID, item.Message))
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("batch upsert rejected %d objects: %s", len(msgs), strings.Join(msgs, "; "))
	}
	return nil
}

func (e *WeaviateEngine) toObject(entity string, doc Document) *models.Object {
	props := map[string]interface{}{entityProperty: entity}
	for _, f := range e.fields {
		values := doc[f]
		if values == nil {
			values = []string{}
		}
		props[f] = values
	}
	return &models.Object{
		Class:      e.class,
		ID:         objectID(entity),
		Properties: props,
	}
}

// Document implements Engine.
func (e *WeaviateEngine) Document(ctx context.Context, entity string) (Document, bool, error) {
	objs, err := e.client.Data().ObjectsGetter().
		WithClassName(e.class).
		WithID(string(objectID(entity))).
		Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get document %s: %w", entity, err)
	}
	if len(objs) == 0 {
		return nil, false, nil
	}

	props, _ := objs[0].Properties.(map[string]interface{})
	return documentFromProperties(e.fields, props), true, nil
}

func documentFromProperties(fields []string, props map[string]interface{}) Document {
	doc := Document{}
	for _, f := range fields {
		raw, ok := props[f].([]interface{})
		if !ok {
			continue
		}
		for _, v := range raw {
			if s, ok := v.(string); ok {
				doc[f] = append(doc[f], s)
			}
		}
	}
	return doc
}

// Query implements Engine. Ranking is Weaviate's own result order.
func (e *WeaviateEngine) Query(ctx context.Context, q Query) ([]string, error) {
	pattern := "*" + q.Term + "*"

	fields := e.fields
	if q.Field != "" {
		fields = []string{q.Field}
	}
	if len(fields) == 0 {
		return []string{}, nil
	}

	operands := make([]*filters.WhereBuilder, 0, len(fields))
	for _, f := range fields {
		operands = append(operands, filters.Where().
			WithPath([]string{f}).
			WithOperator(filters.Like).
			WithValueText(pattern))
	}
	where := operands[0]
	if len(operands) > 1 {
		where = filters.Where().WithOperator(filters.Or).WithOperands(operands)
	}

	resp, err := e.client.GraphQL().Get().
		WithClassName(e.class).
		WithFields(graphql.Field{Name: entityProperty}).
		WithWhere(where).
		WithLimit(q.limit()).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("query index: %s", resp.Errors[0].Message)
	}
	return parseEntities(e.class, resp.Data)
}

// parseEntities extracts entity identifiers from a GraphQL Get response.
func parseEntities(class string, data map[string]models.JSONObject) ([]string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("parse query response: %w", err)
	}

	var parsed struct {
		Get map[string][]struct {
			Entity string `json:"entity"`
		} `json:"Get"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse query response: %w", err)
	}

	entities := []string{}
	for _, hit := range parsed.Get[class] {
		entities = append(entities, hit.Entity)
	}
	return entities, nil
}

// Reset implements Engine by dropping and recreating the class.
func (e *WeaviateEngine) Reset(ctx context.Context) error {
	if err := e.client.Schema().ClassDeleter().WithClassName(e.class).Do(ctx); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete class %s: %w", e.class, err)
	}
	if err := e.client.Schema().ClassCreator().WithClass(e.classSchema()).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", e.class, err)
	}
	return nil
}

// Close implements Engine. The HTTP client holds no resources to release.
func (e *WeaviateEngine) Close() error {
	return nil
}
