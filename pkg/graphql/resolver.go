package graphql

import (
	"encoding/json"
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/navdb/navdb/pkg/auth"
	"github.com/navdb/navdb/pkg/document"
	"github.com/navdb/navdb/pkg/engine"
	"github.com/navdb/navdb/pkg/query"
)

// Resolver answers GraphQL queries by dispatching through an
// engine.Engine under the caller's principal, the same path the REST
// handlers and the CLI use.
type Resolver struct {
	engine *engine.Engine
}

// NewResolver builds a Resolver backed by eng.
func NewResolver(eng *engine.Engine) *Resolver {
	return &Resolver{engine: eng}
}

func (r *Resolver) session(p graphql.ResolveParams) (*engine.Session, error) {
	principal, ok := auth.FromContext(p.Context)
	if !ok {
		return nil, fmt.Errorf("no authenticated principal in request context")
	}
	return r.engine.NewSession(principal), nil
}

func stringArg(p graphql.ResolveParams, name string) (string, error) {
	v, ok := p.Args[name].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}

func mapArg(p graphql.ResolveParams, name string) map[string]interface{} {
	if v, ok := p.Args[name]; ok && v != nil {
		if m, ok := v.(map[string]interface{}); ok {
			return m
		}
	}
	return map[string]interface{}{}
}

func encodeDocs(docs []*document.Document) []map[string]interface{} {
	out := make([]map[string]interface{}, len(docs))
	for i, d := range docs {
		out[i] = d.ToMap()
	}
	return out
}

// Find resolves the "find" query.
func (r *Resolver) Find(p graphql.ResolveParams) (interface{}, error) {
	database, err := stringArg(p, "database")
	if err != nil {
		return nil, err
	}
	collection, err := stringArg(p, "collection")
	if err != nil {
		return nil, err
	}

	s, err := r.session(p)
	if err != nil {
		return nil, err
	}
	if _, err := s.Execute(&query.Operation{Kind: query.KindUseDB, Name: database}); err != nil {
		return nil, err
	}
	result, err := s.Execute(&query.Operation{
		Kind:       query.KindFind,
		Collection: collection,
		Filter:     mapArg(p, "filter"),
	})
	if err != nil {
		return nil, err
	}
	return encodeDocs(result.([]*document.Document)), nil
}

// Aggregate resolves the "aggregate" query. The pipeline argument is a
// list of JSON stage objects; it is re-encoded and decoded through
// document.ParseArray so nested stage operands become *document.Document
// values, as the pipeline stages expect. The JSON scalar decodes objects
// into Go maps, so the field order written in the query is not kept:
// stage operands (sort keys, group accumulators) arrive in sorted key order.
func (r *Resolver) Aggregate(p graphql.ResolveParams) (interface{}, error) {
	database, err := stringArg(p, "database")
	if err != nil {
		return nil, err
	}
	collection, err := stringArg(p, "collection")
	if err != nil {
		return nil, err
	}
	stages := []*document.Document{}
	if rawStages, ok := p.Args["pipeline"]; ok && rawStages != nil {
		raw, err := json.Marshal(rawStages)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		stages, err = document.ParseArray(raw)
		if err != nil {
			return nil, fmt.Errorf("pipeline must be a list of stage objects: %w", err)
		}
	}

	s, err := r.session(p)
	if err != nil {
		return nil, err
	}
	if _, err := s.Execute(&query.Operation{Kind: query.KindUseDB, Name: database}); err != nil {
		return nil, err
	}
	result, err := s.Execute(&query.Operation{
		Kind:       query.KindAggregate,
		Collection: collection,
		Pipeline:   stages,
	})
	if err != nil {
		return nil, err
	}
	return encodeDocs(result.([]*document.Document)), nil
}
