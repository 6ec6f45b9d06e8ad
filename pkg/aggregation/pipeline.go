// Package aggregation implements the $match/$group/$sort/$limit/$skip/
// $project pipeline that runs over a collection's working set of documents.
package aggregation

import (
	"fmt"
	"sort"

	"github.com/navdb/navdb/pkg/document"
	"github.com/navdb/navdb/pkg/query"
)

// Stage is one step of a pipeline.
type Stage interface {
	Execute(docs []*document.Document) ([]*document.Document, error)
	Type() string
}

// Pipeline is an ordered list of stages applied to a working set
// initialized to the collection's sequence (shallow-copied by the caller).
type Pipeline struct {
	stages []Stage
}

// NewPipeline builds a pipeline from the parsed stage list, one *Document
// per stage (each holding exactly one field: the stage operator).
func NewPipeline(stageDefs []*document.Document) (*Pipeline, error) {
	p := &Pipeline{stages: make([]Stage, 0, len(stageDefs))}
	for _, stageDef := range stageDefs {
		if stageDef.Len() != 1 {
			return nil, fmt.Errorf("pipeline stage must have exactly one operator, got %d", stageDef.Len())
		}
		stageType := stageDef.Keys()[0]
		spec, _ := stageDef.Get(stageType)
		stage, err := createStage(stageType, spec)
		if err != nil {
			return nil, err
		}
		p.stages = append(p.stages, stage)
	}
	return p, nil
}

// Execute runs every stage in order over docs.
func (p *Pipeline) Execute(docs []*document.Document) ([]*document.Document, error) {
	result := docs
	for _, stage := range p.stages {
		var err error
		result, err = stage.Execute(result)
		if err != nil {
			return nil, fmt.Errorf("stage %s failed: %w", stage.Type(), err)
		}
	}
	return result, nil
}

func createStage(stageType string, spec interface{}) (Stage, error) {
	switch stageType {
	case "$match":
		return newMatchStage(spec)
	case "$project":
		return newProjectStage(spec)
	case "$sort":
		return newSortStage(spec)
	case "$limit":
		return newLimitStage(spec)
	case "$skip":
		return newSkipStage(spec)
	case "$group":
		return newGroupStage(spec)
	default:
		return nil, fmt.Errorf("unsupported stage type: %s", stageType)
	}
}

// --- $match ---

type matchStage struct {
	q *query.Query
}

func newMatchStage(spec interface{}) (*matchStage, error) {
	filter, ok := document.AsMap(spec)
	if !ok {
		return nil, fmt.Errorf("$match requires a filter object")
	}
	return &matchStage{q: query.New(filter)}, nil
}

func (s *matchStage) Execute(docs []*document.Document) ([]*document.Document, error) {
	out := make([]*document.Document, 0, len(docs))
	for _, d := range docs {
		ok, err := s.q.Matches(d)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *matchStage) Type() string { return "$match" }

// --- $project ---

type projectField struct {
	name    string
	include bool
	literal interface{}
	isLit   bool
}

type projectStage struct {
	fields []projectField
}

func newProjectStage(spec interface{}) (*projectStage, error) {
	doc, ok := spec.(*document.Document)
	if !ok {
		return nil, fmt.Errorf("$project requires a projection object")
	}
	var fields []projectField
	for _, name := range doc.Keys() {
		v, _ := doc.Get(name)
		switch val := v.(type) {
		case int64:
			fields = append(fields, projectField{name: name, include: val != 0})
		case float64:
			fields = append(fields, projectField{name: name, include: val != 0})
		case bool:
			fields = append(fields, projectField{name: name, include: val})
		default:
			if m, ok := document.AsMap(v); ok {
				if lit, ok := m["$literal"]; ok {
					fields = append(fields, projectField{name: name, isLit: true, literal: lit})
					continue
				}
			}
			return nil, fmt.Errorf("$project field %q must be 1, 0, or {$literal: v}", name)
		}
	}
	return &projectStage{fields: fields}, nil
}

func (s *projectStage) Execute(docs []*document.Document) ([]*document.Document, error) {
	out := make([]*document.Document, 0, len(docs))
	for _, d := range docs {
		projected := document.New()
		for _, f := range s.fields {
			if f.isLit {
				projected.Set(f.name, f.literal)
				continue
			}
			if !f.include {
				continue
			}
			if v, ok := d.GetPath(f.name); ok {
				projected.Set(f.name, v)
			}
		}
		out = append(out, projected)
	}
	return out, nil
}

func (s *projectStage) Type() string { return "$project" }

// --- $sort ---

type sortField struct {
	field     string
	ascending bool
}

type sortStage struct {
	fields []sortField
}

func newSortStage(spec interface{}) (*sortStage, error) {
	doc, ok := spec.(*document.Document)
	if !ok {
		return nil, fmt.Errorf("$sort requires a sort specification")
	}
	var fields []sortField
	for _, name := range doc.Keys() {
		v, _ := doc.Get(name)
		ascending := true
		switch n := v.(type) {
		case int64:
			ascending = n >= 0
		case float64:
			ascending = n >= 0
		}
		fields = append(fields, sortField{field: name, ascending: ascending})
	}
	return &sortStage{fields: fields}, nil
}

func (s *sortStage) Execute(docs []*document.Document) ([]*document.Document, error) {
	out := make([]*document.Document, len(docs))
	copy(out, docs)

	sort.SliceStable(out, func(i, j int) bool {
		for _, f := range s.fields {
			vi, okI := out[i].GetPath(f.field)
			vj, okJ := out[j].GetPath(f.field)
			if !okI && !okJ {
				continue
			}
			if !okI {
				return !f.ascending
			}
			if !okJ {
				return f.ascending
			}
			cmp, ok := document.Comparable(vi, vj)
			if !ok || cmp == 0 {
				continue
			}
			if f.ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
	return out, nil
}

func (s *sortStage) Type() string { return "$sort" }

// --- $limit / $skip ---

type limitStage struct{ n int }

func newLimitStage(spec interface{}) (*limitStage, error) {
	n, ok := toInt(spec)
	if !ok {
		return nil, fmt.Errorf("$limit requires a number")
	}
	return &limitStage{n: n}, nil
}

func (s *limitStage) Execute(docs []*document.Document) ([]*document.Document, error) {
	if s.n >= len(docs) || s.n < 0 {
		return docs, nil
	}
	return docs[:s.n], nil
}

func (s *limitStage) Type() string { return "$limit" }

type skipStage struct{ n int }

func newSkipStage(spec interface{}) (*skipStage, error) {
	n, ok := toInt(spec)
	if !ok {
		return nil, fmt.Errorf("$skip requires a number")
	}
	return &skipStage{n: n}, nil
}

func (s *skipStage) Execute(docs []*document.Document) ([]*document.Document, error) {
	if s.n >= len(docs) {
		return []*document.Document{}, nil
	}
	if s.n <= 0 {
		return docs, nil
	}
	return docs[s.n:], nil
}

func (s *skipStage) Type() string { return "$skip" }

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
