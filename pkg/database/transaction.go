package database

import (
	"encoding/json"
	"time"

	"github.com/navdb/navdb/pkg/document"
)

// OpType names one of the five journal-able operation kinds.
type OpType string

const (
	OpInsert           OpType = "insert"
	OpUpdate           OpType = "update"
	OpDelete           OpType = "delete"
	OpCreateCollection OpType = "create_collection"
	OpDropCollection   OpType = "drop_collection"
)

// OperationRecord is one entry in a transaction's journal and operation
// list. Only the fields relevant to Type are populated.
type OperationRecord struct {
	Type        OpType
	Collection  string
	Timestamp   int64
	Document    *document.Document       // insert
	DocID       string                   // update, delete
	OriginalDoc *document.Document       // update
	Mutation    map[string]interface{}   // update
	Documents   []*document.Document     // drop_collection snapshot
	Indexes     []string                 // create_collection
}

func newOperationRecord(opType OpType, collection string) *OperationRecord {
	return &OperationRecord{Type: opType, Collection: collection, Timestamp: time.Now().Unix()}
}

type journalLine struct {
	Type        OpType                   `json:"type"`
	Collection  string                   `json:"collection"`
	Timestamp   int64                    `json:"timestamp"`
	Document    map[string]interface{}   `json:"document,omitempty"`
	DocID       string                   `json:"doc_id,omitempty"`
	OriginalDoc map[string]interface{}   `json:"original_doc,omitempty"`
	Mutation    map[string]interface{}   `json:"mutation,omitempty"`
	Documents   []map[string]interface{} `json:"documents,omitempty"`
	Indexes     []string                 `json:"indexes,omitempty"`
}

// MarshalJSON flattens an OperationRecord to the on-disk journal line shape
// described in SPEC_FULL.md's on-disk layout section.
func (r *OperationRecord) MarshalJSON() ([]byte, error) {
	line := journalLine{
		Type:       r.Type,
		Collection: r.Collection,
		Timestamp:  r.Timestamp,
		DocID:      r.DocID,
		Mutation:   r.Mutation,
		Indexes:    r.Indexes,
	}
	if r.Document != nil {
		line.Document = r.Document.ToMap()
	}
	if r.OriginalDoc != nil {
		line.OriginalDoc = r.OriginalDoc.ToMap()
	}
	if r.Documents != nil {
		line.Documents = make([]map[string]interface{}, len(r.Documents))
		for i, d := range r.Documents {
			line.Documents[i] = d.ToMap()
		}
	}
	return json.Marshal(line)
}

// UnmarshalJSON restores an OperationRecord from a journal line.
func (r *OperationRecord) UnmarshalJSON(data []byte) error {
	var line journalLine
	if err := json.Unmarshal(data, &line); err != nil {
		return err
	}
	r.Type = line.Type
	r.Collection = line.Collection
	r.Timestamp = line.Timestamp
	r.DocID = line.DocID
	r.Mutation = line.Mutation
	r.Indexes = line.Indexes
	if line.Document != nil {
		r.Document = document.FromMap(line.Document)
	}
	if line.OriginalDoc != nil {
		r.OriginalDoc = document.FromMap(line.OriginalDoc)
	}
	if line.Documents != nil {
		r.Documents = make([]*document.Document, len(line.Documents))
		for i, m := range line.Documents {
			r.Documents[i] = document.FromMap(m)
		}
	}
	return nil
}
