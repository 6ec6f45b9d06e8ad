package database

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/navdb/navdb/pkg/aggregation"
	"github.com/navdb/navdb/pkg/document"
	"github.com/navdb/navdb/pkg/query"
)

// TxSink is the collaborator a Collection logs tentative mutations to while
// participating in a transaction. Database implements it; Collection never
// holds a back-pointer to its owning Database, only this interface,
// injected at the point transaction context is entered.
type TxSink interface {
	LogOperation(rec *OperationRecord) error
}

// Collection owns one named document sequence: the full-scan order, the
// id->document index, and any declared field indexes.
type Collection struct {
	mu sync.RWMutex

	name string
	path string

	docs []*document.Document
	byID map[string]*document.Document

	indexedFields   []string // declaration order
	indexes         map[string]*postingIndex
	indexingEnabled bool

	txID   string
	txSink TxSink
}

// NewCollection returns an empty, unsaved collection.
func NewCollection(name, path string) *Collection {
	return &Collection{
		name:    name,
		path:    path,
		byID:    make(map[string]*document.Document),
		indexes: make(map[string]*postingIndex),
	}
}

// LoadCollection reads a collection's JSON-array file from disk. A missing,
// empty, or malformed file is treated as an empty collection, per
// SPEC_FULL.md's on-disk layout section.
func LoadCollection(name, path string) (*Collection, error) {
	c := NewCollection(name, path)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, wrapErr(KindIO, "load_collection", "failed to read collection file", err)
	}
	if len(data) == 0 {
		return c, nil
	}
	docs, err := document.ParseArray(data)
	if err != nil {
		return c, nil // malformed JSON treated as empty, per spec §6
	}
	for _, d := range docs {
		c.docs = append(c.docs, d)
		if id := d.ID(); id != "" {
			c.byID[id] = d
		}
	}
	return c, nil
}

// save persists the collection's current sequence as a JSON array. Callers
// must only invoke Save when no transaction is active on the collection —
// EnterTx/ExitTx enforce that by gating it in the mutation methods.
func (c *Collection) save() error {
	arr := make([]json.RawMessage, 0, len(c.docs))
	for _, d := range c.docs {
		raw, err := d.MarshalJSON()
		if err != nil {
			return wrapErr(KindIO, "save", "failed to marshal document", err)
		}
		arr = append(arr, raw)
	}
	data, err := json.Marshal(arr)
	if err != nil {
		return wrapErr(KindIO, "save", "failed to marshal collection", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return wrapErr(KindIO, "save", "failed to write collection file", err)
	}
	return nil
}

func (c *Collection) maybeSave() error {
	if c.txID != "" {
		return nil
	}
	return c.save()
}

// EnterTx installs transaction context: subsequent mutations log to sink
// and defer disk persistence to commit.
func (c *Collection) EnterTx(txID string, sink TxSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txID = txID
	c.txSink = sink
}

// ExitTx clears transaction context (called on commit/rollback completion).
func (c *Collection) ExitTx() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txID = ""
	c.txSink = nil
}

func (c *Collection) log(rec *OperationRecord) error {
	if c.txSink == nil {
		return nil
	}
	return c.txSink.LogOperation(rec)
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// --- Index management ---

// CreateIndex declares field as indexed and rebuilds its posting map by
// scanning the current sequence. Rebuild is idempotent; indexing an
// already-indexed field fails with Conflict.
func (c *Collection) CreateIndex(field string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.indexes[field]; exists {
		return newErr(KindConflict, "create_index", "index already exists on field "+field)
	}
	idx := newPostingIndex()
	for _, d := range c.docs {
		if v, ok := d.Get(field); ok {
			if key, ok := indexKey(v); ok {
				idx.add(key, d.ID())
			}
		}
	}
	c.indexes[field] = idx
	c.indexedFields = append(c.indexedFields, field)
	return nil
}

// ListIndexes returns the declared indexed fields in creation order.
func (c *Collection) ListIndexes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.indexedFields))
	copy(out, c.indexedFields)
	return out
}

// EnableIndexing toggles whether find/find_one consult posting maps.
func (c *Collection) EnableIndexing(enable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexingEnabled = enable
}

func (c *Collection) indexInsert(d *document.Document) {
	id := d.ID()
	for field, idx := range c.indexes {
		if v, ok := d.Get(field); ok {
			if key, ok := indexKey(v); ok {
				idx.add(key, id)
			}
		}
	}
}

func (c *Collection) indexDelete(d *document.Document) {
	id := d.ID()
	for field, idx := range c.indexes {
		if v, ok := d.Get(field); ok {
			if key, ok := indexKey(v); ok {
				idx.remove(key, id)
			}
		}
	}
}

func (c *Collection) indexUpdate(before, after *document.Document) {
	c.indexDelete(before)
	c.indexInsert(after)
}

// --- Mutations ---

// InsertOne inserts doc, assigning a server _id if absent. Returns the
// assigned id.
func (c *Collection) InsertOne(doc *document.Document) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertLocked(doc)
}

func (c *Collection) insertLocked(doc *document.Document) (string, error) {
	id := doc.ID()
	if id == "" {
		id = NewID()
		doc.Set("_id", id)
	}
	if _, exists := c.byID[id]; exists {
		return "", newErr(KindValidation, "insert", "duplicate _id "+id)
	}

	c.docs = append(c.docs, doc)
	c.byID[id] = doc

	if c.txID != "" {
		rec := newOperationRecord(OpInsert, c.name)
		rec.Document = doc
		if err := c.log(rec); err != nil {
			return "", wrapErr(KindIO, "insert", "failed to journal operation", err)
		}
		return id, nil
	}

	c.indexInsert(doc)
	if err := c.save(); err != nil {
		return "", err
	}
	return id, nil
}

// InsertMany inserts each document in order; not atomic at the
// single-operation level (an error leaves ids already assigned to prior
// documents).
func (c *Collection) InsertMany(docs []*document.Document) ([]string, error) {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		id, err := c.InsertOne(d)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// UpdateOne mutates the first matching document in sequence order.
// Returns 1 if a match was found and mutated, 0 otherwise.
func (c *Collection) UpdateOne(filter, mutation map[string]interface{}) (int, error) {
	return c.update(filter, mutation, false)
}

// UpdateMany mutates every matching document.
func (c *Collection) UpdateMany(filter, mutation map[string]interface{}) (int, error) {
	return c.update(filter, mutation, true)
}

func (c *Collection) update(filter, mutation map[string]interface{}, all bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, d := range c.docs {
		matched, err := query.Match(d, filter)
		if err != nil {
			return count, wrapErr(KindValidation, "update", "bad filter", err)
		}
		if !matched {
			continue
		}

		original := d.Clone()
		before := d.Clone()
		if err := applyMutation(d, mutation); err != nil {
			return count, err
		}
		count++

		if c.txID != "" {
			rec := newOperationRecord(OpUpdate, c.name)
			rec.DocID = d.ID()
			rec.OriginalDoc = original
			rec.Mutation = mutation
			if err := c.log(rec); err != nil {
				return count, wrapErr(KindIO, "update", "failed to journal operation", err)
			}
		} else {
			c.indexUpdate(before, d)
		}

		if !all {
			break
		}
	}

	if count > 0 {
		if err := c.maybeSave(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// DeleteOne removes the first matching document.
func (c *Collection) DeleteOne(filter map[string]interface{}) (int, error) {
	return c.delete(filter, false)
}

// DeleteMany removes every matching document.
func (c *Collection) DeleteMany(filter map[string]interface{}) (int, error) {
	return c.delete(filter, true)
}

func (c *Collection) delete(filter map[string]interface{}, all bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var remaining []*document.Document
	count := 0
	for _, d := range c.docs {
		if !all && count > 0 {
			remaining = append(remaining, d)
			continue
		}
		matched, err := query.Match(d, filter)
		if err != nil {
			return count, wrapErr(KindValidation, "delete", "bad filter", err)
		}
		if !matched {
			remaining = append(remaining, d)
			continue
		}

		count++
		delete(c.byID, d.ID())

		if c.txID != "" {
			rec := newOperationRecord(OpDelete, c.name)
			rec.DocID = d.ID()
			rec.Document = d
			if err := c.log(rec); err != nil {
				return count, wrapErr(KindIO, "delete", "failed to journal operation", err)
			}
		} else {
			c.indexDelete(d)
		}
	}
	c.docs = remaining

	if count > 0 {
		if err := c.maybeSave(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// applyMutation dispatches the update payload's single operator ($set,
// $unset, $push, or a bare mapping treated as $set) against doc in place.
func applyMutation(doc *document.Document, mutation map[string]interface{}) error {
	if setVal, ok := mutation["$set"]; ok && len(mutation) == 1 {
		m, ok := document.AsMap(setVal)
		if !ok {
			return newErr(KindValidation, "update", "$set requires a mapping")
		}
		document.DeepMerge(doc, m)
		return nil
	}
	if unsetVal, ok := mutation["$unset"]; ok && len(mutation) == 1 {
		fields, ok := toStringSlice(unsetVal)
		if !ok {
			return newErr(KindValidation, "update", "$unset requires an array of field names or a mapping of field names")
		}
		for _, f := range fields {
			doc.Delete(f)
		}
		return nil
	}
	if pushVal, ok := mutation["$push"]; ok && len(mutation) == 1 {
		m, ok := document.AsMap(pushVal)
		if !ok {
			return newErr(KindValidation, "update", "$push requires a mapping")
		}
		for field, v := range m {
			existing, has := doc.Get(field)
			if !has {
				doc.Set(field, []interface{}{v})
				continue
			}
			arr, ok := existing.([]interface{})
			if !ok {
				return newErr(KindValidation, "update", "$push target field "+field+" is not an array")
			}
			doc.Set(field, append(arr, v))
		}
		return nil
	}
	if isOperatorPayload(mutation) {
		return newErr(KindValidation, "update", "unknown update operator")
	}
	// Bare mapping: treated as $set.
	document.DeepMerge(doc, mutation)
	return nil
}

func isOperatorPayload(mutation map[string]interface{}) bool {
	for k := range mutation {
		if len(k) > 0 && k[0] == '$' {
			return true
		}
	}
	return false
}

func toStringSlice(v interface{}) ([]string, bool) {
	switch val := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, e := range val {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case map[string]interface{}:
		out := make([]string, 0, len(val))
		for k := range val {
			out = append(out, k)
		}
		return out, true
	default:
		return nil, false
	}
}

// --- Queries ---

// Find returns every document matching filter, preserving insertion order.
// When indexing is enabled, the first indexed top-level field in the
// filter with an equality/$eq/$in condition selects an index-driven plan;
// candidates are still re-checked against the full predicate.
func (c *Collection) Find(filter map[string]interface{}) ([]*document.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q := query.New(filter)
	candidates := c.planCandidates(q)

	out := make([]*document.Document, 0, len(candidates))
	for _, d := range candidates {
		ok, err := q.Matches(d)
		if err != nil {
			return nil, wrapErr(KindValidation, "find", "bad filter", err)
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// FindOne returns the first matching document, or nil if none match.
func (c *Collection) FindOne(filter map[string]interface{}) (*document.Document, error) {
	docs, err := c.Find(filter)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// Count returns the number of matching documents.
func (c *Collection) Count(filter map[string]interface{}) (int, error) {
	docs, err := c.Find(filter)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// planCandidates returns the full sequence (full scan) or an index-derived
// candidate subset, in full-scan order either way.
func (c *Collection) planCandidates(q *query.Query) []*document.Document {
	if !c.indexingEnabled {
		return c.fullScan()
	}
	for _, field := range q.TopLevelFields() {
		idx, ok := c.indexes[field]
		if !ok {
			continue
		}
		cond, _ := q.Filter()[field]
		values, isEquality, _ := query.EqualityOperand(cond)
		if !isEquality {
			continue
		}
		seen := make(map[string]bool)
		var ids []string
		for _, v := range values {
			key, ok := indexKey(v)
			if !ok {
				continue
			}
			for _, id := range idx.get(key) {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
		return c.materializeInOrder(ids)
	}
	return c.fullScan()
}

func (c *Collection) fullScan() []*document.Document {
	out := make([]*document.Document, len(c.docs))
	copy(out, c.docs)
	return out
}

// materializeInOrder resolves ids via the id->doc map, preserving the
// collection's full-scan order (not the order ids were supplied in) and
// silently skipping ids with no live document (can happen for a tx-cold
// index pointing at a doc mirrored-deleted during the active transaction).
func (c *Collection) materializeInOrder(ids []string) []*document.Document {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]*document.Document, 0, len(ids))
	for _, d := range c.docs {
		if want[d.ID()] {
			out = append(out, d)
		}
	}
	return out
}

// Aggregate runs an aggregation pipeline over the collection's sequence.
func (c *Collection) Aggregate(stages []*document.Document) ([]*document.Document, error) {
	c.mu.RLock()
	docs := c.fullScan()
	c.mu.RUnlock()

	p, err := aggregation.NewPipeline(stages)
	if err != nil {
		return nil, wrapErr(KindValidation, "aggregate", "bad pipeline", err)
	}
	out, err := p.Execute(docs)
	if err != nil {
		return nil, wrapErr(KindValidation, "aggregate", "pipeline execution failed", err)
	}
	return out, nil
}

// --- Apply / Undo (transaction commit / rollback) ---

// Apply permanently re-executes a journal record against the collection:
// for insert/delete the document is already mirrored into the sequence, so
// Apply only finishes indexing it; for update it reindexes using the
// pre-mutation original captured in the record.
func (c *Collection) Apply(rec *OperationRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch rec.Type {
	case OpInsert:
		c.indexInsert(rec.Document)
	case OpDelete:
		c.indexDelete(rec.Document)
	case OpUpdate:
		cur, ok := c.byID[rec.DocID]
		if !ok {
			return newErr(KindFatalTransaction, "commit", "update target vanished: "+rec.DocID)
		}
		c.indexUpdate(rec.OriginalDoc, cur)
	default:
		return nil
	}
	return c.save()
}

// Undo reverses a journal record against the collection: insert's undo
// removes the mirrored document; delete's undo re-inserts it; update's undo
// restores the original document's fields. No index changes are made,
// since indexes were never touched for tentative operations (see
// SPEC_FULL.md's transaction buffering vs. visibility section).
func (c *Collection) Undo(rec *OperationRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch rec.Type {
	case OpInsert:
		id := rec.Document.ID()
		delete(c.byID, id)
		c.docs = removeByID(c.docs, id)
	case OpDelete:
		c.docs = append(c.docs, rec.Document)
		c.byID[rec.Document.ID()] = rec.Document
	case OpUpdate:
		cur, ok := c.byID[rec.DocID]
		if !ok {
			return newErr(KindFatalTransaction, "rollback", "update target vanished: "+rec.DocID)
		}
		restoreFields(cur, rec.OriginalDoc)
	default:
		return nil
	}
	return nil
}

func removeByID(docs []*document.Document, id string) []*document.Document {
	out := make([]*document.Document, 0, len(docs))
	for _, d := range docs {
		if d.ID() != id {
			out = append(out, d)
		}
	}
	return out
}

// restoreFields replaces cur's fields with original's, in place, so shared
// pointers into cur (e.g. sequence/byID) keep seeing the restored value.
func restoreFields(cur, original *document.Document) {
	for _, k := range cur.Keys() {
		cur.Delete(k)
	}
	for _, k := range original.Keys() {
		v, _ := original.Get(k)
		cur.Set(k, v)
	}
}

// Documents returns a snapshot of the current sequence, used by
// drop_collection to capture an undo image.
func (c *Collection) Documents() []*document.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fullScan()
}
