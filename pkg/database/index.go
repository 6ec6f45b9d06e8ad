package database

import "fmt"

// indexKey canonicalizes a field value into a postable map key. Arrays and
// mappings are excluded from index participation (see SPEC_FULL.md's
// resolution of the "posting-map value type must be hashable" open
// question) — ok is false for those.
func indexKey(v interface{}) (key string, ok bool) {
	switch val := v.(type) {
	case nil:
		return "null:", true
	case bool:
		return fmt.Sprintf("bool:%v", val), true
	case int64:
		return fmt.Sprintf("num:%v", float64(val)), true
	case float64:
		return fmt.Sprintf("num:%v", val), true
	case string:
		return "str:" + val, true
	default:
		return "", false
	}
}

// postingIndex maintains, for one indexed field, a map from canonical
// value key to the set of document ids whose field resolves to that value.
type postingIndex struct {
	byValue map[string][]string
}

func newPostingIndex() *postingIndex {
	return &postingIndex{byValue: make(map[string][]string)}
}

func (p *postingIndex) add(key, id string) {
	ids := p.byValue[key]
	for _, existing := range ids {
		if existing == id {
			return
		}
	}
	p.byValue[key] = append(ids, id)
}

func (p *postingIndex) remove(key, id string) {
	ids, ok := p.byValue[key]
	if !ok {
		return
	}
	for i, existing := range ids {
		if existing == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(p.byValue, key)
		return
	}
	p.byValue[key] = ids
}

func (p *postingIndex) get(key string) []string {
	return p.byValue[key]
}
