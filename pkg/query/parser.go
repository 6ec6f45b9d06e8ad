package query

import (
	"encoding/json"
	"strings"

	"github.com/navdb/navdb/pkg/document"
)

// Parse translates one line of the surface query language into a structured
// Operation. The verb token is matched case-insensitively; everything after
// it (operand JSON, names) is case-sensitive and consumed verbatim.
func Parse(line string) (*Operation, error) {
	trimmed := strings.TrimSpace(line)
	lower := strings.ToLower(trimmed)

	switch {
	case lower == "begin tx" || strings.HasPrefix(lower, "begin tx"):
		return &Operation{Kind: KindBeginTx}, nil
	case lower == "commit":
		return &Operation{Kind: KindCommit}, nil
	case lower == "rollback":
		return &Operation{Kind: KindRollback}, nil

	case strings.HasPrefix(lower, "nava database banao "):
		return &Operation{Kind: KindCreateDB, Name: strings.TrimSpace(trimmed[len("nava database banao "):])}, nil
	case strings.HasPrefix(lower, "database nu mitao "):
		return &Operation{Kind: KindDropDB, Name: strings.TrimSpace(trimmed[len("database nu mitao "):])}, nil
	case strings.HasPrefix(lower, "database chalao "):
		return &Operation{Kind: KindUseDB, Name: strings.TrimSpace(trimmed[len("database chalao "):])}, nil

	case strings.HasPrefix(lower, "nava collection banao "):
		return &Operation{Kind: KindCreateCollection, Name: strings.TrimSpace(trimmed[len("nava collection banao "):])}, nil
	case strings.HasPrefix(lower, "collection nu mitao "):
		return &Operation{Kind: KindDropCollection, Name: strings.TrimSpace(trimmed[len("collection nu mitao "):])}, nil

	case strings.HasPrefix(lower, "index banao "):
		return parseCreateIndex(trimmed[len("index banao "):])
	case strings.HasPrefix(lower, "index dikhao "):
		return &Operation{Kind: KindListIndexes, Collection: strings.TrimSpace(trimmed[len("index dikhao "):])}, nil
	case lower == "index chalo karo":
		return &Operation{Kind: KindEnableIndexing, Enable: true}, nil
	case lower == "index band karo":
		return &Operation{Kind: KindEnableIndexing, Enable: false}, nil

	case strings.HasPrefix(lower, "dakhil karo "):
		return parseInsert(trimmed[len("dakhil karo "):])
	case strings.HasPrefix(lower, "badlo "):
		return parseUpdate(trimmed[len("badlo "):])
	case strings.HasPrefix(lower, "mitao "):
		return parseDelete(trimmed[len("mitao "):])
	case strings.HasPrefix(lower, "labbo "):
		return parseFind(trimmed[len("labbo "):])
	case strings.HasPrefix(lower, "aggregate in "):
		return parseAggregate(trimmed[len("aggregate in "):])

	case strings.HasPrefix(lower, "backup banao "):
		return &Operation{Kind: KindBackup, Name: strings.TrimSpace(trimmed[len("backup banao "):])}, nil
	case strings.HasPrefix(lower, "restore karo "):
		return &Operation{Kind: KindRestore, Name: strings.TrimSpace(trimmed[len("restore karo "):])}, nil
	}

	return nil, &ParseError{Message: "unrecognized command: " + trimmed}
}

func parseCreateIndex(rest string) (*Operation, error) {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return nil, &ParseError{Message: "index banao requires <field> <collection>"}
	}
	return &Operation{Kind: KindCreateIndex, Field: parts[0], Collection: parts[1]}, nil
}

func parseInsert(rest string) (*Operation, error) {
	collection, body, err := splitCollectionAndRest(rest)
	if err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if strings.HasPrefix(body, "[") {
		var docs []map[string]interface{}
		if err := decodeJSON(body, &docs); err != nil {
			return nil, err
		}
		return &Operation{Kind: KindInsertMany, Collection: collection, Documents: docs}, nil
	}
	var doc map[string]interface{}
	if err := decodeJSON(body, &doc); err != nil {
		return nil, err
	}
	return &Operation{Kind: KindInsert, Collection: collection, Document: doc}, nil
}

func parseUpdate(rest string) (*Operation, error) {
	collection, body, err := splitCollectionAndRest(rest)
	if err != nil {
		return nil, err
	}
	objects, err := splitBalancedObjects(body, 2)
	if err != nil {
		return nil, err
	}
	var filter, mutation map[string]interface{}
	if err := decodeJSON(objects[0], &filter); err != nil {
		return nil, err
	}
	if err := decodeJSON(objects[1], &mutation); err != nil {
		return nil, err
	}
	return &Operation{Kind: KindUpdate, Collection: collection, Filter: filter, Update: mutation}, nil
}

func parseDelete(rest string) (*Operation, error) {
	collection, body, err := splitCollectionAndRest(rest)
	if err != nil {
		return nil, err
	}
	var filter map[string]interface{}
	if err := decodeJSON(strings.TrimSpace(body), &filter); err != nil {
		return nil, err
	}
	return &Operation{Kind: KindDelete, Collection: collection, Filter: filter}, nil
}

func parseFind(rest string) (*Operation, error) {
	rest = strings.TrimSpace(rest)
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil, &ParseError{Message: "labbo requires a collection name"}
	}
	collection := fields[0]
	body := strings.TrimSpace(rest[len(collection):])
	filter := map[string]interface{}{}
	if body != "" {
		if err := decodeJSON(body, &filter); err != nil {
			return nil, err
		}
	}
	return &Operation{Kind: KindFind, Collection: collection, Filter: filter}, nil
}

func parseAggregate(rest string) (*Operation, error) {
	collection, body, err := splitCollectionAndRest(rest)
	if err != nil {
		return nil, err
	}
	pipeline, err := document.ParseArray([]byte(strings.TrimSpace(body)))
	if err != nil {
		if syn, ok := err.(*json.SyntaxError); ok {
			return nil, newParseErrorAt("malformed JSON: "+syn.Error(), []byte(body), syn.Offset)
		}
		return nil, &ParseError{Message: "malformed JSON: " + err.Error()}
	}
	return &Operation{Kind: KindAggregate, Collection: collection, Pipeline: pipeline}, nil
}

// splitCollectionAndRest peels the first whitespace-delimited token off rest
// as the collection name, returning the remainder untouched (it still
// contains whatever JSON follows, leading whitespace included).
func splitCollectionAndRest(rest string) (collection, remainder string, err error) {
	rest = strings.TrimLeft(rest, " ")
	idx := strings.IndexAny(rest, " \t")
	if idx < 0 {
		return "", "", &ParseError{Message: "expected a collection name followed by JSON"}
	}
	return rest[:idx], rest[idx+1:], nil
}

// splitBalancedObjects scans body for exactly n top-level brace-balanced
// JSON object literals, returning their raw text.
func splitBalancedObjects(body string, n int) ([]string, error) {
	var objects []string
	rest := strings.TrimSpace(body)
	for len(objects) < n {
		rest = strings.TrimSpace(rest)
		if rest == "" || rest[0] != '{' {
			return nil, &ParseError{Message: "expected a JSON object"}
		}
		depth := 0
		inString := false
		escaped := false
		end := -1
		for i, ch := range rest {
			if inString {
				if escaped {
					escaped = false
				} else if ch == '\\' {
					escaped = true
				} else if ch == '"' {
					inString = false
				}
				continue
			}
			switch ch {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					end = i
				}
			}
			if end >= 0 {
				break
			}
		}
		if end < 0 {
			return nil, &ParseError{Message: "unbalanced JSON object"}
		}
		objects = append(objects, rest[:end+1])
		rest = rest[end+1:]
	}
	return objects, nil
}

// decodeJSON decodes text into out, wrapping a failure into a ParseError
// carrying offset/line/column derived from the JSON decoder's own error.
func decodeJSON(text string, out interface{}) error {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		if syn, ok := err.(*json.SyntaxError); ok {
			return newParseErrorAt("malformed JSON: "+syn.Error(), []byte(text), syn.Offset)
		}
		if te, ok := err.(*json.UnmarshalTypeError); ok {
			return newParseErrorAt("malformed JSON: "+te.Error(), []byte(text), te.Offset)
		}
		return &ParseError{Message: "malformed JSON: " + err.Error()}
	}
	return normalizeDecoded(out)
}

// normalizeDecoded walks the decoded structure converting json.Number into
// int64/float64, matching document.FromJSON's number handling so filters
// and documents agree on representation.
func normalizeDecoded(out interface{}) error {
	switch v := out.(type) {
	case *map[string]interface{}:
		*v = normalizeMap(*v)
	case *[]map[string]interface{}:
		for i, m := range *v {
			(*v)[i] = normalizeMap(m)
		}
	}
	return nil
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	for k, val := range m {
		m[k] = normalizeAny(val)
	}
	return m
}

func normalizeAny(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]interface{}:
		return normalizeMap(val)
	case []interface{}:
		for i, e := range val {
			val[i] = normalizeAny(e)
		}
		return val
	default:
		return val
	}
}
