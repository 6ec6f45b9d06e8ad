// JSON scalar plumbing for the GraphQL schema: navdb's documents are
// schemaless, so filters, updates, and aggregation pipeline stages all
// cross the wire as this one scalar rather than a typed GraphQL object.
package graphql

import (
	"encoding/json"
	"strconv"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// JSONScalar represents an arbitrary JSON value (object, array, or
// scalar) as specified by ECMA-404.
var JSONScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "An arbitrary JSON value, as specified by ECMA-404",
	Serialize:   func(value interface{}) interface{} { return value },
	ParseValue:  parseJSONVariable,
	ParseLiteral: func(valueAST ast.Value) interface{} {
		return parseLiteralValue(valueAST)
	},
})

// parseJSONVariable handles a value arriving through GraphQL variables
// rather than inline in the query document. Variables already decoded
// by the transport (maps, slices, numbers) pass through untouched; a
// bare string is re-parsed as JSON so callers can pass either form.
func parseJSONVariable(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]interface{}, []interface{}:
		return v
	case string:
		var decoded interface{}
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil
		}
		return decoded
	default:
		return v
	}
}

// parseLiteralValue recursively converts one inline query-document AST
// node into the Go value it represents.
func parseLiteralValue(valueAST ast.Value) interface{} {
	switch v := valueAST.(type) {
	case *ast.ObjectValue:
		obj := make(map[string]interface{}, len(v.Fields))
		for _, field := range v.Fields {
			obj[field.Name.Value] = parseLiteralValue(field.Value)
		}
		return obj
	case *ast.ListValue:
		list := make([]interface{}, len(v.Values))
		for i, item := range v.Values {
			list[i] = parseLiteralValue(item)
		}
		return list
	case *ast.StringValue:
		return v.Value
	case *ast.IntValue:
		num, _ := strconv.ParseInt(v.Value, 10, 64)
		return num
	case *ast.FloatValue:
		num, _ := strconv.ParseFloat(v.Value, 64)
		return num
	case *ast.BooleanValue:
		return v.Value
	case *ast.EnumValue:
		return v.Value
	default:
		return nil
	}
}
