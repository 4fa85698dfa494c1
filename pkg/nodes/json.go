package nodes

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/xeipuuv/gojsonschema"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
)

const (
	cacheKindJSONPath   = "jsonpath"
	cacheKindJSONSchema = "jsonschema"
)

// JSONPath queries a value with a JSONPath expression. Compiled expressions
// are kept in the run cache.
type JSONPath struct{}

func (n *JSONPath) GetNode() *domain.Node {
	node := domain.NewNode("json_path", "JSON Path", "Extracts data with a JSONPath expression", CategoryJSON)
	node.AddInputPin("value", "Value", "Object, array or JSON string", domain.VariableTypeGeneric)
	node.AddInputPin("path", "Path", "e.g. $.items[*].name", domain.VariableTypeString).WithDefault("$")
	node.AddInputPin("multiple", "Multiple", "Return every match as an array", domain.VariableTypeBoolean).WithDefault(false)
	node.AddOutputPin("result", "Result", "", domain.VariableTypeGeneric)
	node.AddOutputPin("found", "Found", "Whether anything matched", domain.VariableTypeBoolean)
	return node
}

func (n *JSONPath) Run(_ context.Context, ec *flow.ExecutionContext) error {
	path, err := flow.EvaluatePinAs[string](ec, "path")
	if err != nil {
		return err
	}
	multiple, err := flow.EvaluatePinAs[bool](ec, "multiple")
	if err != nil {
		return err
	}
	value, err := ec.EvaluatePin("value")
	if err != nil {
		return err
	}
	data, err := jsonDocument(value)
	if err != nil {
		return err
	}

	expr, err := compilePath(ec, path)
	if err != nil {
		return err
	}
	results := expr.Get(data)

	if err := ec.SetPinValue("found", len(results) > 0); err != nil {
		return err
	}
	switch {
	case multiple:
		if results == nil {
			results = []any{}
		}
		return ec.SetPinValue("result", results)
	case len(results) == 0:
		return ec.SetPinValue("result", nil)
	default:
		return ec.SetPinValue("result", results[0])
	}
}

func compilePath(ec *flow.ExecutionContext, path string) (jp.Expr, error) {
	key := cacheKindJSONPath + ":" + path
	if cached, ok := flow.CacheAs[*flow.Shared[jp.Expr]](ec.Cache(), key); ok {
		return cached.Load(), nil
	}
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath expression: %w", err)
	}
	ec.SetCache(key, flow.NewShared(cacheKindJSONPath, expr))
	return expr, nil
}

// jsonDocument accepts decoded JSON or a JSON string.
func jsonDocument(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	doc, err := oj.ParseString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return doc, nil
}

// JSONValidate checks a value against a JSON schema and routes execution to
// valid or invalid.
type JSONValidate struct{}

func (n *JSONValidate) GetNode() *domain.Node {
	node := domain.NewNode("json_validate", "Validate JSON", "Validates a value against a JSON schema", CategoryJSON)
	addExecIn(node)
	node.AddInputPin("value", "Value", "Object, array or JSON string", domain.VariableTypeGeneric)
	node.AddInputPin("schema", "Schema", "JSON schema", domain.VariableTypeString)
	node.AddOutputPin("valid", "Valid", "", domain.VariableTypeExecution)
	node.AddOutputPin("invalid", "Invalid", "", domain.VariableTypeExecution)
	node.AddOutputPin("errors", "Errors", "Validation messages", domain.VariableTypeString).WithValueType(domain.ValueTypeArray)
	return node
}

func (n *JSONValidate) Run(_ context.Context, ec *flow.ExecutionContext) error {
	if err := ec.DeactivateExecPin("valid"); err != nil {
		return err
	}
	if err := ec.DeactivateExecPin("invalid"); err != nil {
		return err
	}

	source, err := flow.EvaluatePinAs[string](ec, "schema")
	if err != nil {
		return err
	}
	value, err := ec.EvaluatePin("value")
	if err != nil {
		return err
	}
	doc, err := jsonDocument(value)
	if err != nil {
		return err
	}

	schema, err := compileSchema(ec, source)
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		messages = append(messages, e.String())
	}
	if err := ec.SetPinValue("errors", messages); err != nil {
		return err
	}
	if result.Valid() {
		return ec.ActivateExecPin("valid")
	}
	return ec.ActivateExecPin("invalid")
}

func compileSchema(ec *flow.ExecutionContext, source string) (*gojsonschema.Schema, error) {
	key := cacheKindJSONSchema + ":" + strconv.FormatUint(xxhash.Sum64String(source), 16)
	if cached, ok := flow.CacheAs[*flow.Shared[*gojsonschema.Schema]](ec.Cache(), key); ok {
		return cached.Load(), nil
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %w", err)
	}
	ec.SetCache(key, flow.NewShared(cacheKindJSONSchema, schema))
	return schema, nil
}
