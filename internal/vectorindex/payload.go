package vectorindex

import (
	"fmt"
	"math"
	"sort"

	"github.com/qdrant/go-client/qdrant"
)

func toPayload(r Record) (map[string]*qdrant.Value, error) {
	payload := make(map[string]*qdrant.Value, len(r.Metadata)+2)
	for key, raw := range r.Metadata {
		v, err := toValue(raw)
		if err != nil {
			return nil, fmt.Errorf("record %s: metadata %q: %w", r.ID, key, err)
		}
		payload[key] = v
	}

	payload[PayloadVectorID] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: r.ID}}
	if r.Namespace != "" {
		payload[PayloadNamespace] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: r.Namespace}}
	}

	return payload, nil
}

func toValue(raw any) (*qdrant.Value, error) {
	switch v := raw.(type) {
	case nil:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{NullValue: qdrant.NullValue_NULL_VALUE}}, nil
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}, nil
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: v}}, nil
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(v)}}, nil
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: v}}, nil
	case float32:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(v)}}, nil
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: v}}, nil
	case []string:
		values := make([]*qdrant.Value, 0, len(v))
		for _, s := range v {
			values = append(values, &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}})
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}, nil
	default:
		return nil, fmt.Errorf("unsupported metadata value of type %T", raw)
	}
}

func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	md := make(map[string]any, len(payload))
	for key, v := range payload {
		md[key] = fromValue(v)
	}
	return md
}

func fromValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_ListValue:
		values := make([]any, 0, len(kind.ListValue.GetValues()))
		for _, item := range kind.ListValue.GetValues() {
			values = append(values, fromValue(item))
		}
		return values
	default:
		return nil
	}
}

// toFilter builds a conjunction of exact-match conditions. Keys are sorted so
// requests are reproducible.
func toFilter(filter map[string]any, namespace string) (*qdrant.Filter, error) {
	if len(filter) == 0 && namespace == "" {
		return nil, nil
	}

	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	must := make([]*qdrant.Condition, 0, len(keys)+1)
	for _, key := range keys {
		match, err := toMatch(filter[key])
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", key, err)
		}
		must = append(must, fieldCondition(key, match))
	}

	if namespace != "" {
		must = append(must, fieldCondition(PayloadNamespace, &qdrant.Match{
			MatchValue: &qdrant.Match_Keyword{Keyword: namespace},
		}))
	}

	return &qdrant.Filter{Must: must}, nil
}

func toMatch(raw any) (*qdrant.Match, error) {
	switch v := raw.(type) {
	case string:
		return &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}}, nil
	case bool:
		return &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: v}}, nil
	case int:
		return &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(v)}}, nil
	case int64:
		return &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: v}}, nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("non-integer number %v cannot be matched exactly", v)
		}
		return &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(v)}}, nil
	default:
		return nil, fmt.Errorf("unsupported filter value of type %T", raw)
	}
}

func fieldCondition(key string, match *qdrant.Match) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{Key: key, Match: match},
		},
	}
}
