package template

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/dukex/autoflow/pkg/models"
)

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is returned by Resolve when a path does not lead to a value.
// It is distinct from a present nil value.
var Undefined any = undefined{}

// IsUndefined reports whether v is the Undefined marker.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)

	return ok
}

// Resolve walks ctx following the dot-separated path and returns the value found,
// or Undefined when a segment is missing or the current value cannot be traversed.
func Resolve(path string, ctx models.ExecutionContext) any {
	if ctx == nil {
		return Undefined
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return Undefined
	}

	var current any = map[string]any(ctx)

	for _, segment := range strings.Split(path, ".") {
		next, ok := child(current, segment)
		if !ok {
			return Undefined
		}

		current = next
	}

	return current
}

// Lookup is Resolve with a comma-ok result.
func Lookup(path string, ctx models.ExecutionContext) (any, bool) {
	value := Resolve(path, ctx)
	if IsUndefined(value) {
		return nil, false
	}

	return value, true
}

func child(current any, segment string) (any, bool) {
	switch node := current.(type) {
	case nil:
		return nil, false
	case map[string]any:
		v, ok := node[segment]

		return v, ok
	case models.ExecutionContext:
		v, ok := node[segment]

		return v, ok
	case map[string]string:
		v, ok := node[segment]

		return v, ok
	case []any:
		index, err := strconv.Atoi(segment)
		if err != nil || index < 0 || index >= len(node) {
			return nil, false
		}

		return node[index], true
	}

	return reflectChild(current, segment)
}

func reflectChild(current any, segment string) (any, bool) {
	value := reflect.ValueOf(current)
	for value.Kind() == reflect.Pointer || value.Kind() == reflect.Interface {
		if value.IsNil() {
			return nil, false
		}

		value = value.Elem()
	}

	switch value.Kind() {
	case reflect.Map:
		if value.Type().Key().Kind() != reflect.String {
			return nil, false
		}

		v := value.MapIndex(reflect.ValueOf(segment).Convert(value.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}

		return v.Interface(), true
	case reflect.Slice, reflect.Array:
		index, err := strconv.Atoi(segment)
		if err != nil || index < 0 || index >= value.Len() {
			return nil, false
		}

		return value.Index(index).Interface(), true
	default:
		return nil, false
	}
}
