// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package memstore

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/skburkard1/SharedSpace/internal/docstore"
)

// normalize converts a written value into the shape Firestore returns on
// read: arrays as []any, integers as int64, floats as float64.
func normalize(v any) any {
	switch v := v.(type) {
	case nil, string, bool, int64, float64, time.Time:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float32:
		return float64(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out
	case map[string]any:
		return copyMap(v)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	}
	return v
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

// resolve returns the value to store for a write of v over old.
func resolve(old, v any) any {
	switch v := v.(type) {
	case docstore.ArrayUnionValue:
		var out []any
		if arr, ok := old.([]any); ok {
			out = append(out, arr...)
		}
		for _, e := range v.Elems {
			e = normalize(e)
			if !containsValue(out, e) {
				out = append(out, e)
			}
		}
		if out == nil {
			out = []any{}
		}
		return out
	case map[string]any:
		next := map[string]any{}
		if om, ok := old.(map[string]any); ok {
			next = copyMap(om)
		}
		mergeInto(next, v)
		return next
	}
	return normalize(v)
}

// mergeInto writes src into dst, merging nested maps.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = resolve(dst[k], v)
	}
}

func getPath(m map[string]any, fieldPath string) (any, bool) {
	parts := strings.Split(fieldPath, ".")
	var cur any = m
	for _, p := range parts {
		cm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = cm[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(m map[string]any, fieldPath string, v any) {
	parts := strings.Split(fieldPath, ".")
	cur := m
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func containsValue(arr []any, v any) bool {
	for _, e := range arr {
		if reflect.DeepEqual(e, v) {
			return true
		}
	}
	return false
}

func matches(id string, data map[string]any, filters []docstore.Filter) (bool, error) {
	for _, f := range filters {
		var field any
		var has bool
		if f.Path == docstore.DocumentID {
			field, has = id, true
		} else {
			field, has = getPath(data, f.Path)
		}
		if !has {
			return false, nil
		}
		switch f.Op {
		case docstore.OpEqual:
			if compare(field, normalize(f.Value)) != 0 {
				return false, nil
			}
		case docstore.OpArrayContains:
			arr, ok := field.([]any)
			if !ok || !containsValue(arr, normalize(f.Value)) {
				return false, nil
			}
		case docstore.OpIn:
			vals, ok := normalize(f.Value).([]any)
			if !ok {
				return false, fmt.Errorf("memstore: %q filter needs a list value", f.Op)
			}
			found := false
			for _, v := range vals {
				if compare(field, v) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		default:
			return false, fmt.Errorf("memstore: unsupported operator %q", f.Op)
		}
	}
	return true, nil
}

// compare orders values of the same kind. Values of different kinds order
// by kind so sorting stays total.
func compare(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case int64, float64:
		if af, ok := toFloat(a); ok {
			if bf, ok := toFloat(b); ok {
				switch {
				case af < bf:
					return -1
				case af > bf:
					return 1
				default:
					return 0
				}
			}
		}
	}
	if reflect.DeepEqual(a, b) {
		return 0
	}
	if ta, tb := fmt.Sprintf("%T", a), fmt.Sprintf("%T", b); ta != tb {
		return strings.Compare(ta, tb)
	}
	if c := strings.Compare(fmt.Sprint(a), fmt.Sprint(b)); c != 0 {
		return c
	}
	return 1
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
