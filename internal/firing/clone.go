package firing

import "reflect"

// Clone 对数据层做尽力而为的深拷贝：循环引用处截断，
// 不可序列化的值（函数、通道等）直接略过，永不 panic。
func Clone(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	seen := map[uintptr]struct{}{}
	out, _ := cloneValue(src, seen).(map[string]any)
	return out
}

func cloneValue(v any, seen map[uintptr]struct{}) any {
	switch tv := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return tv
	case map[string]any:
		ptr := reflect.ValueOf(tv).Pointer()
		if _, cyc := seen[ptr]; cyc {
			return nil
		}
		seen[ptr] = struct{}{}
		out := make(map[string]any, len(tv))
		for k, cv := range tv {
			if c := cloneValue(cv, seen); c != nil || cv == nil {
				out[k] = c
			}
		}
		delete(seen, ptr)
		return out
	case []any:
		if len(tv) == 0 {
			return []any{}
		}
		ptr := reflect.ValueOf(tv).Pointer()
		if _, cyc := seen[ptr]; cyc {
			return nil
		}
		seen[ptr] = struct{}{}
		out := make([]any, 0, len(tv))
		for _, cv := range tv {
			out = append(out, cloneValue(cv, seen))
		}
		delete(seen, ptr)
		return out
	case []string:
		return append([]string(nil), tv...)
	default:
		return cloneReflect(reflect.ValueOf(v), seen)
	}
}

// cloneReflect 处理其余映射/切片形态，未知类型保留原引用（尽力而为）
func cloneReflect(rv reflect.Value, seen map[uintptr]struct{}) any {
	switch rv.Kind() {
	case reflect.Map:
		if _, cyc := seen[rv.Pointer()]; cyc {
			return nil
		}
		seen[rv.Pointer()] = struct{}{}
		defer delete(seen, rv.Pointer())
		out := make(map[string]any, rv.Len())
		it := rv.MapRange()
		for it.Next() {
			if it.Key().Kind() == reflect.String {
				out[it.Key().String()] = cloneValue(it.Value().Interface(), seen)
			}
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			if _, cyc := seen[rv.Pointer()]; cyc {
				return nil
			}
			seen[rv.Pointer()] = struct{}{}
			defer delete(seen, rv.Pointer())
		}
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, cloneValue(rv.Index(i).Interface(), seen))
		}
		return out
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil
	default:
		if rv.IsValid() && rv.CanInterface() {
			return rv.Interface()
		}
		return nil
	}
}
