// Package serialize provides canonical, order-independent string encoding of
// arbitrary values. Two values with the same shape always encode to the same
// string regardless of map insertion order, which makes the output usable as
// a stable cache key. The encoding is not a wire format and is never parsed.
package serialize

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// circularMarker replaces a value that participates in a reference cycle at
// the point the cycle is detected.
const circularMarker = `"[Circular]"`

// nullMarker encodes nil, NaN, infinities, and unrepresentable references
// (funcs, channels). These all collapse to the same literal.
const nullMarker = "null"

// Serialize encodes v canonically. Object keys are sorted lexicographically
// at every nesting level, array order is preserved, and cycle detection
// tracks only the current ancestor chain so a value referenced from two
// sibling positions encodes normally in both.
func Serialize(v any) string {
	var sb strings.Builder
	e := encoder{sb: &sb}
	e.encode(reflect.ValueOf(v))
	return sb.String()
}

type encoder struct {
	sb *strings.Builder

	// ancestors holds the pointers of maps/slices/pointers currently being
	// encoded on the path from the root to the current value. Entries are
	// pushed on descent and popped on return, so only true ancestor cycles
	// trigger the circular marker.
	ancestors []uintptr
}

func (e *encoder) encode(v reflect.Value) {
	if !v.IsValid() {
		e.sb.WriteString(nullMarker)
		return
	}

	// Unwrap interfaces before anything else so extension checks see the
	// concrete type.
	for v.Kind() == reflect.Interface {
		if v.IsNil() {
			e.sb.WriteString(nullMarker)
			return
		}
		v = v.Elem()
	}

	if e.encodeExtension(v) {
		return
	}

	switch v.Kind() {
	case reflect.Bool:
		e.sb.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.sb.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.sb.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			e.sb.WriteString(nullMarker)
			return
		}
		e.sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case reflect.String:
		e.sb.WriteString(strconv.Quote(v.String()))
	case reflect.Slice, reflect.Array:
		e.encodeArray(v)
	case reflect.Map:
		e.encodeMap(v)
	case reflect.Struct:
		e.encodeStruct(v)
	case reflect.Pointer:
		if v.IsNil() {
			e.sb.WriteString(nullMarker)
			return
		}
		if e.isAncestor(v.Pointer()) {
			e.sb.WriteString(circularMarker)
			return
		}
		e.push(v.Pointer())
		e.encode(v.Elem())
		e.pop()
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// Non-serializable references collapse to the null marker.
		e.sb.WriteString(nullMarker)
	default:
		e.sb.WriteString(nullMarker)
	}
}

// encodeExtension handles the fixed extension set: big integers, time
// values, and pattern objects. Returns true when v was consumed.
func (e *encoder) encodeExtension(v reflect.Value) bool {
	if !v.CanInterface() {
		return false
	}

	switch x := v.Interface().(type) {
	case time.Time:
		fmt.Fprintf(e.sb, "Date(%s)", x.UTC().Format(time.RFC3339Nano))
		return true
	case *big.Int:
		if x == nil {
			e.sb.WriteString(nullMarker)
		} else {
			fmt.Fprintf(e.sb, "BigInt(%s)", x.String())
		}
		return true
	case big.Int:
		fmt.Fprintf(e.sb, "BigInt(%s)", x.String())
		return true
	case *regexp.Regexp:
		if x == nil {
			e.sb.WriteString(nullMarker)
		} else {
			fmt.Fprintf(e.sb, "RegExp(%s)", x.String())
		}
		return true
	}
	return false
}

func (e *encoder) encodeArray(v reflect.Value) {
	if v.Kind() == reflect.Slice {
		if v.IsNil() {
			e.sb.WriteString(nullMarker)
			return
		}
		if v.Len() > 0 && e.isAncestor(v.Pointer()) {
			e.sb.WriteString(circularMarker)
			return
		}
		e.push(v.Pointer())
		defer e.pop()
	}

	e.sb.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			e.sb.WriteByte(',')
		}
		e.encode(v.Index(i))
	}
	e.sb.WriteByte(']')
}

func (e *encoder) encodeMap(v reflect.Value) {
	if v.IsNil() {
		e.sb.WriteString(nullMarker)
		return
	}
	if e.isAncestor(v.Pointer()) {
		e.sb.WriteString(circularMarker)
		return
	}
	e.push(v.Pointer())
	defer e.pop()

	// A map with struct{} values is a value-set: only membership matters,
	// so it encodes as a sorted member list.
	if v.Type().Elem() == reflect.TypeOf(struct{}{}) {
		members := make([]string, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			members = append(members, Serialize(iter.Key().Interface()))
		}
		sort.Strings(members)
		fmt.Fprintf(e.sb, "Set(%s)", strings.Join(members, ","))
		return
	}

	type pair struct {
		key   string
		value reflect.Value
	}
	pairs := make([]pair, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		pairs = append(pairs, pair{key: e.encodeKey(iter.Key()), value: iter.Value()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	e.sb.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			e.sb.WriteByte(',')
		}
		e.sb.WriteString(p.key)
		e.sb.WriteByte(':')
		e.encode(p.value)
	}
	e.sb.WriteByte('}')
}

func (e *encoder) encodeStruct(v reflect.Value) {
	fields := reflect.VisibleFields(v.Type())
	type pair struct {
		name  string
		value reflect.Value
	}
	pairs := make([]pair, 0, len(fields))
	for _, f := range fields {
		if f.PkgPath != "" || f.Anonymous {
			continue
		}
		pairs = append(pairs, pair{name: strconv.Quote(f.Name), value: v.FieldByIndex(f.Index)})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].name < pairs[j].name })

	e.sb.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			e.sb.WriteByte(',')
		}
		e.sb.WriteString(p.name)
		e.sb.WriteByte(':')
		e.encode(p.value)
	}
	e.sb.WriteByte('}')
}

// encodeKey serializes a map key standalone so keys sort by their encoded
// form independent of Go's map iteration order.
func (e *encoder) encodeKey(k reflect.Value) string {
	return Serialize(k.Interface())
}

func (e *encoder) push(p uintptr) {
	e.ancestors = append(e.ancestors, p)
}

func (e *encoder) pop() {
	e.ancestors = e.ancestors[:len(e.ancestors)-1]
}

func (e *encoder) isAncestor(p uintptr) bool {
	for _, a := range e.ancestors {
		if a == p {
			return true
		}
	}
	return false
}
