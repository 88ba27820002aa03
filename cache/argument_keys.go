package cache

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// replacements is applied in order over the whole argument string.
var replacements = []struct{ char, code string }{
	{" ", "SP"},
	{"+", "PL"},
	{"=", "EQ"},
	{">", "GT"},
	{"<", "LT"},
	{"{", "LB"},
	{"}", "RB"},
	{"[", "LB2"},
	{"]", "RB2"},
	{";", "SC"},
	{":", "CO"},
	{"-", "DA"},
	{",", "COM"},
}

// Key is an ordered sequence of cache key segments.
type Key []string

// NewKey builds a Key, dropping nil and empty segments.
func NewKey(segments ...any) Key {
	key := make(Key, 0, len(segments))
	for _, s := range segments {
		str := stringify(s)
		if str == "" {
			continue
		}
		key = append(key, str)
	}
	return key
}

// String joins the segments with KeySeparator.
func (k Key) String() string {
	return strings.Join(k, KeySeparator)
}

// ArgumentKeys encodes args into a single cache key segment.
//
// Arguments are concatenated in the order given; callers sort them by
// attribute name first. With OptionRemoveCharacters the characters in the
// special class are stripped, with OptionReplaceCharacters each is replaced by
// its mnemonic code.
func ArgumentKeys(args []any, opts Options) string {
	var b strings.Builder
	for _, arg := range args {
		writeArgument(&b, arg)
	}
	raw := b.String()

	switch {
	case opts.Bool(OptionRemoveCharacters):
		return strings.Map(func(r rune) rune {
			if isSpecial(r) {
				return -1
			}
			return r
		}, raw)
	case opts.Bool(OptionReplaceCharacters):
		for _, rep := range replacements {
			raw = strings.ReplaceAll(raw, rep.char, rep.code)
		}
		return raw
	default:
		return raw
	}
}

func isSpecial(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	return strings.ContainsRune("+=><{}[];:-,", r)
}

// writeArgument appends the string form of v. Slices and arrays are
// flattened and nil values skipped.
func writeArgument(b *strings.Builder, v any) {
	if v == nil {
		return
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return
		}
		if _, ok := v.(fmt.Stringer); ok {
			b.WriteString(stringify(v))
			return
		}
		writeArgument(b, rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b.Write(rv.Bytes())
			return
		}
		fallthrough
	case reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			writeArgument(b, rv.Index(i).Interface())
		}
	default:
		b.WriteString(stringify(v))
	}
}

// stringify renders a single value deterministically.
func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(fmt.Stringer); ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr && rv.IsNil() {
			return ""
		}
		return s.String()
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	switch rt.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return ""
		}
		return stringify(rv.Elem().Interface())
	case reflect.Func:
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.Map:
		return stringifyMap(rv)
	case reflect.Struct:
		return stringifyStruct(rv, rt)
	case reflect.Slice, reflect.Array:
		var b strings.Builder
		writeArgument(&b, v)
		return b.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// stringifyMap renders a map with sorted keys.
func stringifyMap(rv reflect.Value) string {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, stringify(iter.Key().Interface())+"="+stringify(iter.Value().Interface()))
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}

// stringifyStruct renders exported fields as Name:value pairs.
func stringifyStruct(rv reflect.Value, rt reflect.Type) string {
	parts := make([]string, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		fieldValue := rv.Field(i)
		if !fieldValue.CanInterface() {
			continue
		}
		parts = append(parts, field.Name+":"+stringify(fieldValue.Interface()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
