package ir

import (
	"slices"
	"strconv"
	"unicode/utf16"
)

// Value is a sealed interface over the value kinds canonical JSON accepts.
type Value interface {
	irValue()
}

// String is a string value.
type String string

func (String) irValue() {}

// Int is an integer value. Always int64.
type Int int64

func (Int) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) irValue() {}

// Object maps string keys to values. Use SortedKeys for deterministic
// iteration.
type Object map[string]Value

func (Object) irValue() {}

// Float renders a measurement as its shortest round-tripping decimal string.
// 1.0 and 1 hash identically; 0.1+0.2 and 0.3 do not.
func Float(v float64) String {
	return String(strconv.FormatFloat(v, 'g', -1, 64))
}

// OptString returns s as a String, or nil when s is empty so the key can be
// omitted from an Object.
func OptString(s string) Value {
	if s == "" {
		return nil
	}
	return String(s)
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units). Go's
// native string ordering compares UTF-8 bytes and disagrees for characters
// outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return len(a16) - len(b16)
}
