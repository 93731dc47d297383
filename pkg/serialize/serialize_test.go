package serialize

import (
	"math"
	"math/big"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSerialize_KeyOrderIndependent(t *testing.T) {
	// Maps iterate in random order; run enough times to catch ordering bugs.
	a := map[string]any{"alpha": 1, "beta": 2, "gamma": []any{1, "x"}}
	b := map[string]any{"gamma": []any{1, "x"}, "beta": 2, "alpha": 1}

	want := Serialize(a)
	for i := 0; i < 50; i++ {
		assert.Equal(t, want, Serialize(b))
	}
}

func TestSerialize_NestedKeysSorted(t *testing.T) {
	v := map[string]any{"outer": map[string]any{"b": 2, "a": 1}}
	assert.Equal(t, `{"outer":{"a":1,"b":2}}`, Serialize(v))
}

func TestSerialize_ArraysPreserveOrder(t *testing.T) {
	assert.Equal(t, `[3,1,2]`, Serialize([]int{3, 1, 2}))
	assert.NotEqual(t, Serialize([]int{1, 2}), Serialize([]int{2, 1}))
}

func TestSerialize_Scalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "null"},
		{"bool", true, "true"},
		{"int", 42, "42"},
		{"float", 1.5, "1.5"},
		{"string", `he"llo`, `"he\"llo"`},
		{"nan", math.NaN(), "null"},
		{"positive inf", math.Inf(1), "null"},
		{"func", func() {}, "null"},
		{"nil map", map[string]any(nil), "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Serialize(tt.in))
		})
	}
}

func TestSerialize_Extensions(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "Date(2025-03-01T12:00:00Z)", Serialize(ts))

	n := new(big.Int)
	n.SetString("123456789012345678901234567890", 10)
	assert.Equal(t, "BigInt(123456789012345678901234567890)", Serialize(n))

	assert.Equal(t, `RegExp(^a+$)`, Serialize(regexp.MustCompile("^a+$")))
}

func TestSerialize_ValueSet(t *testing.T) {
	a := map[string]struct{}{"z": {}, "a": {}, "m": {}}
	b := map[string]struct{}{"m": {}, "z": {}, "a": {}}

	assert.Equal(t, `Set("a","m","z")`, Serialize(a))
	assert.Equal(t, Serialize(a), Serialize(b))
}

func TestSerialize_Struct(t *testing.T) {
	type payload struct {
		Zeta  int
		Alpha string
	}
	assert.Equal(t, `{"Alpha":"x","Zeta":1}`, Serialize(payload{Zeta: 1, Alpha: "x"}))
}

func TestSerialize_CycleRendersMarker(t *testing.T) {
	m := map[string]any{"name": "root"}
	m["self"] = m

	got := Serialize(m)
	assert.Contains(t, got, `"[Circular]"`)
	assert.Contains(t, got, `"root"`)
}

func TestSerialize_SharedSiblingIsNotACycle(t *testing.T) {
	shared := map[string]any{"x": 1}
	v := map[string]any{"left": shared, "right": shared}

	// Same value in two non-overlapping positions renders normally in both.
	assert.Equal(t, `{"left":{"x":1},"right":{"x":1}}`, Serialize(v))
}

func TestSerialize_SliceCycle(t *testing.T) {
	s := make([]any, 1)
	s[0] = s

	assert.Equal(t, `["[Circular]"]`, Serialize(s))
}

func TestSerialize_MixedKeyTypesSortByEncodedForm(t *testing.T) {
	a := map[int]string{2: "b", 1: "a", 10: "j"}
	b := map[int]string{10: "j", 1: "a", 2: "b"}
	assert.Equal(t, Serialize(a), Serialize(b))
}
