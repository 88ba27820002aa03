package cache_test

import (
	"strings"
	"testing"

	"github.com/goliatone/go-remote-cache/cache"
	"github.com/goliatone/go-remote-cache/pkg/testsupport"
)

type argumentScenario struct {
	Name    string        `json:"name"`
	Options cache.Options `json:"options"`
	Cases   []struct {
		Args []any  `json:"args"`
		Want string `json:"want"`
	} `json:"cases"`
}

func TestArgumentKeys_Fixtures(t *testing.T) {
	var fixtures struct {
		Scenarios []argumentScenario `json:"scenarios"`
	}
	testsupport.LoadFixtureJSON(t, testsupport.FixturePath("argument_keys.json"), &fixtures)

	if len(fixtures.Scenarios) == 0 {
		t.Fatal("expected fixture scenarios")
	}

	for _, scenario := range fixtures.Scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			for _, tc := range scenario.Cases {
				got := cache.ArgumentKeys(tc.Args, scenario.Options)
				if got != tc.Want {
					t.Errorf("ArgumentKeys(%v) = %q, want %q", tc.Args, got, tc.Want)
				}
			}
		})
	}
}

func TestArgumentKeys_TransformEquivalence(t *testing.T) {
	tests := []struct {
		name string
		opts cache.Options
		want string
	}{
		{name: "no transform", opts: cache.Options{}, want: "hello {}"},
		{name: "nil options", opts: nil, want: "hello {}"},
		{name: "remove", opts: cache.Options{cache.OptionRemoveCharacters: true}, want: "hello"},
		{name: "replace", opts: cache.Options{cache.OptionReplaceCharacters: true}, want: "helloSPLBRB"},
		{
			name: "remove wins over replace",
			opts: cache.Options{cache.OptionRemoveCharacters: true, cache.OptionReplaceCharacters: true},
			want: "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cache.ArgumentKeys([]any{"hello {}"}, tt.opts)
			if got != tt.want {
				t.Errorf("ArgumentKeys() = %q, want %q", got, tt.want)
			}
		})
	}
}

type guid string

func (g guid) String() string { return "guid-" + string(g) }

func TestArgumentKeys_ValueKinds(t *testing.T) {
	value := 42
	var nilPtr *int

	tests := []struct {
		name string
		args []any
		want string
	}{
		{name: "no args", args: nil, want: ""},
		{name: "int pointer", args: []any{&value}, want: "42"},
		{name: "nil pointer dropped", args: []any{nilPtr, "a"}, want: "a"},
		{name: "slice flattened", args: []any{[]string{"a", "b"}, "c"}, want: "abc"},
		{name: "nested slice flattened", args: []any{[]any{"a", []int{1, 2}, nil}}, want: "a12"},
		{name: "array flattened", args: []any{[2]int{3, 4}}, want: "34"},
		{name: "bytes as string", args: []any{[]byte("raw")}, want: "raw"},
		{name: "stringer", args: []any{guid("x")}, want: "guid-x"},
		{name: "map sorted", args: []any{map[string]int{"b": 2, "a": 1}}, want: "{a=1,b=2}"},
		{
			name: "struct exported fields",
			args: []any{struct {
				ID     int
				Name   string
				hidden string
			}{ID: 1, Name: "bob", hidden: "x"}},
			want: "{ID:1,Name:bob}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cache.ArgumentKeys(tt.args, nil)
			if got != tt.want {
				t.Errorf("ArgumentKeys() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArgumentKeys_FunctionsAreStable(t *testing.T) {
	fn := func() {}
	key1 := cache.ArgumentKeys([]any{fn}, nil)
	key2 := cache.ArgumentKeys([]any{fn}, nil)

	if key1 != key2 {
		t.Errorf("function serialization should be stable: %v != %v", key1, key2)
	}
	if !strings.HasPrefix(key1, "func:") {
		t.Errorf("function serialization should use func: prefix, got: %v", key1)
	}
}

func TestNewKey(t *testing.T) {
	tests := []struct {
		name     string
		segments []any
		want     string
	}{
		{
			name:     "all segments",
			segments: []any{"v1", "MyApp", "User", "#find", "guid"},
			want:     strings.Join([]string{"v1", "MyApp", "User", "#find", "guid"}, cache.KeySeparator),
		},
		{
			name:     "nil namespace dropped",
			segments: []any{"v1", nil, "User", "#search", "guid"},
			want:     strings.Join([]string{"v1", "User", "#search", "guid"}, cache.KeySeparator),
		},
		{
			name:     "empty version dropped",
			segments: []any{"", "User", "#find", "a"},
			want:     strings.Join([]string{"User", "#find", "a"}, cache.KeySeparator),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cache.NewKey(tt.segments...).String()
			if got != tt.want {
				t.Errorf("NewKey().String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func BenchmarkArgumentKeys(b *testing.B) {
	args := []any{"client-guid", "user-guid", 42, []string{"a", "b"}}
	opts := cache.Options{cache.OptionReplaceCharacters: true}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.ArgumentKeys(args, opts)
	}
}
