// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"encoding/json"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestMergeOverlayWins(t *testing.T) {
	base := MustFromAny(map[string]any{"port": 8080, "host": "a"})
	overlay := MustFromAny(map[string]any{"port": 9090})

	merged := Merge(base, overlay)

	port, ok := merged.Get("port")
	if !ok || port.Raw() != 9090 {
		t.Errorf("port = %v, want 9090", port.Raw())
	}
	host, _ := merged.Get("host")
	if text, _ := host.Text(); text != "a" {
		t.Errorf("host = %q, want %q", text, "a")
	}
}

func TestMergeRecursesIntoMappings(t *testing.T) {
	base := MustFromAny(map[string]any{
		"db": map[string]any{"host": "primary", "port": 5432},
	})
	overlay := MustFromAny(map[string]any{
		"db": map[string]any{"host": "replica"},
	})

	got := Merge(base, overlay).Interface()
	want := map[string]any{
		"db": map[string]any{"host": "replica", "port": 5432},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %#v, want %#v", got, want)
	}
}

func TestMergeReplacesSequencesAndMismatchedKinds(t *testing.T) {
	tests := []struct {
		name    string
		base    any
		overlay any
		want    any
	}{
		{
			name:    "sequence replaced",
			base:    map[string]any{"hosts": []any{"a", "b"}},
			overlay: map[string]any{"hosts": []any{"c"}},
			want:    map[string]any{"hosts": []any{"c"}},
		},
		{
			name:    "mapping replaced by scalar",
			base:    map[string]any{"db": map[string]any{"host": "a"}},
			overlay: map[string]any{"db": "sqlite"},
			want:    map[string]any{"db": "sqlite"},
		},
		{
			name:    "null overlay replaces",
			base:    map[string]any{"db": "x"},
			overlay: map[string]any{"db": nil},
			want:    map[string]any{"db": nil},
		},
		{
			name:    "non-mapping base",
			base:    "scalar",
			overlay: map[string]any{"k": "v"},
			want:    map[string]any{"k": "v"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Merge(MustFromAny(test.base), MustFromAny(test.overlay)).Interface()
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("Merge = %#v, want %#v", got, test.want)
			}
		})
	}
}

func TestMergeDoesNotModifyInputs(t *testing.T) {
	base := MustFromAny(map[string]any{"a": map[string]any{"b": 1}})
	overlay := MustFromAny(map[string]any{"a": map[string]any{"c": 2}})

	_ = Merge(base, overlay)

	if got := base.Interface(); !reflect.DeepEqual(got, map[string]any{"a": map[string]any{"b": 1}}) {
		t.Errorf("base modified: %#v", got)
	}
	if got := overlay.Interface(); !reflect.DeepEqual(got, map[string]any{"a": map[string]any{"c": 2}}) {
		t.Errorf("overlay modified: %#v", got)
	}
}

func TestMergeAllOrder(t *testing.T) {
	got := MergeAll(
		MustFromAny(map[string]any{"k": "first", "only1": true}),
		MustFromAny(map[string]any{"k": "second"}),
		MustFromAny(map[string]any{"k": "third"}),
	).Interface()
	want := map[string]any{"k": "third", "only1": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeAll = %#v, want %#v", got, want)
	}
}

func TestShallowReplacesWholeKeys(t *testing.T) {
	base := MustFromAny(map[string]any{"db": map[string]any{"host": "a", "port": 1}})
	overlay := MustFromAny(map[string]any{"db": map[string]any{"host": "b"}})

	got := Shallow(base, overlay).Interface()
	want := map[string]any{"db": map[string]any{"host": "b"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Shallow = %#v, want %#v", got, want)
	}
}

func TestFromAnyTypedContainers(t *testing.T) {
	value, err := FromAny(map[string][][]string{"creds": {{"bag", "item"}}})
	if err != nil {
		t.Fatalf("FromAny: %v", err)
	}
	want := map[string]any{"creds": []any{[]any{"bag", "item"}}}
	if got := value.Interface(); !reflect.DeepEqual(got, want) {
		t.Errorf("FromAny = %#v, want %#v", got, want)
	}
}

func TestFromAnyRejectsNonStringKeys(t *testing.T) {
	if _, err := FromAny(map[any]any{1: "x"}); err == nil {
		t.Error("FromAny accepted an integer mapping key")
	}
	if _, err := FromAny(map[int]string{1: "x"}); err == nil {
		t.Error("FromAny accepted map[int]string")
	}
}

func TestWithCopiesReceiver(t *testing.T) {
	original := Empty()
	updated := original.With("k", Scalar("v"))

	if original.Len() != 0 {
		t.Errorf("original has %d keys after With, want 0", original.Len())
	}
	if _, ok := updated.Get("k"); !ok {
		t.Error("updated value is missing key k")
	}
}

func TestJSONRoundTripKeepsStructure(t *testing.T) {
	var value Value
	if err := json.Unmarshal([]byte(`{"a":[1,{"b":null}],"c":"d"}`), &value); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	items, _ := value.Get("a")
	if items.Kind() != KindSequence || items.Len() != 2 {
		t.Fatalf("a = %s of length %d, want sequence of 2", items.Kind(), items.Len())
	}
	inner := items.Items()[1]
	if b, ok := inner.Get("b"); !ok || !b.IsNull() {
		t.Errorf("a[1].b = %v, want null", b.Kind())
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(encoded) != `{"a":[1,{"b":null}],"c":"d"}` {
		t.Errorf("Marshal = %s", encoded)
	}
}

func TestUnmarshalJSONNumbers(t *testing.T) {
	var value Value
	if err := json.Unmarshal([]byte(`{"size":10485760,"big":12345678901234,"ratio":0.5,"huge":1e400}`), &value); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := map[string]any{
		"size":  int64(10485760),
		"big":   int64(12345678901234),
		"ratio": 0.5,
		"huge":  "1e400",
	}
	if got := value.Interface(); !reflect.DeepEqual(got, want) {
		t.Errorf("value = %#v, want %#v", got, want)
	}
}

func TestUnmarshalYAML(t *testing.T) {
	var holder struct {
		Attributes Value `yaml:"attributes"`
	}
	if err := yaml.Unmarshal([]byte("attributes:\n  ip: 10.0.0.1\n  tags: [a, b]\n"), &holder); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := map[string]any{"ip": "10.0.0.1", "tags": []any{"a", "b"}}
	if got := holder.Attributes.Interface(); !reflect.DeepEqual(got, want) {
		t.Errorf("attributes = %#v, want %#v", got, want)
	}
}
