package canon

import "testing"

func TestMarshalSortsKeys(t *testing.T) {
	v := map[string]any{
		"zebra": 1.0,
		"alpha": 2.0,
		"mid":   3.0,
	}
	got, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"alpha":2,"mid":3,"zebra":1}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMarshalNestedObjectsAndArrays(t *testing.T) {
	v := map[string]any{
		"pair": Pair(10.0, 0.5),
		"tags": []any{"b", "a"},
		"nested": map[string]any{
			"z": true,
			"a": nil,
		},
	}
	got, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"nested":{"a":null,"z":true},"pair":[10,0.5],"tags":["b","a"]}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMarshalNoInsignificantWhitespace(t *testing.T) {
	got, err := Marshal(map[string]any{"a": 1.0, "b": 2.0})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, b := range got {
		if b == ' ' || b == '\n' || b == '\t' {
			t.Fatalf("found insignificant whitespace in %s", got)
		}
	}
}

func TestMarshalEmptyObjectAndArray(t *testing.T) {
	got, err := Marshal(map[string]any{"empty_obj": map[string]any{}, "empty_arr": []any{}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"empty_arr":[],"empty_obj":{}}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

// conformanceVectors pins fixed records to fixed byte forms; this table is
// itself part of the wire format and must never change without a version
// bump elsewhere in the system.
func TestConformanceVectors(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{
			name: "scalar_string",
			in:   map[string]any{"kind": "invariant"},
			want: `{"kind":"invariant"}`,
		},
		{
			name: "integer_like_float",
			in:   map[string]any{"seq": 42.0},
			want: `{"seq":42}`,
		},
		{
			name: "fractional_float",
			in:   map[string]any{"n": 1.5},
			want: `{"n":1.5}`,
		},
		{
			name: "nested_pair_array",
			in:   map[string]any{"value": Pair(3.25, 0.125)},
			want: `{"value":[3.25,0.125]}`,
		},
		{
			name: "unicode_string",
			in:   map[string]any{"note": "café"},
			want: `{"note":"café"}`,
		},
		{
			name: "explicit_null",
			in:   map[string]any{"parent_id": nil},
			want: `{"parent_id":null}`,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Marshal(c.in)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(got) != c.want {
				t.Errorf("got %s, want %s", got, c.want)
			}
		})
	}
}

func TestMarshalRejectsUnsupportedType(t *testing.T) {
	type weird struct{ X int }
	if _, err := Marshal(weird{X: 1}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}
