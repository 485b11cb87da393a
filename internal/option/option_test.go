package option

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

type A struct {
	B  Option[bool] `json:",omitempty" yaml:"b"`
	I  Option[int]  `yaml:"i"`
	Ii Option[int]  `json:",omitempty" yaml:"ii"`
}

func TestEncoding(t *testing.T) {
	for _, tt := range []struct {
		a    A
		want string
	}{
		{
			a: A{
				B:  Some(false),
				I:  Some(3),
				Ii: Some(3),
			},
			want: `{"B":false,"I":3,"Ii":3}`,
		},
		{
			a:    A{},
			want: `{"I":null}`,
		},
	} {
		b, err := json.Marshal(tt.a)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != tt.want {
			t.Fatalf("got %s, wanted %s", b, tt.want)
		}
	}
}

func TestDecoding(t *testing.T) {
	var a A
	if err := yaml.Unmarshal([]byte("b: false\nii: 7\n"), &a); err != nil {
		t.Fatal(err)
	}
	if IsNone(a.B) || Unwrap(a.B) {
		t.Fatalf("got b %v, wanted Some(false)", a.B)
	}
	if IsSome(a.I) {
		t.Fatalf("got i %v, wanted None", *a.I)
	}
	if got := UnwrapOr(a.I, 5); got != 5 {
		t.Fatalf("got %d, wanted the fallback 5", got)
	}
	if got := UnwrapOrDefault(a.Ii); got != 7 {
		t.Fatalf("got %d, wanted 7", got)
	}
}

func TestUnwrapNonePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic")
		}
	}()
	Unwrap(None[string]())
}
