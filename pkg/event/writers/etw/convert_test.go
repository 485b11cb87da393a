package etw

import (
	"errors"
	"testing"
	"time"

	"github.com/Microsoft/go-winio/pkg/guid"

	"github.com/Microsoft/go-activity/pkg/callctx"
	"github.com/Microsoft/go-activity/pkg/failure"
)

func TestValue(t *testing.T) {
	g, err := guid.FromString("abcdef01-2345-6789-0000-000000000000")
	if err != nil {
		t.Fatal(err)
	}
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)

	for _, tt := range []struct {
		name string
		v    any
		want any
	}{
		{"nil", nil, ""},
		{"code", failure.CodeFail, int32(-2147467259)},
		{"type", failure.TypeReturn, failure.TypeReturn.String()},
		{"guid", g, g.String()},
		{"time", ts, "2024-01-02T03:04:05.000000006Z"},
		{"duration", time.Second, int64(time.Second)},
		{"snapshot", callctx.Snapshot{ID: 4, Name: "Outer"}, "4:Outer"},
		{"error", errors.New("oops"), "oops"},
		{"string", "s", "s"},
		{"uint32", uint32(7), uint32(7)},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := value(tt.v); got != tt.want {
				t.Fatalf("got %#v, wanted %#v", got, tt.want)
			}
		})
	}
}
