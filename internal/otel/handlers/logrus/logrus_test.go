package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

func TestHandlers(t *testing.T) {
	logger, hook := test.NewNullLogger()
	errBoom := errors.New("boom")

	rsc := resource.NewSchemaless(attribute.String("service.name", "activitytrace"))
	New(WithLogger(logger), WithResource(rsc), WithExtra(logrus.Fields{"x": 1})).Handle(errBoom)
	NewEventHandler(WithLogger(logger), WithLevel(logrus.WarnLevel))(errBoom)

	es := hook.AllEntries()
	if len(es) != 2 {
		t.Fatalf("got %d entries, wanted 2", len(es))
	}
	for i, want := range []struct {
		lvl logrus.Level
		msg string
	}{
		{logrus.ErrorLevel, "OpenTelemetry error"},
		{logrus.WarnLevel, "failed to write event"},
	} {
		e := es[i]
		if e.Level != want.lvl || e.Message != want.msg {
			t.Fatalf("got entry %q at %v, wanted %q at %v", e.Message, e.Level, want.msg, want.lvl)
		}
		if e.Data[logrus.ErrorKey] != errBoom {
			t.Fatalf("got error %v, wanted %v", e.Data[logrus.ErrorKey], errBoom)
		}
	}
	if _, ok := es[0].Data["otel.resource"]; !ok {
		t.Fatal("resource not logged")
	}
	if es[0].Data["x"] != 1 {
		t.Fatalf("got extra field %v, wanted 1", es[0].Data["x"])
	}
}
