package activity

import (
	"context"

	"github.com/Microsoft/go-activity/pkg/callctx"
	"github.com/Microsoft/go-activity/pkg/event"
	"github.com/Microsoft/go-activity/pkg/provider"
)

// CallContextName is the event name of call context activities.
const CallContextName = "CallContext"

func callContextType(p *provider.Provider) *Type {
	return &Type{
		p: p,
		desc: event.Descriptor{
			Name:  CallContextName,
			Level: event.LevelVerbose,
		},
		telemetryOnFailure: true,
	}
}

// StartCallContext starts a call context activity: a verbose activity that reports failures to
// telemetry, used to annotate a region of work so that failures inside it carry the region's
// name and message.
func StartCallContext(ctx context.Context, p *provider.Provider, name string) (context.Context, *Activity) {
	return startCallContext(ctx, p, callctx.New(name))
}

// StartCallContextf is like [StartCallContext], and sets the formatted call context message.
func StartCallContextf(ctx context.Context, p *provider.Provider, name, format string, args ...any) (context.Context, *Activity) {
	cc := callctx.New(name)
	cc.SetMessagef(format, args...)
	return startCallContext(ctx, p, cc)
}

func startCallContext(ctx context.Context, p *provider.Provider, cc *callctx.Info) (context.Context, *Activity) {
	d := newData(callContextType(p))
	d.cc = cc
	a := &Activity{owned: d}
	return a.Start(ctx, event.F(event.FieldCallContext, cc.Name())), a
}
