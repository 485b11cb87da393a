//go:build windows

package main

import (
	"github.com/Microsoft/go-activity/pkg/event"
	"github.com/Microsoft/go-activity/pkg/event/writers/etw"
	"github.com/Microsoft/go-activity/pkg/provider"
)

func newETWWriter(name string) (event.Writer, error) {
	id, err := provider.IDFromName(name)
	if err != nil {
		return nil, err
	}
	return etw.New(etw.WithNewETWProvider(name, id))
}
