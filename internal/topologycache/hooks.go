// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package topologycache

import (
	"context"
	"time"

	"github.com/Xilinx/nanotube-sub001/pkg/log"
)

// hookKey keys the query start time in the hook context; a typed key
// cannot collide with other packages' context values.
type hookKey int

const hookKeyBegin hookKey = iota

// Hooks satisfies the sqlhooks.Hooks interface, tracing every cache
// query at debug level with its duration.
type Hooks struct{}

// Before logs the query with its args and stamps the context with the
// start time.
func (h *Hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("SQL query %s %q", query, args)
	return context.WithValue(ctx, hookKeyBegin, time.Now()), nil
}

// After reads the timestamp Before stamped and logs the elapsed time.
func (h *Hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(hookKeyBegin).(time.Time); ok {
		log.Debugf("Took: %s", time.Since(begin))
	}
	return ctx, nil
}
