// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package alias

import (
	"fmt"
	"time"

	"github.com/Xilinx/nanotube-sub001/internal/ir"
	"github.com/Xilinx/nanotube-sub001/pkg/lrucache"
)

// Engine memoizes MemoryLocation results for the duration of one pass
// invocation. mem2req sizes its memcpy/memset lowerings through it and
// Optimise-Requests derives every access's merge-legality range from
// it, so a length operand shared by several call sites (or re-examined
// after a flush boundary) is folded once, not per query.
type Engine struct {
	cache *lrucache.Cache
}

// rangeEntrySize approximates one cached ByteRange's memory footprint
// for the cache's eviction accounting.
const rangeEntrySize = 64

// NewEngine returns an engine bounded to maxMemory bytes of cached
// ranges.
func NewEngine(maxMemory int) *Engine {
	return &Engine{cache: lrucache.New(maxMemory)}
}

type cachedRange struct {
	r   ByteRange
	err error
}

// MemoryLocation is the caching front to the package-level function.
func (e *Engine) MemoryLocation(call *ir.Call, argIndex int) (ByteRange, error) {
	key := fmt.Sprintf("%p/%d", call, argIndex)
	v := e.cache.Get(key, func() (interface{}, time.Duration, int) {
		r, err := MemoryLocation(call, argIndex)
		return cachedRange{r: r, err: err}, time.Hour, rangeEntrySize
	})
	c := v.(cachedRange)
	return c.r, c.err
}
