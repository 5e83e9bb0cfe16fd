// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package topologycache

import (
	"path/filepath"
	"testing"

	"github.com/Xilinx/nanotube-sub001/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "topo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestTopologyRoundTrip(t *testing.T) {
	c := openTestCache(t)

	_, ok, err := c.LookupTopology("abc")
	require.NoError(t, err)
	assert.False(t, ok)

	blob := []byte(`{"channels":[],"contexts":[]}`)
	require.NoError(t, c.StoreTopology("abc", blob))

	got, ok, err := c.LookupTopology("abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, blob, got)

	// Upsert replaces in place.
	blob2 := []byte(`{"channels":[{"index":0}]}`)
	require.NoError(t, c.StoreTopology("abc", blob2))
	got, ok, err = c.LookupTopology("abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, blob2, got)
}

func TestKernelReportsRoundTrip(t *testing.T) {
	c := openTestCache(t)

	r := metrics.Report{
		Function:             "packets_in",
		TotalWeight:          42,
		DataFlowCriticalPath: 9,
		CFGCriticalPath:      11,
		CFGLongestPath:       4,
	}
	require.NoError(t, c.StoreKernelReport("abc", &r))

	got, err := c.KernelReports("abc")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r, got[0])

	r.TotalWeight = 50
	require.NoError(t, c.StoreKernelReport("abc", &r))
	got, err = c.KernelReports("abc")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint(50), got[0].TotalWeight)

	none, err := c.KernelReports("other")
	require.NoError(t, err)
	assert.Empty(t, none)
}
