// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package schema

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTopology(t *testing.T) {
	good := `{
		"channels": [{"index": 0, "name": "a", "elem_size": 64, "num_elem": 16}],
		"contexts": [{"index": 0, "thread_index": -1, "ports": [{"channel_index": 0, "is_read": true}]}],
		"maps": [],
		"threads": [],
		"kernels": [{"index": 0, "name": "packets_in", "func": "process_packet"}]
	}`
	require.NoError(t, Validate(Topology, bytes.NewReader([]byte(good))))

	missing := `{"channels": []}`
	assert.Error(t, Validate(Topology, bytes.NewReader([]byte(missing))))

	badPort := `{
		"channels": [], "contexts": [{"index": 0, "thread_index": -1,
		"ports": [{"channel_index": "zero", "is_read": true}]}],
		"maps": [], "threads": [], "kernels": []
	}`
	assert.Error(t, Validate(Topology, bytes.NewReader([]byte(badPort))))
}

func TestValidateBusFormats(t *testing.T) {
	good := `[
		{"id": 0, "name": "simple", "data_bytes": 64, "sideband_signals_bytes": 1},
		{"id": 1, "name": "softhub", "data_bytes": 64, "sideband_bytes": 28, "sideband_signals_bytes": 17, "has_port": true}
	]`
	require.NoError(t, Validate(BusFormats, bytes.NewReader([]byte(good))))

	bad := `[{"id": 0, "name": "token-ring", "data_bytes": 64}]`
	assert.Error(t, Validate(BusFormats, bytes.NewReader([]byte(bad))))

	assert.Error(t, Validate(Kind(42), bytes.NewReader([]byte("{}"))))
}
