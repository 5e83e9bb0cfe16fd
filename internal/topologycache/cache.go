// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package topologycache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Xilinx/nanotube-sub001/internal/metrics"
	"github.com/Xilinx/nanotube-sub001/internal/util"
	"github.com/Xilinx/nanotube-sub001/pkg/log"
)

// LookupTopology returns the cached topology JSON for moduleHash, or
// ok=false on a cache miss.
func (c *Cache) LookupTopology(moduleHash string) (topoJSON []byte, ok bool, err error) {
	query, args, err := sq.Select("topology").
		From("topology_cache").
		Where(sq.Eq{"module_hash": moduleHash}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("topologycache: building lookup: %w", err)
	}

	var blob []byte
	if err := c.DB.Get(&blob, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("topologycache: lookup %s: %w", moduleHash, err)
	}
	topoJSON, err = util.UncompressBytes(blob)
	if err != nil {
		return nil, false, fmt.Errorf("topologycache: uncompressing %s: %w", moduleHash, err)
	}
	log.Debugf("topologycache: hit for %s (%d bytes)", moduleHash, len(topoJSON))
	return topoJSON, true, nil
}

// StoreTopology upserts the topology JSON for moduleHash.
func (c *Cache) StoreTopology(moduleHash string, topoJSON []byte) error {
	blob, err := util.CompressBytes(topoJSON)
	if err != nil {
		return fmt.Errorf("topologycache: compressing %s: %w", moduleHash, err)
	}
	query, args, err := sq.Insert("topology_cache").
		Columns("module_hash", "topology", "created_at").
		Values(moduleHash, blob, time.Now().Unix()).
		Suffix("ON CONFLICT(module_hash) DO UPDATE SET topology=excluded.topology, created_at=excluded.created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("topologycache: building store: %w", err)
	}
	if _, err := c.DB.Exec(query, args...); err != nil {
		return fmt.Errorf("topologycache: storing %s: %w", moduleHash, err)
	}
	return nil
}

// StoreKernelReport upserts one kernel's metrics under moduleHash.
func (c *Cache) StoreKernelReport(moduleHash string, r *metrics.Report) error {
	query, args, err := sq.Insert("kernel_metrics").
		Columns("module_hash", "kernel", "total_weight",
			"dataflow_critical_path", "cfg_critical_path", "cfg_longest_path").
		Values(moduleHash, r.Function, r.TotalWeight,
			r.DataFlowCriticalPath, r.CFGCriticalPath, r.CFGLongestPath).
		Suffix("ON CONFLICT(module_hash, kernel) DO UPDATE SET " +
			"total_weight=excluded.total_weight, " +
			"dataflow_critical_path=excluded.dataflow_critical_path, " +
			"cfg_critical_path=excluded.cfg_critical_path, " +
			"cfg_longest_path=excluded.cfg_longest_path").
		ToSql()
	if err != nil {
		return fmt.Errorf("topologycache: building metrics store: %w", err)
	}
	if _, err := c.DB.Exec(query, args...); err != nil {
		return fmt.Errorf("topologycache: storing metrics for %s/%s: %w", moduleHash, r.Function, err)
	}
	return nil
}

// KernelReports returns every cached kernel report for moduleHash.
func (c *Cache) KernelReports(moduleHash string) ([]metrics.Report, error) {
	query, args, err := sq.Select("kernel", "total_weight",
		"dataflow_critical_path", "cfg_critical_path", "cfg_longest_path").
		From("kernel_metrics").
		Where(sq.Eq{"module_hash": moduleHash}).
		OrderBy("kernel").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("topologycache: building metrics lookup: %w", err)
	}
	rows, err := c.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("topologycache: metrics for %s: %w", moduleHash, err)
	}
	defer rows.Close()

	var out []metrics.Report
	for rows.Next() {
		var r metrics.Report
		if err := rows.Scan(&r.Function, &r.TotalWeight,
			&r.DataFlowCriticalPath, &r.CFGCriticalPath, &r.CFGLongestPath); err != nil {
			return nil, fmt.Errorf("topologycache: scanning metrics row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
