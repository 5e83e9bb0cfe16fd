// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Xilinx/nanotube-sub001/pkg/log"
)

// startDiagnosticsServer serves /metrics (the per-kernel code metrics
// gauges) and /healthz for a long-running build-farm deployment of the
// driver. It starts the listener in the background and returns at once
// (a listen error is fatal); the process then stays alive until
// interrupted.
func startDiagnosticsServer(addr string, reg *prometheus.Registry) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok\n")
	})
	r.Use(handlers.CompressHandler)
	r.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))

	handler := handlers.CustomLoggingHandler(io.Discard, r, func(_ io.Writer, params handlers.LogFormatterParams) {
		if params.StatusCode >= 500 {
			log.Errorf("%s %s (%d)", params.Request.Method, params.URL.RequestURI(), params.StatusCode)
		} else {
			log.Debugf("%s %s (%d)", params.Request.Method, params.URL.RequestURI(), params.StatusCode)
		}
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("diagnostics server: %s", err.Error())
		}
	}()
	log.Infof("diagnostics server listening on %s", addr)
	return srv
}
