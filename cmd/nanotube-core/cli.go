// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import "flag"

var (
	flagOutput, flagPasses, flagBusFormat, flagCache  string
	flagLogLevel, flagDiagAddr                        string
	flagOverwrite, flagStrict, flagGops, flagLogDateTime bool
)

func cliInit() {
	flag.StringVar(&flagOutput, "o", "", "Output directory for the transformed module and topology (required)")
	flag.StringVar(&flagPasses, "passes", defaultPasses, "Comma-separated pass pipeline")
	flag.StringVar(&flagBusFormat, "bus-format", "simple", "Bus word format: simple, softhub or x3rx")
	flag.StringVar(&flagCache, "cache", "", "Path of the topology compile-cache database")
	flag.BoolVar(&flagOverwrite, "overwrite", false, "Overwrite existing files in the output directory")
	flag.BoolVar(&flagStrict, "strict", false, "Strict mode: reject unknown setup calls and enable all HLS protocol checks")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.StringVar(&flagDiagAddr, "diagnostics-addr", "", "Serve /metrics and /healthz on this address (build-farm mode)")
	flag.StringVar(&flagLogLevel, "loglevel", "warn", "Sets the logging level: `debug,info,warn (default),err,fatal`")
	flag.BoolVar(&flagLogDateTime, "logdate", false, "Set this flag to add date and time to log messages")
	flag.Parse()
}
