// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// nanotube-core is the back-end driver: it loads one input IR
// module, interprets the setup function into a topology, runs the
// request-lowering pipeline over every kernel and thread function, and
// writes the transformed module plus the topology handoff into the
// output directory.
package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Xilinx/nanotube-sub001/internal/converge"
	"github.com/Xilinx/nanotube-sub001/internal/ebpfadapter"
	"github.com/Xilinx/nanotube-sub001/internal/hlsvalidate"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
	"github.com/Xilinx/nanotube-sub001/internal/mem2req"
	"github.com/Xilinx/nanotube-sub001/internal/metrics"
	"github.com/Xilinx/nanotube-sub001/internal/optreq"
	"github.com/Xilinx/nanotube-sub001/internal/setup"
	"github.com/Xilinx/nanotube-sub001/internal/taps"
	"github.com/Xilinx/nanotube-sub001/internal/topologycache"
	"github.com/Xilinx/nanotube-sub001/internal/util"
	"github.com/Xilinx/nanotube-sub001/pkg/log"
	"github.com/Xilinx/nanotube-sub001/pkg/schema"
	"github.com/Xilinx/nanotube-sub001/pkg/units"
)

const defaultPasses = "ebpf,converge,mem2req,optreq,hls-validate,metrics"

const setupFunctionName = "nanotube_setup"

func main() {
	cliInit()

	log.SetLogLevel(flagLogLevel)
	log.SetLogDateTime(flagLogDateTime)

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if flag.NArg() != 1 {
		log.Fatal("exactly one input IR file expected")
	}
	if flagOutput == "" {
		log.Fatal("missing required flag -o <output directory>")
	}

	input := flag.Arg(0)
	raw, err := os.ReadFile(input)
	if err != nil {
		log.Fatalf("reading %s: %s", input, err.Error())
	}
	sum := sha256.Sum256(raw)
	moduleHash := hex.EncodeToString(sum[:])

	mod, err := ir.ParseModuleJSON(raw)
	if err != nil {
		log.Fatal(err.Error())
	}

	busFormat, err := taps.FormatByName(flagBusFormat)
	if err != nil {
		log.Fatal(err.Error())
	}

	passes := map[string]bool{}
	for _, p := range strings.Split(flagPasses, ",") {
		passes[strings.TrimSpace(p)] = true
	}

	var cache *topologycache.Cache
	if flagCache != "" {
		cache, err = topologycache.Open(flagCache)
		if err != nil {
			log.Fatal(err.Error())
		}
		defer cache.Close()
	}

	topo, topoJSON := buildTopology(mod, moduleHash, cache)
	if passes["dump-topology"] {
		log.Info(topo.String())
	}

	reg := prometheus.NewRegistry()
	var exporter *metrics.Exporter
	if flagDiagAddr != "" {
		exporter = metrics.NewExporter(reg)
	}

	for _, k := range topo.Kernels {
		runKernelPipeline(k.Func, passes, moduleHash, cache, exporter)
	}
	for _, th := range topo.Threads {
		runThreadPipeline(th.Func, passes)
	}

	writeOutputs(mod, topoJSON, busFormat)

	if flagDiagAddr != "" {
		srv := startDiagnosticsServer(flagDiagAddr, reg)
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// buildTopology interprets the setup function, or rehydrates the
// topology from the compile cache when the input module is unchanged.
func buildTopology(mod *ir.Module, moduleHash string, cache *topologycache.Cache) (*setup.Topology, []byte) {
	if cache != nil {
		blob, ok, err := cache.LookupTopology(moduleHash)
		if err != nil {
			log.Fatal(err.Error())
		}
		if ok {
			topo, err := setup.ParseJSON(blob, mod)
			if err == nil {
				log.Infof("topology cache hit for %s", moduleHash[:12])
				return topo, blob
			}
			log.Warnf("discarding stale cached topology: %s", err.Error())
		}
	}

	setupFn := mod.FindFunction(setupFunctionName)
	if setupFn == nil || setupFn.IsDeclaration() {
		log.Fatalf("input module has no %s definition", setupFunctionName)
	}
	topo, err := setup.Run(setupFn, flagStrict)
	if err != nil {
		log.Fatal(err.Error())
	}

	var buf bytes.Buffer
	if err := topo.DumpJSON(&buf); err != nil {
		log.Fatal(err.Error())
	}
	if err := schema.Validate(schema.Topology, bytes.NewReader(buf.Bytes())); err != nil {
		log.Fatalf("topology export failed validation: %s", err.Error())
	}
	if cache != nil {
		if err := cache.StoreTopology(moduleHash, buf.Bytes()); err != nil {
			log.Warnf("storing topology in cache: %s", err.Error())
		}
	}
	return topo, buf.Bytes()
}

// mapSpecs builds the eBPF adapter's map table from the module's
// map-definition globals: a string global of the form
// "id:key_size:value_size" describes one map.
func mapSpecs(mod *ir.Module) map[string]ebpfadapter.MapSpec {
	specs := map[string]ebpfadapter.MapSpec{}
	for _, g := range mod.Globals {
		if !g.IsString || len(g.StringData) == 0 {
			continue
		}
		var id, keySize, valueSize uint32
		s := string(g.StringData[:len(g.StringData)-1])
		if n, _ := fmt.Sscanf(s, "%d:%d:%d", &id, &keySize, &valueSize); n == 3 {
			specs[g.Name] = ebpfadapter.MapSpec{ID: uint16(id), KeySize: keySize, ValueSize: valueSize}
		}
	}
	return specs
}

func runKernelPipeline(fn *ir.Function, passes map[string]bool,
	moduleHash string, cache *topologycache.Cache, exporter *metrics.Exporter,
) {
	if fn == nil || fn.IsDeclaration() {
		return
	}
	log.Debugf("kernel %s: starting pipeline", fn.Name)

	if passes["ebpf"] {
		res, err := ebpfadapter.Run(fn, mapSpecs(fn.Module))
		if err != nil {
			log.Fatal(err.Error())
		}
		log.Debugf("kernel %s: ebpf adapter converted %d, skipped %d", fn.Name, res.Converted, res.Skipped)
	}
	if passes["converge"] {
		if _, err := converge.Run(fn); err != nil {
			log.Fatal(err.Error())
		}
	}
	if passes["mem2req"] {
		if len(fn.Params) < 2 {
			log.Fatalf("kernel %s does not have (context, packet) parameters", fn.Name)
		}
		if _, err := mem2req.Run(fn, fn.Params[1]); err != nil {
			log.Fatal(err.Error())
		}
	}
	if passes["optreq"] {
		policy, err := optreq.DefaultPolicy()
		if err != nil {
			log.Fatal(err.Error())
		}
		res, err := optreq.Run(fn, policy)
		if err != nil {
			// A group without a legal insertion point leaves the original
			// accesses unchanged; only report it.
			log.Errorf("kernel %s: optimise-requests: %s", fn.Name, err.Error())
		} else {
			log.Debugf("kernel %s: merged %d read and %d write groups",
				fn.Name, res.ReadGroups, res.WriteGroups)
		}
	}
	if passes["hls-validate"] {
		if err := hlsvalidate.Validate(fn, hlsvalidate.Options{Strict: flagStrict}); err != nil {
			log.Fatal(err.Error())
		}
	}
	if passes["metrics"] {
		report := metrics.Analyze(fn)
		log.Info(report.String())
		if exporter != nil {
			exporter.Observe(report)
		}
		if cache != nil {
			if err := cache.StoreKernelReport(moduleHash, report); err != nil {
				log.Warnf("storing kernel metrics: %s", err.Error())
			}
		}
	}
}

func runThreadPipeline(fn *ir.Function, passes map[string]bool) {
	if fn == nil || fn.IsDeclaration() {
		return
	}
	if passes["hls-validate"] {
		if err := hlsvalidate.Validate(fn, hlsvalidate.Options{Strict: flagStrict}); err != nil {
			log.Fatal(err.Error())
		}
	}
	if passes["metrics"] {
		log.Info(metrics.Analyze(fn).String())
	}
}

// writeOutputs places the transformed module, the topology handoff and
// the bus-format descriptor table into the output directory.
func writeOutputs(mod *ir.Module, topoJSON []byte, busFormat *taps.Format) {
	if err := os.MkdirAll(flagOutput, 0o755); err != nil {
		log.Fatalf("creating %s: %s", flagOutput, err.Error())
	}

	write := func(name string, data []byte) {
		path := filepath.Join(flagOutput, name)
		if util.CheckFileExists(path) && !flagOverwrite {
			log.Fatalf("%s exists; use --overwrite to replace it", path)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatalf("writing %s: %s", path, err.Error())
		}
		log.Debugf("wrote %s (%s)", path, units.FormatBytes(int64(len(data))))
	}

	var modBuf bytes.Buffer
	if err := ir.DumpModuleJSON(&modBuf, mod); err != nil {
		log.Fatal(err.Error())
	}
	write("module.json", modBuf.Bytes())
	write("topology.json", topoJSON)

	formats, err := json.MarshalIndent(taps.Formats(), "", "  ")
	if err != nil {
		log.Fatal(err.Error())
	}
	if err := schema.Validate(schema.BusFormats, bytes.NewReader(formats)); err != nil {
		log.Fatalf("bus-format table failed validation: %s", err.Error())
	}
	write("busformats.json", formats)
	log.Infof("selected bus format %s (%d-byte words)", busFormat.Name, busFormat.TotalBytes())
}
