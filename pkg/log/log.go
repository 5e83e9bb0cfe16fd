// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// Package log provides the compiler's diagnostic output. It implements
// the compiler's four-tier error taxonomy: Fatal (abort through a single
// report_fatal_error choke point), Error (reported, pass continues),
// Warning and Diagnostic-only (code-metrics and similar observational
// output).
package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
)

var (
	DebugPrefix string = "<7>[DEBUG]    "
	InfoPrefix  string = "<6>[INFO]     "
	WarnPrefix  string = "<4>[WARNING]  "
	ErrPrefix   string = "<3>[ERROR]    "
)

var (
	DebugLog *log.Logger = log.New(DebugWriter, DebugPrefix, 0)
	InfoLog  *log.Logger = log.New(InfoWriter, InfoPrefix, 0)
	WarnLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	ErrLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.Llongfile)

	DebugTimeLog *log.Logger = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	InfoTimeLog  *log.Logger = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	WarnTimeLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	ErrTimeLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
)

func SetLogLevel(lvl string) {
	switch lvl {
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
	default:
		fmt.Printf("pkg/log: flag 'loglevel' has invalid value %#v, using 'debug'\n", lvl)
		SetLogLevel("debug")
	}
}

func SetLogDateTime(v bool) { logDateTime = v }

func printStr(v ...interface{}) string { return fmt.Sprint(v...) }

func Debug(v ...interface{}) { emit(DebugWriter, DebugLog, DebugTimeLog, printStr(v...)) }
func Info(v ...interface{})  { emit(InfoWriter, InfoLog, InfoTimeLog, printStr(v...)) }
func Warn(v ...interface{})  { emit(WarnWriter, WarnLog, WarnTimeLog, printStr(v...)) }
func Error(v ...interface{}) { emit(ErrWriter, ErrLog, ErrTimeLog, printStr(v...)) }

func Debugf(format string, v ...interface{}) { emit(DebugWriter, DebugLog, DebugTimeLog, fmt.Sprintf(format, v...)) }
func Infof(format string, v ...interface{})  { emit(InfoWriter, InfoLog, InfoTimeLog, fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...interface{})  { emit(WarnWriter, WarnLog, WarnTimeLog, fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...interface{}) { emit(ErrWriter, ErrLog, ErrTimeLog, fmt.Sprintf(format, v...)) }

func emit(w io.Writer, l, lt *log.Logger, out string) {
	if w == io.Discard {
		return
	}
	if logDateTime {
		lt.Output(3, out)
	} else {
		l.Output(3, out)
	}
}

// Instruction is satisfied by ir.Instruction (and anything else with a
// useful String()); kept minimal here so pkg/log does not import the ir
// package back.
type Instruction interface {
	fmt.Stringer
}

// ReportFatalError is the single choke point every Fatal error in the
// core funnels through: it prints the offending instruction when
// one is available, then aborts. No output is written once this runs.
func ReportFatalError(insn fmt.Stringer, format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	if insn != nil {
		Error(msg + ": " + insn.String())
	} else {
		Error(msg)
	}
	os.Exit(1)
}

// Fatal writes the message at Error level then terminates the process,
// matching the compiler's "no output on fatal error" contract.
func Fatal(v ...interface{}) {
	Error(v...)
	os.Exit(1)
}

func Fatalf(format string, v ...interface{}) {
	Errorf(format, v...)
	os.Exit(1)
}
