// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// Package hlsvalidate checks a transformed kernel/thread function for
// HLS translatability. Two properties are verified: the control
// flow is loop-free, and each invocation obeys the four-rule protocol
// that guarantees exactly one externally visible side-effect episode:
//
//	R1. There must be channel activity or a call to thread_wait.
//	R2. Every call to thread_wait must follow a failed read.
//	R3. There must be no thread_wait after a blocking call.
//	R4. Only nop instructions and branches can follow a thread_wait.
//
// The rules are tracked through four flags (can_return, read_fail,
// no_blocking, no_wait) combined with logical-and at block joins. The
// R1 return check and the R2 precondition are disabled by default and
// re-enabled through Options.Strict.
package hlsvalidate

import (
	"fmt"

	"github.com/Xilinx/nanotube-sub001/internal/intrinsics"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
)

type threadFlags uint8

const (
	flagCanReturn threadFlags = 1 << iota
	flagReadFail
	flagNoBlocking
	flagNoWait

	flagsAll     = flagCanReturn | flagReadFail | flagNoBlocking | flagNoWait
	flagsDefault = flagNoBlocking | flagNoWait
)

// Options configures the validator. Strict re-enables the two checks
// the default configuration leaves off: the can_return check on
// returns and the read_fail precondition on thread_wait.
type Options struct {
	Strict bool
}

type validator struct {
	fn      *ir.Function
	opts    Options
	bbFlags map[*ir.BasicBlock]threadFlags
	pending []*ir.BasicBlock
	preds   map[*ir.BasicBlock][]*ir.BasicBlock
}

// Validate checks fn against the loop-freedom and protocol rules,
// returning the first violation found.
func Validate(fn *ir.Function, opts Options) error {
	if fn.Entry() == nil {
		return fmt.Errorf("hlsvalidate: function %s has no body", fn.Name)
	}
	v := &validator{
		fn:      fn,
		opts:    opts,
		bbFlags: make(map[*ir.BasicBlock]threadFlags, len(fn.Blocks)),
		preds:   fn.Predecessors(),
	}
	return v.validateCFG()
}

func (v *validator) validateCFG() error {
	entry := v.fn.Entry()
	flags := flagsDefault
	if err := v.updateFlagsForBlock(&flags, entry); err != nil {
		return err
	}
	v.bbFlags[entry] = flags
	v.pending = append(v.pending, entry)

	// Visit each block once all its predecessors have been visited. A
	// block that never becomes visitable this way sits on a cycle.
	for len(v.pending) > 0 {
		current := v.pending[len(v.pending)-1]
		v.pending = v.pending[:len(v.pending)-1]
		for _, succ := range current.Successors() {
			if err := v.tryVisit(succ); err != nil {
				return err
			}
		}
	}

	for _, bb := range v.fn.Blocks {
		if _, ok := v.bbFlags[bb]; !ok {
			return fmt.Errorf("hlsvalidate: function %s contains a loop or loops (block %s unvisited)",
				v.fn.Name, bb.Name)
		}
	}
	return nil
}

func (v *validator) tryVisit(bb *ir.BasicBlock) error {
	if _, ok := v.bbFlags[bb]; ok {
		return nil
	}
	flags := flagsAll
	for _, pred := range v.preds[bb] {
		predFlags, ok := v.bbFlags[pred]
		if !ok {
			// Not visitable yet; a later visit of this predecessor will
			// re-examine bb.
			return nil
		}
		flags &= v.adjustEdgeFlags(pred, bb, predFlags)
	}
	if err := v.updateFlagsForBlock(&flags, bb); err != nil {
		return err
	}
	v.bbFlags[bb] = flags
	v.pending = append(v.pending, bb)
	return nil
}

func (v *validator) updateFlagsForBlock(flags *threadFlags, bb *ir.BasicBlock) error {
	for _, insn := range bb.Instrs {
		switch x := insn.(type) {
		case *ir.Br, *ir.GetElementPtr, *ir.BitCast, *ir.Cast:
			// No side-effects; the no_wait check does not apply.

		case *ir.Ret:
			if err := v.checkFlagsForReturn(*flags, x); err != nil {
				return err
			}

		case *ir.Call:
			if err := v.updateFlagsForCall(flags, x); err != nil {
				return err
			}

		default:
			if *flags&flagNoWait == 0 {
				return fmt.Errorf("hlsvalidate: invalid instruction after call to nanotube_thread_wait: %s",
					insn.Ident())
			}
		}
	}
	return nil
}

func (v *validator) checkFlagsForReturn(flags threadFlags, ret *ir.Ret) error {
	// Disabled by default; see Options.Strict.
	if v.opts.Strict && flags&flagCanReturn == 0 {
		return fmt.Errorf("hlsvalidate: function %s can return without activity (block %s)",
			v.fn.Name, ret.Block().Name)
	}
	return nil
}

func (v *validator) updateFlagsForCall(flags *threadFlags, call *ir.Call) error {
	switch id := intrinsics.GetIntrinsic(call); id {
	case intrinsics.ChannelWrite:
		if *flags&flagNoWait == 0 {
			return fmt.Errorf("hlsvalidate: invalid write to channel after call to nanotube_thread_wait: %s",
				call.Ident())
		}
		*flags |= flagCanReturn
		*flags &^= flagNoBlocking

	case intrinsics.ThreadWait:
		if *flags&flagNoWait == 0 {
			return fmt.Errorf("hlsvalidate: multiple calls to nanotube_thread_wait: %s", call.Ident())
		}
		// Disabled by default; see Options.Strict.
		if v.opts.Strict && *flags&flagReadFail == 0 {
			return fmt.Errorf("hlsvalidate: call to nanotube_thread_wait does not follow read failure: %s",
				call.Ident())
		}
		if *flags&flagNoBlocking == 0 {
			return fmt.Errorf("hlsvalidate: call to nanotube_thread_wait follows a blocking call: %s",
				call.Ident())
		}
		*flags |= flagCanReturn
		*flags &^= flagNoBlocking | flagNoWait

	default:
		if !id.IsNop() && *flags&flagNoWait == 0 {
			return fmt.Errorf("hlsvalidate: invalid instruction after call to nanotube_thread_wait: %s",
				call.Ident())
		}
	}
	return nil
}

// adjustEdgeFlags adds the per-edge flag bits a conditional branch on
// the result of channel_try_read contributes: the success edge permits
// a return, the failure edge permits a thread_wait.
func (v *validator) adjustEdgeFlags(pred, succ *ir.BasicBlock, flags threadFlags) threadFlags {
	br, ok := pred.Terminator().(*ir.Br)
	if !ok || br.Cond == nil {
		return flags
	}
	isTrue := succ == br.True
	if succ == br.True && succ == br.False {
		return flags
	}

	// Strip icmp-eq/ne-zero inversions off the condition.
	cond := br.Cond
	for {
		icmp, ok := cond.(*ir.ICmp)
		if !ok {
			break
		}
		rhs, ok := icmp.RHS.(*ir.ConstInt)
		if !ok || rhs.Val != 0 {
			break
		}
		switch icmp.Pred {
		case ir.ICmpEQ:
			isTrue = !isTrue
		case ir.ICmpNE:
		default:
			return flags
		}
		cond = icmp.LHS
	}

	if call, ok := cond.(*ir.Call); ok &&
		intrinsics.GetIntrinsic(call) == intrinsics.ChannelTryRead {
		if isTrue {
			return flags | flagCanReturn
		}
		return flags | flagReadFail
	}

	// An unrecognised condition never makes valid code invalid, so the
	// flags pass through unchanged.
	return flags
}
