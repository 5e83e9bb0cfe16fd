// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package ir

// BasicBlock is a maximal straight-line sequence of instructions ending
// in exactly one terminator (Br, Switch, Ret or Unreachable).
type BasicBlock struct {
	Name   string
	Fn     *Function
	Instrs []Instruction
}

func (bb *BasicBlock) Terminator() Instruction {
	if len(bb.Instrs) == 0 {
		return nil
	}
	last := bb.Instrs[len(bb.Instrs)-1]
	if last.IsTerminator() {
		return last
	}
	return nil
}

// Successors returns the blocks this block's terminator can jump to.
func (bb *BasicBlock) Successors() []*BasicBlock {
	switch t := bb.Terminator().(type) {
	case *Br:
		return t.Successors()
	case *Switch:
		return t.Successors()
	default:
		return nil
	}
}

// Append adds an instruction to the end of the block and binds it back
// to the block so Instruction.Block() resolves.
func (bb *BasicBlock) Append(ins Instruction) Instruction {
	ins.setBlock(bb)
	bb.Instrs = append(bb.Instrs, ins)
	return ins
}

// Prepend inserts ins at the start of the block, ahead of any PHI nodes
// already there -- used by passes (Converge's access-type selector) that
// need a fresh PHI to precede everything else in a join block.
func (bb *BasicBlock) Prepend(ins Instruction) Instruction {
	ins.setBlock(bb)
	bb.Instrs = append([]Instruction{ins}, bb.Instrs...)
	return ins
}

// InsertBefore inserts ins immediately before `before` in this block.
func (bb *BasicBlock) InsertBefore(before, ins Instruction) {
	ins.setBlock(bb)
	for idx, cur := range bb.Instrs {
		if cur == before {
			bb.Instrs = append(bb.Instrs[:idx], append([]Instruction{ins}, bb.Instrs[idx:]...)...)
			return
		}
	}
	bb.Instrs = append(bb.Instrs, ins)
}

// InsertAfter inserts ins immediately after `after` in this block.
func (bb *BasicBlock) InsertAfter(after, ins Instruction) {
	ins.setBlock(bb)
	for idx, cur := range bb.Instrs {
		if cur == after {
			bb.Instrs = append(bb.Instrs[:idx+1], append([]Instruction{ins}, bb.Instrs[idx+1:]...)...)
			return
		}
	}
	bb.Instrs = append(bb.Instrs, ins)
}

// Remove deletes an instruction from the block's instruction list. It
// does not rewrite uses; callers must have already done that.
func (bb *BasicBlock) Remove(ins Instruction) {
	for idx, cur := range bb.Instrs {
		if cur == ins {
			bb.Instrs = append(bb.Instrs[:idx], bb.Instrs[idx+1:]...)
			return
		}
	}
}

// Function is a defined or declared function. Blocks is empty for a
// declaration (e.g. the Nanotube API entry points themselves, which are
// never given bodies -- only called).
type Function struct {
	Name    string
	Ty      *Type // KindFunction
	Params  []*Argument
	Blocks  []*BasicBlock
	Module  *Module
}

func (f *Function) Type() *Type   { return PointerTy(f.Ty) }
func (f *Function) Ident() string { return "@" + f.Name }

func (f *Function) Entry() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

func (f *Function) IsDeclaration() bool { return len(f.Blocks) == 0 }

func (f *Function) NewBlock(name string) *BasicBlock {
	bb := &BasicBlock{Name: name, Fn: f}
	f.Blocks = append(f.Blocks, bb)
	return bb
}

// Predecessors computes, for every block in the function, the set of
// blocks whose terminator can transfer control to it. It is recomputed
// on demand rather than kept incrementally consistent -- passes that
// mutate the CFG must call it again afterwards.
func (f *Function) Predecessors() map[*BasicBlock][]*BasicBlock {
	preds := make(map[*BasicBlock][]*BasicBlock, len(f.Blocks))
	for _, bb := range f.Blocks {
		preds[bb] = nil
	}
	for _, bb := range f.Blocks {
		for _, succ := range bb.Successors() {
			preds[succ] = append(preds[succ], bb)
		}
	}
	return preds
}

// ReversePostOrder walks the CFG from the entry block and returns blocks
// in reverse postorder, the traversal order every forward data-flow pass
// in the core (pointer analysis, mem2req) requires.
func (f *Function) ReversePostOrder() []*BasicBlock {
	if f.Entry() == nil {
		return nil
	}
	visited := make(map[*BasicBlock]bool, len(f.Blocks))
	var post []*BasicBlock
	var visit func(bb *BasicBlock)
	visit = func(bb *BasicBlock) {
		if visited[bb] {
			return
		}
		visited[bb] = true
		for _, succ := range bb.Successors() {
			visit(succ)
		}
		post = append(post, bb)
	}
	visit(f.Entry())
	rpo := make([]*BasicBlock, len(post))
	for i, bb := range post {
		rpo[len(post)-1-i] = bb
	}
	return rpo
}

// Reachable reports whether every block is reachable from the entry
// block via a topological visit of the forward CFG.
func (f *Function) Reachable() (order []*BasicBlock, ok bool) {
	rpo := f.ReversePostOrder()
	if len(rpo) != len(f.Blocks) {
		return rpo, false
	}
	// A cycle exists iff some block's predecessor appears later than it
	// in the reverse postorder -- i.e. the RPO is not actually a
	// topological order of the underlying (possibly cyclic) graph.
	index := make(map[*BasicBlock]int, len(rpo))
	for i, bb := range rpo {
		index[bb] = i
	}
	preds := f.Predecessors()
	for _, bb := range rpo {
		for _, p := range preds[bb] {
			if index[p] > index[bb] {
				return rpo, false
			}
		}
	}
	return rpo, true
}
