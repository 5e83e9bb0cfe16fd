// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package ir

// Builder appends instructions to one basic block at a time, handing
// out sequential SSA names. It is intentionally dumb -- passes that
// need to insert mid-block use BasicBlock.InsertBefore directly.
type Builder struct {
	bb    *BasicBlock
	count *int
}

func NewBuilder(bb *BasicBlock) *Builder {
	n := 0
	return &Builder{bb: bb, count: &n}
}

func (b *Builder) SetBlock(bb *BasicBlock) { b.bb = bb }

func (b *Builder) name() string {
	*b.count++
	return bNamePrefix(b.bb) + itoa(*b.count)
}

func bNamePrefix(bb *BasicBlock) string {
	if bb == nil {
		return "v"
	}
	return bb.Name + "."
}

func (b *Builder) Alloca(ty *Type, arraySize Value) *Alloca {
	i := &Alloca{base: base{name: b.name(), ty: PointerTy(ty)}, AllocatedType: ty, ArraySize: arraySize}
	b.bb.Append(i)
	return i
}

func (b *Builder) Load(ty *Type, ptr Value) *Load {
	i := &Load{base: base{name: b.name(), ty: ty}, Ptr: ptr}
	b.bb.Append(i)
	return i
}

func (b *Builder) Store(val, ptr Value) *Store {
	i := &Store{base: base{name: b.name(), ty: VoidTy()}, Val: val, Ptr: ptr}
	b.bb.Append(i)
	return i
}

func (b *Builder) GEP(pointee *Type, ptr Value, indices ...Value) *GetElementPtr {
	i := &GetElementPtr{base: base{name: b.name(), ty: PointerTy(pointee)}, PointeeType: pointee, Ptr: ptr, Indices: indices}
	b.bb.Append(i)
	return i
}

func (b *Builder) BitCast(val Value, destTy *Type) *BitCast {
	i := &BitCast{base: base{name: b.name(), ty: destTy}, Val: val}
	b.bb.Append(i)
	return i
}

func (b *Builder) Cast(op CastKind, val Value, destTy *Type) *Cast {
	i := &Cast{base: base{name: b.name(), ty: destTy}, Op: op, Val: val}
	b.bb.Append(i)
	return i
}

func (b *Builder) Call(retTy *Type, callee Value, args ...Value) *Call {
	i := &Call{base: base{name: b.name(), ty: retTy}, Callee: callee, Args: args}
	b.bb.Append(i)
	return i
}

func (b *Builder) Phi(ty *Type) *Phi {
	i := &Phi{base: base{name: b.name(), ty: ty}}
	b.bb.Append(i)
	return i
}

func (b *Builder) Br(target *BasicBlock) *Br {
	i := &Br{base: base{name: b.name(), ty: VoidTy()}, True: target}
	b.bb.Append(i)
	return i
}

func (b *Builder) CondBr(cond Value, t, f *BasicBlock) *Br {
	i := &Br{base: base{name: b.name(), ty: VoidTy()}, Cond: cond, True: t, False: f}
	b.bb.Append(i)
	return i
}

func (b *Builder) Switch(cond Value, def *BasicBlock, cases ...SwitchCase) *Switch {
	i := &Switch{base: base{name: b.name(), ty: VoidTy()}, Cond: cond, Default: def, Cases: cases}
	b.bb.Append(i)
	return i
}

func (b *Builder) Ret(val Value) *Ret {
	i := &Ret{base: base{name: b.name(), ty: VoidTy()}, Val: val}
	b.bb.Append(i)
	return i
}

func (b *Builder) BinOp(op BinOpKind, lhs, rhs Value) *BinOp {
	i := &BinOp{base: base{name: b.name(), ty: lhs.Type()}, Op: op, LHS: lhs, RHS: rhs}
	b.bb.Append(i)
	return i
}

func (b *Builder) ICmp(pred ICmpPred, lhs, rhs Value) *ICmp {
	i := &ICmp{base: base{name: b.name(), ty: I1}, Pred: pred, LHS: lhs, RHS: rhs}
	b.bb.Append(i)
	return i
}

func (b *Builder) Select(cond, t, f Value) *Select {
	i := &Select{base: base{name: b.name(), ty: t.Type()}, Cond: cond, True: t, False: f}
	b.bb.Append(i)
	return i
}

func Int(ty *Type, v int64) *ConstInt { return &ConstInt{Ty: ty, Val: v} }
