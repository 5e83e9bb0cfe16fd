// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package ir

// Value is anything that can be used as an operand: an instruction
// result, a constant, a function argument or a global.
type Value interface {
	Type() *Type
	Ident() string
}

// Argument is a formal parameter of a Function.
type Argument struct {
	Name string
	Ty   *Type
	Idx  int
}

func (a *Argument) Type() *Type  { return a.Ty }
func (a *Argument) Ident() string { return "%" + a.Name }

// ConstInt is an arbitrary-width integer constant. The core never deals
// with integers wider than 64 bits, so a plain int64 payload suffices.
type ConstInt struct {
	Ty  *Type
	Val int64
}

func (c *ConstInt) Type() *Type  { return c.Ty }
func (c *ConstInt) Ident() string { return "const" }

// ConstNull is a null pointer constant.
type ConstNull struct{ Ty *Type }

func (c *ConstNull) Type() *Type  { return c.Ty }
func (c *ConstNull) Ident() string { return "null" }

// Undef is an LLVM `undef` value of the given type.
type Undef struct{ Ty *Type }

func (u *Undef) Type() *Type  { return u.Ty }
func (u *Undef) Ident() string { return "undef" }

// GlobalVariable is a module-scope allocation with an optional constant
// initializer (a byte string, for example a C-string literal, or a
// function for function pointers).
type GlobalVariable struct {
	Name        string
	Ty          *Type // type of the pointee
	Constant    bool
	Initializer Value
	StringData  []byte // set when the initializer is a constant byte array
	IsString    bool
}

func (g *GlobalVariable) Type() *Type  { return PointerTy(g.Ty) }
func (g *GlobalVariable) Ident() string { return "@" + g.Name }
