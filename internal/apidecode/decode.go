// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// Package apidecode provides structured, validated views over a call to
// a recognized Nanotube intrinsic: field-by-field decoding of
// constant strings, constant function pointers and constant integers,
// walking through bitcasts and in-bounds constant-index GEP chains the
// way the front-end is expected to emit them.
package apidecode

import (
	"fmt"

	"github.com/Xilinx/nanotube-sub001/internal/ir"
)

// walkToGlobal follows a chain of bitcasts and constant-index GEPs back
// to the global variable it is ultimately rooted at, accumulating the
// constant byte offset along the way.
func walkToGlobal(v ir.Value) (*ir.GlobalVariable, int64, error) {
	var offset int64
	for {
		switch x := v.(type) {
		case *ir.GlobalVariable:
			return x, offset, nil
		case *ir.BitCast:
			v = x.Val
		case *ir.GetElementPtr:
			off, err := gepConstantOffset(x)
			if err != nil {
				return nil, 0, err
			}
			offset += off
			v = x.Ptr
		default:
			return nil, 0, fmt.Errorf("value %s is not a constant global-rooted pointer expression", v.Ident())
		}
	}
}

// GEPConstantOffset computes the byte offset a constant-index GEP
// contributes, for callers outside this package that need the same
// type-layout arithmetic (the pointer analysis, GEP compaction).
func GEPConstantOffset(g *ir.GetElementPtr) (int64, error) { return gepConstantOffset(g) }

// gepConstantOffset computes the byte offset a GEP with entirely
// constant indices contributes, type-layout style: the first index
// scales by the whole pointee type (array-of-pointee indexing),
// subsequent indices descend into struct fields or array elements.
func gepConstantOffset(g *ir.GetElementPtr) (int64, error) {
	if len(g.Indices) == 0 {
		return 0, nil
	}
	idx0, ok := constIndex(g.Indices[0])
	if !ok {
		return 0, fmt.Errorf("GEP %s has a non-constant leading index", g.Ident())
	}
	cur := g.PointeeType
	off := idx0 * cur.StoreSize()
	for _, ix := range g.Indices[1:] {
		n, ok := constIndex(ix)
		if !ok {
			return 0, fmt.Errorf("GEP %s has a non-constant index", g.Ident())
		}
		switch cur.Kind {
		case ir.KindStruct:
			if n < 0 || int(n) >= len(cur.Fields) {
				return 0, fmt.Errorf("GEP %s field index %d is out of bounds", g.Ident(), n)
			}
			off += cur.FieldOffset(int(n))
			cur = cur.Fields[n]
		case ir.KindArray:
			off += n * cur.Elem.StoreSize()
			cur = cur.Elem
		default:
			return 0, fmt.Errorf("GEP %s indexes into non-aggregate type %s", g.Ident(), cur)
		}
	}
	return off, nil
}

func constIndex(v ir.Value) (int64, bool) {
	switch c := v.(type) {
	case *ir.ConstInt:
		return c.Val, true
	case *ir.Cast:
		return constIndex(c.Val)
	default:
		return 0, false
	}
}

// ConstString resolves v to a NUL-terminated constant string, the way a
// `cstring` argument must resolve. It fails fatally (in the
// caller's sense -- it returns an error that the caller reports through
// log.ReportFatalError) if v is not rooted at a string global, or the
// string is not NUL-terminated within the global's bounds.
func ConstString(v ir.Value) (string, error) {
	g, offset, err := walkToGlobal(v)
	if err != nil {
		return "", fmt.Errorf("argument %s is not a constant string: %w", v.Ident(), err)
	}
	if !g.IsString {
		return "", fmt.Errorf("argument %s is not a constant string", v.Ident())
	}
	if offset < 0 || offset > int64(len(g.StringData)) {
		return "", fmt.Errorf("argument %s is out of bounds of global %s", v.Ident(), g.Ident())
	}
	data := g.StringData[offset:]
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), nil
		}
	}
	return "", fmt.Errorf("argument %s (global %s) is not NUL-terminated", v.Ident(), g.Ident())
}

// ConstFunction resolves v to the function it is the (possibly
// bitcast) address of.
func ConstFunction(v ir.Value) (*ir.Function, error) {
	for {
		switch x := v.(type) {
		case *ir.Function:
			return x, nil
		case *ir.BitCast:
			v = x.Val
		default:
			return nil, fmt.Errorf("value %s is not a constant function pointer", v.Ident())
		}
	}
}

// ConstInt resolves v to a constant integer, folding through casts of
// other constants.
func ConstInt(v ir.Value) (int64, error) {
	switch c := v.(type) {
	case *ir.ConstInt:
		return c.Val, nil
	case *ir.Cast:
		return ConstInt(c.Val)
	default:
		return 0, fmt.Errorf("value %s is not a constant integer", v.Ident())
	}
}
