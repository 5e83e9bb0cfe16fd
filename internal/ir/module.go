// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package ir

// Module is the top-level container: every function and global the
// setup interpreter and the per-kernel passes see comes from one of
// these. A real deployment gets one from the eBPF/XDP front-end; tests
// build one directly with the helpers in builder.go.
type Module struct {
	Name      string
	Functions []*Function
	Globals   []*GlobalVariable
}

func NewModule(name string) *Module { return &Module{Name: name} }

func (m *Module) NewFunction(name string, ty *Type) *Function {
	fn := &Function{Name: name, Ty: ty, Module: m}
	for i, p := range ty.Params {
		fn.Params = append(fn.Params, &Argument{Name: "arg" + itoa(i), Ty: p, Idx: i})
	}
	m.Functions = append(m.Functions, fn)
	return fn
}

func (m *Module) FindFunction(name string) *Function {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

func (m *Module) NewGlobalString(name, s string) *GlobalVariable {
	data := append([]byte(s), 0)
	g := &GlobalVariable{
		Name:       name,
		Ty:         ArrayTy(I8, len(data)),
		Constant:   true,
		StringData: data,
		IsString:   true,
	}
	m.Globals = append(m.Globals, g)
	return g
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
