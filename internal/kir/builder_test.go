/*
 * Copyright 2025 Kestrel Project Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package kir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderEmitsInProgramOrder(t *testing.T) {
	_, bb, b := singleBlockShader(4)

	i0 := b.Build(OpNop, 0, 0)
	i1 := b.Build(OpNop, 0, 0)
	i2 := b.Build(OpNop, 0, 0)

	require.Equal(t, []*Instr{i0, i1, i2}, bb.Instrs)
	require.Less(t, i0.Serial, i1.Serial)
	require.Less(t, i1.Serial, i2.Serial)
}

func TestCursorInsertion(t *testing.T) {
	_, bb, b := singleBlockShader(4)

	first := b.Build(OpNop, 0, 0)
	last := b.Build(OpNop, 0, 0)

	before := NewInstr(BeforeInstr(last), OpNop, 0, 0)
	after := NewInstr(AfterInstr(last), OpNop, 0, 0)
	front := NewInstr(BeforeBlock(bb), OpNop, 0, 0)

	require.Equal(t, []*Instr{front, first, before, last, after}, bb.Instrs)
	for _, v := range bb.Instrs {
		require.Same(t, bb, v.Block)
	}
}

func TestRegisterBackPointers(t *testing.T) {
	_, _, b := singleBlockShader(4)

	x := movImm(b, TypeU32, 1)
	require.Same(t, x, x.Dsts[0].Instr)

	y := b.Build(OpAddS, 1, 2)
	y.Pl = &AluPayload{}
	y.NewDst(0, RegSSA)
	s := ssaSrc(y, x, 0)
	y.NewImmSrc(2)

	require.Same(t, x.Dsts[0], s.Def)
	require.Same(t, x, ssaDef(s))
	require.Nil(t, ssaDef(y.Srcs[1]))
}

func TestSlotExhaustionPanics(t *testing.T) {
	_, _, b := singleBlockShader(4)

	i := b.Build(OpMov, 1, 1)
	i.NewDst(0, RegSSA)
	i.NewSrc(0, 0)

	require.Panics(t, func() { i.NewDst(0, RegSSA) })
	require.Panics(t, func() { i.NewSrc(0, 0) })
}

func TestSetTiedIsMutual(t *testing.T) {
	_, _, b := singleBlockShader(4)

	i := b.Build(OpAtomicAdd, 1, 2)
	d := i.NewDst(0, RegSSA)
	s := i.NewSrc(0, 0)
	i.NewSrc(4, 0)
	i.SetTied(d, s)

	require.Same(t, s, d.Tied)
	require.Same(t, d, s.Tied)
}

func TestCloneInstrIndependence(t *testing.T) {
	_, _, b := singleBlockShader(4)

	x := movImm(b, TypeU32, 7)
	i := b.Build(OpAtomicAdd, 1, 2)
	i.Pl = &MemPayload{Type: TypeU32}
	d := i.NewDst(0, RegSSA)
	s0 := ssaSrc(i, x, 0)
	i.NewImmSrc(3)
	i.SetTied(d, s0)

	c := CloneInstr(AfterInstr(i), i)

	/* fully independent registers, payload copied by value */
	require.NotSame(t, i.Dsts[0], c.Dsts[0])
	require.NotSame(t, i.Srcs[0], c.Srcs[0])
	require.NotSame(t, i.Pl, c.Pl)
	require.Same(t, c, c.Dsts[0].Instr)

	/* the clone's sources still refer to the original definitions */
	require.Same(t, x.Dsts[0], c.Srcs[0].Def)

	/* tied pairing restored inside the clone, not across */
	require.Same(t, c.Srcs[0], c.Dsts[0].Tied)
	require.Same(t, i.Srcs[0], i.Dsts[0].Tied)

	/* mutating the clone leaves the original alone */
	c.Srcs[1].SetUim(99)
	require.Equal(t, uint32(3), i.Srcs[1].Uim())
}

func TestTakeTerminator(t *testing.T) {
	sh, bb, b := singleBlockShader(4)
	exit := sh.NewBlock()

	body := b.Build(OpNop, 0, 0)
	jump := b.Build(OpJump, 0, 0)
	jump.Pl = &FlowPayload{Target: exit}
	bb.AddSuccessor(exit)

	require.Same(t, jump, bb.Terminator())

	got := bb.TakeTerminator()
	require.Same(t, jump, got)
	require.Nil(t, bb.Terminator())
	require.Equal(t, []*Instr{body}, bb.Instrs)

	bb.Instrs = append(bb.Instrs, got)
	require.Same(t, jump, bb.Terminator())
}

func TestAddSuccessorLimits(t *testing.T) {
	sh := NewShader(0)
	b0 := sh.NewBlock()
	b1 := sh.NewBlock()
	b2 := sh.NewBlock()
	b3 := sh.NewBlock()

	b0.AddSuccessor(b1)
	b0.AddSuccessor(b2)
	require.Equal(t, []*Block{b0}, b1.Preds)
	require.Equal(t, []*Block{b0}, b2.Preds)
	require.Panics(t, func() { b0.AddSuccessor(b3) })
}

func TestSetAddressConflictPanics(t *testing.T) {
	sh, _, b := singleBlockShader(4)

	a0 := b.Build(OpMov, 1, 1)
	a0.Pl = &MovPayload{SrcType: TypeU32, DstType: TypeU32}
	a0.NewDst(_RegA0, RegSSA)
	a0.NewImmSrc(0)
	addr0 := &Reg{Flags: RegSSA, Num: _RegA0, Def: a0.Dsts[0]}

	a1 := b.Build(OpMov, 1, 1)
	a1.Pl = &MovPayload{SrcType: TypeU32, DstType: TypeU32}
	a1.NewDst(_RegA0, RegSSA)
	a1.NewImmSrc(4)
	addr1 := &Reg{Flags: RegSSA, Num: _RegA0, Def: a1.Dsts[0]}

	user := b.Build(OpMov, 1, 1)
	user.Pl = &MovPayload{SrcType: TypeF32, DstType: TypeF32}
	user.NewDst(0, RegSSA)
	user.NewSrc(0, RegRelativ|RegConst)

	sh.SetAddress(user, addr0)
	require.Equal(t, []*Instr{user}, sh.A0Users)

	/* same address again is fine, a different one is not */
	sh.SetAddress(user, addr0)
	require.Equal(t, []*Instr{user}, sh.A0Users)
	require.Panics(t, func() { sh.SetAddress(user, addr1) })
}

func TestConstPool(t *testing.T) {
	p := NewConstPool(2)

	s0, ok := p.Add(0x3f800000)
	require.True(t, ok)
	s1, ok := p.Add(0x40000000)
	require.True(t, ok)
	require.NotEqual(t, s0, s1)

	/* exact-match reuse via Lookup */
	got, ok := p.Lookup(0x3f800000)
	require.True(t, ok)
	require.Equal(t, s0, got)

	_, ok = p.Lookup(0xdeadbeef)
	require.False(t, ok)

	/* capacity exhausted */
	_, ok = p.Add(0xdeadbeef)
	require.False(t, ok)
	require.Equal(t, 2, p.Len())

	require.Equal(t, uint32(0x40000000), p.Value(s1))
}
