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
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

/* an SSA value copy propagation cannot see through */
func opaqueF32(b *Builder) *Instr {
	i := b.Build(OpRcp, 1, 1)
	i.NewDst(0, RegSSA)
	i.NewImmSrc(math.Float32bits(1.0))
	return i
}

func opaqueU32(b *Builder) *Instr {
	i := b.Build(OpNotB, 1, 1)
	i.Pl = &AluPayload{}
	i.NewDst(0, RegSSA)
	i.NewImmSrc(0)
	return i
}

func TestCopyPropFoldsMovChain(t *testing.T) {
	sh, bb, b := singleBlockShader(4)

	x := opaqueF32(b)
	m1 := movSSA(b, x)
	m2 := movSSA(b, m1)
	use := aluSSA(b, OpAddF, m2, opaqueF32(b))
	bb.AddKeep(use)

	require.True(t, CopyProp{}.Apply(sh))

	require.Same(t, x, ssaDef(use.Srcs[0]))
	require.Equal(t, 0, m1.UseCount)
	require.Equal(t, 0, m2.UseCount)

	/* every fold retargets another reader at x; the bypassed movs keep
	 * their source reads until dead code elimination runs */
	require.Equal(t, 3, x.UseCount)
}

func TestCopyPropFlagAlgebra(t *testing.T) {
	/* the full outer (use site) x inner (folded first) modifier product;
	 * expressed in float flags, replayed below in the integer domain */
	tests := []struct {
		name  string
		inner RegFlags
		outer RegFlags
		want  RegFlags
	}{
		{"plain", 0, 0, 0},
		{"abs inside", RegFAbs, 0, RegFAbs},
		{"neg inside", RegFNeg, 0, RegFNeg},
		{"plain abs", 0, RegFAbs, RegFAbs},
		{"abs of abs", RegFAbs, RegFAbs, RegFAbs},
		{"abs swallows neg", RegFNeg, RegFAbs, RegFAbs},
		{"plain neg", 0, RegFNeg, RegFNeg},
		{"neg of abs keeps both", RegFAbs, RegFNeg, RegFAbs | RegFNeg},
		{"neg of neg cancels", RegFNeg, RegFNeg, 0},
		{"absneg of plain", 0, RegFAbs | RegFNeg, RegFAbs | RegFNeg},
		{"absneg of abs", RegFAbs, RegFAbs | RegFNeg, RegFAbs | RegFNeg},
		{"absneg swallows neg", RegFNeg, RegFAbs | RegFNeg, RegFAbs | RegFNeg},
	}

	toInt := func(f RegFlags) RegFlags {
		var r RegFlags
		if f&RegFAbs != 0 {
			r |= RegSAbs
		}
		if f&RegFNeg != 0 {
			r |= RegSNeg
		}
		return r
	}

	for _, tt := range tests {
		t.Run("float "+tt.name, func(t *testing.T) {
			sh, bb, b := singleBlockShader(4)

			x := opaqueF32(b)
			m1 := absnegF(b, x, tt.inner)
			m2 := absnegF(b, m1, tt.outer)
			use := aluSSA(b, OpMulF, m2, opaqueF32(b))
			bb.AddKeep(use)

			require.True(t, CopyProp{}.Apply(sh))

			require.Same(t, x, ssaDef(use.Srcs[0]))
			require.Equal(t, tt.want, use.Srcs[0].Flags&_RegMods)
		})

		t.Run("integer "+tt.name, func(t *testing.T) {
			sh, bb, b := singleBlockShader(4)

			x := opaqueU32(b)
			m1 := absnegS(b, x, toInt(tt.inner))
			m2 := absnegS(b, m1, toInt(tt.outer))
			use := aluSSA(b, OpAddS, m2, opaqueU32(b))
			bb.AddKeep(use)

			require.True(t, CopyProp{}.Apply(sh))

			require.Same(t, x, ssaDef(use.Srcs[0]))
			require.Equal(t, toInt(tt.want), use.Srcs[0].Flags&_RegMods)
		})
	}
}

func TestCopyPropBNotCancels(t *testing.T) {
	sh, bb, b := singleBlockShader(4)

	x := opaqueU32(b)

	mk := func(def *Instr) *Instr {
		i := b.Build(OpMov, 1, 1)
		i.Pl = &MovPayload{SrcType: TypeU32, DstType: TypeU32}
		i.NewDst(0, RegSSA)
		ssaSrc(i, def, RegBNot)
		return i
	}

	m2 := mk(mk(x))
	use := aluSSA(b, OpAndB, m2, opaqueU32(b))
	bb.AddKeep(use)

	require.True(t, CopyProp{}.Apply(sh))
	require.Same(t, x, ssaDef(use.Srcs[0]))
	require.Equal(t, RegFlags(0), use.Srcs[0].Flags&_RegMods)
}

func TestCopyPropDropsAbsOfBool(t *testing.T) {
	sh, bb, b := singleBlockShader(4)

	cmp := aluSSA(b, OpCmpsF, opaqueF32(b), opaqueF32(b))
	m := absnegF(b, cmp, RegFAbs)
	use := aluSSA(b, OpAddF, m, opaqueF32(b))
	bb.AddKeep(use)

	require.True(t, CopyProp{}.Apply(sh))

	require.Same(t, cmp, ssaDef(use.Srcs[0]))
	require.Equal(t, RegFlags(0), use.Srcs[0].Flags&(RegFAbs|RegSAbs))
}

func TestCopyPropFoldsIntegerImmediate(t *testing.T) {
	sh, bb, b := singleBlockShader(4)

	x := movImm(b, TypeU32, 7)
	add := aluSSA(b, OpAddS, opaqueU32(b), x)
	bb.AddKeep(add)

	require.True(t, CopyProp{}.Apply(sh))

	require.NotZero(t, add.Srcs[1].Flags&RegImmed)
	require.Equal(t, int32(7), add.Srcs[1].Iim())
	require.Equal(t, 0, x.UseCount)

	/* the folded operand is a plain immediate now, not an SSA read */
	require.Zero(t, add.Srcs[1].Flags&RegSSA)
	require.Nil(t, add.Srcs[1].Def)
	require.NoError(t, Validate(sh))
}

func TestCopyPropFloatImmediateUsesLookupTable(t *testing.T) {
	sh, bb, b := singleBlockShader(4)

	one := movImm(b, TypeF32, math.Float32bits(1.0))
	mul := aluSSA(b, OpMulF, opaqueF32(b), one)
	bb.AddKeep(mul)

	require.True(t, CopyProp{}.Apply(sh))

	/* 1.0 is entry 2 of the lookup table */
	require.NotZero(t, mul.Srcs[1].Flags&RegImmed)
	require.Equal(t, int32(2), mul.Srcs[1].Iim())
}

func TestCopyPropLowersUntabledFloatToConst(t *testing.T) {
	sh, bb, b := singleBlockShader(4)

	v := math.Float32bits(3.0)
	m1 := movImm(b, TypeF32, v)
	m2 := movImm(b, TypeF32, v)
	u1 := aluSSA(b, OpMulF, opaqueF32(b), m1)
	u2 := aluSSA(b, OpMulF, opaqueF32(b), m2)
	bb.AddKeep(u1)
	bb.AddKeep(u2)

	require.True(t, CopyProp{LowerImmedToConst: true}.Apply(sh))

	require.NotZero(t, u1.Srcs[1].Flags&RegConst)
	require.NotZero(t, u2.Srcs[1].Flags&RegConst)
	require.Zero(t, u1.Srcs[1].Flags&RegSSA)

	/* identical values share one pool slot */
	require.Equal(t, 1, sh.Consts.Len())
	require.Equal(t, u1.Srcs[1].Num, u2.Srcs[1].Num)
	require.Equal(t, v, sh.Consts.Value(int(u1.Srcs[1].Num)))
}

func TestCopyPropAbandonsFoldOnFullPool(t *testing.T) {
	sh, bb, b := singleBlockShader(0)

	m := movImm(b, TypeF32, math.Float32bits(3.0))
	mul := aluSSA(b, OpMulF, opaqueF32(b), m)
	bb.AddKeep(mul)

	CopyProp{LowerImmedToConst: true}.Apply(sh)

	/* no room in the pool: the mov stays live */
	require.Same(t, m, ssaDef(mul.Srcs[1]))
	require.Equal(t, 1, m.UseCount)
	require.Equal(t, 0, sh.Consts.Len())
}

func TestCopyPropSwapsMadSources(t *testing.T) {
	sh, bb, b := singleBlockShader(4)

	cmov := movConst(b, TypeF32, TypeF32, 4)
	mad := aluSSA(b, OpMadF, opaqueF32(b), cmov, opaqueF32(b))
	bb.AddKeep(mad)

	require.True(t, CopyProp{}.Apply(sh))

	/* the const operand cannot live in the second slot, so the first two
	 * sources were exchanged and the fold landed in slot 0 */
	require.NotZero(t, mad.Srcs[0].Flags&RegConst)
	require.Equal(t, uint16(4), mad.Srcs[0].Num)
	require.True(t, mad.Pl.(*AluPayload).Swapped)
	require.Equal(t, 0, cmov.UseCount)
}

func TestCopyPropCollapsesIndirectSampler(t *testing.T) {
	sh, bb, b := singleBlockShader(4)

	collect := b.Build(OpMetaCollect, 1, 2)
	collect.NewDst(0, RegSSA)
	collect.NewImmSrc(3)
	collect.NewImmSrc(5)

	coord := opaqueF32(b)

	sam := b.Build(OpSam, 1, 2)
	sam.Flags |= InstrS2En
	sam.Pl = &TexPayload{Type: TypeF32}
	sam.NewDst(0, RegSSA)
	ssaSrc(sam, collect, 0)
	ssaSrc(sam, coord, 0)
	bb.AddKeep(sam)

	require.True(t, CopyProp{}.Apply(sh))

	require.Zero(t, sam.Flags&InstrS2En)
	require.Equal(t, uint8(3), sam.Pl.(*TexPayload).Tex)
	require.Equal(t, uint8(5), sam.Pl.(*TexPayload).Samp)
	require.Len(t, sam.Srcs, 1)
	require.Same(t, coord, ssaDef(sam.Srcs[0]))
}

func TestCopyPropKeepsIndirectSamplerWithLargeIndex(t *testing.T) {
	sh, bb, b := singleBlockShader(4)

	collect := b.Build(OpMetaCollect, 1, 2)
	collect.NewDst(0, RegSSA)
	collect.NewImmSrc(17)
	collect.NewImmSrc(5)

	sam := b.Build(OpSam, 1, 2)
	sam.Flags |= InstrS2En
	sam.Pl = &TexPayload{Type: TypeF32}
	sam.NewDst(0, RegSSA)
	ssaSrc(sam, collect, 0)
	ssaSrc(sam, opaqueF32(b), 0)
	bb.AddKeep(sam)

	CopyProp{}.Apply(sh)

	require.NotZero(t, sam.Flags&InstrS2En)
	require.Len(t, sam.Srcs, 2)
}

func TestCopyPropNarrowsConvertingImmediateMov(t *testing.T) {
	sh, bb, b := singleBlockShader(4)

	m := b.Build(OpMov, 1, 1)
	m.Pl = &MovPayload{SrcType: TypeU32, DstType: TypeU16}
	m.NewDst(0, RegSSA|RegHalf)
	m.NewImmSrc(0x12345678)
	bb.AddKeep(m)

	require.True(t, CopyProp{}.Apply(sh))

	require.Equal(t, uint32(0x5678), m.Srcs[0].Uim())
	require.NotZero(t, m.Srcs[0].Flags&RegHalf)
	require.Equal(t, TypeU16, m.Pl.(*MovPayload).SrcType)
}

func TestCopyPropEliminatesOutputMov(t *testing.T) {
	sh, bb, b := singleBlockShader(4)

	x := opaqueF32(b)
	out := movSSA(b, x)
	bb.AddKeep(out)

	require.True(t, CopyProp{}.Apply(sh))
	require.Same(t, x, bb.Keeps[0])
}

func TestCopyPropFoldsIntoTerminator(t *testing.T) {
	sh, bb, b := singleBlockShader(4)
	exit := sh.NewBlock()

	cond := aluSSA(b, OpCmpsS, opaqueU32(b), opaqueU32(b))
	m := func() *Instr {
		i := b.Build(OpMov, 1, 1)
		i.Pl = &MovPayload{SrcType: TypeU32, DstType: TypeU32}
		i.NewDst(0, RegSSA)
		ssaSrc(i, cond, 0)
		return i
	}()

	br := b.Build(OpBr, 0, 1)
	br.Pl = &FlowPayload{Target: exit}
	ssaSrc(br, m, 0)
	bb.AddSuccessor(exit)

	require.True(t, CopyProp{}.Apply(sh))
	require.Same(t, cond, ssaDef(br.Srcs[0]))
}

func TestCopyPropIsIdempotent(t *testing.T) {
	sh, bb, b := singleBlockShader(4)

	x := opaqueF32(b)
	use := aluSSA(b, OpAddF, absnegF(b, movSSA(b, x), RegFNeg), movImm(b, TypeF32, math.Float32bits(1.0)))
	bb.AddKeep(use)

	require.True(t, CopyProp{}.Apply(sh))
	require.False(t, CopyProp{}.Apply(sh))
}
