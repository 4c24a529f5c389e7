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

/* shared construction helpers for the package tests */

func singleBlockShader(constSlots int) (*Shader, *Block, *Builder) {
	sh := NewShader(constSlots)
	bb := sh.NewBlock()
	return sh, bb, NewBuilder(AfterBlock(bb))
}

/* SSA-form helpers, used by the copy propagation tests */

func ssaSrc(i *Instr, def *Instr, flags RegFlags) *Reg {
	r := i.NewSrc(0, RegSSA|flags)
	r.Def = def.Dsts[0]
	return r
}

func movImm(b *Builder, t Type, v uint32) *Instr {
	i := b.Build(OpMov, 1, 1)
	i.Pl = &MovPayload{SrcType: t, DstType: t}
	i.NewDst(0, RegSSA)
	i.NewImmSrc(v)
	return i
}

func movConst(b *Builder, st Type, dt Type, slot uint16) *Instr {
	i := b.Build(OpMov, 1, 1)
	i.Pl = &MovPayload{SrcType: st, DstType: dt}
	i.NewDst(0, RegSSA)
	i.NewSrc(slot, RegConst)
	return i
}

func movSSA(b *Builder, def *Instr) *Instr {
	i := b.Build(OpMov, 1, 1)
	i.Pl = &MovPayload{SrcType: TypeF32, DstType: TypeF32}
	i.NewDst(0, RegSSA)
	ssaSrc(i, def, 0)
	return i
}

func absnegF(b *Builder, def *Instr, mods RegFlags) *Instr {
	i := b.Build(OpAbsNegF, 1, 1)
	i.Pl = &AluPayload{}
	i.NewDst(0, RegSSA)
	ssaSrc(i, def, mods)
	return i
}

func absnegS(b *Builder, def *Instr, mods RegFlags) *Instr {
	i := b.Build(OpAbsNegS, 1, 1)
	i.Pl = &AluPayload{}
	i.NewDst(0, RegSSA)
	ssaSrc(i, def, mods)
	return i
}

func aluSSA(b *Builder, opc Opcode, srcs ...*Instr) *Instr {
	i := b.Build(opc, 1, len(srcs))
	i.Pl = &AluPayload{}
	i.NewDst(0, RegSSA)
	for _, s := range srcs {
		ssaSrc(i, s, 0)
	}
	return i
}

/* post-RA helpers: operands carry physical register numbers, no SSA */

func raInstr(b *Builder, opc Opcode, dst uint16, srcs ...uint16) *Instr {
	i := b.Build(opc, 1, len(srcs))
	if i.Opc.Cat() == CatAlu || i.Opc.Cat() == CatMulAdd {
		i.Pl = &AluPayload{}
	}
	i.NewDst(dst, 0)
	for _, s := range srcs {
		i.NewSrc(s, 0)
	}
	return i
}

func raMov(b *Builder, dst uint16, src uint16) *Instr {
	i := b.Build(OpMov, 1, 1)
	i.Pl = &MovPayload{SrcType: TypeU32, DstType: TypeU32}
	i.NewDst(dst, 0)
	i.NewSrc(src, 0)
	return i
}

func instrIndex(bb *Block, i *Instr) int {
	for n, v := range bb.Instrs {
		if v == i {
			return n
		}
	}
	return -1
}
