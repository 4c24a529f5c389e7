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

// Shader is the whole-program container: the block list in program order
// plus side lists of special instructions that several passes need to find
// without walking everything.
type Shader struct {
    Blocks []*Block

    /* shader-input receiving instructions (bary.f etc) */
    Inputs []*Instr

    /* instructions referencing the address register, see SetAddress */
    A0Users []*Instr

    /* texture-prefetch placeholders, scheduled as a phase of their own */
    TexPrefetches []*Instr

    Consts *ConstPool

    instrCount uint32
}

func NewShader(constSlots int) *Shader {
    return &Shader {
        Consts: NewConstPool(constSlots),
    }
}

func (self *Shader) NewBlock() *Block {
    bb := &Block {
        Shader : self,
        Index  : len(self.Blocks),
    }
    self.Blocks = append(self.Blocks, bb)
    return bb
}

func (self *Shader) nextSerial() uint32 {
    self.instrCount++
    return self.instrCount
}

// SetAddress records the single address register an instruction may
// reference, and tracks the user on the shader's side list.
func (self *Shader) SetAddress(i *Instr, addr *Reg) {
    if i.Address != nil && i.Address.Def != addr.Def {
        panic("kir: instruction already references a different address register")
    }
    if i.Address == nil {
        self.A0Users = append(self.A0Users, i)
    }
    i.Address = addr
}

// ClearMarks resets the traversal mark on every instruction, including
// detached keeps.
func (self *Shader) ClearMarks() {
    for _, bb := range self.Blocks {
        for _, v := range bb.Instrs {
            v.Flags &^= InstrMark
        }
        for _, v := range bb.Keeps {
            v.Flags &^= InstrMark
        }
    }
}
