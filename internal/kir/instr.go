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
    `fmt`
    `strings`
)

type InstrFlags uint32

const (
    InstrSy InstrFlags = 1 << iota // wait for outstanding long-latency memory/texture results
    InstrSs                        // wait for outstanding special-function results
    InstrJp                        // jump target
    InstrSat                       // saturate result
    InstrS2En                      // texture/sampler indices taken from a register
    InstrBindless                  // bindless resource access
    InstrNonUniform                // non-uniform resource index
    InstrUnused                    // kept only as a false-dep anchor
    InstrMark                      // generic traversal mark, see CheckMark
)

type BarrierFlags uint16

const (
    BarrierEverything BarrierFlags = 1 << iota
    BarrierSharedR
    BarrierSharedW
    BarrierImageR
    BarrierImageW
    BarrierBufferR
    BarrierBufferW
    BarrierArrayR
    BarrierArrayW
    BarrierPrivateR
    BarrierPrivateW
)

// Payload is the category-specific part of an instruction. Exactly one
// variant is attached, keyed by the opcode category.
type Payload interface {
    payload()
    clone() Payload
}

func (*FlowPayload)      payload() {}
func (*MovPayload)       payload() {}
func (*AluPayload)       payload() {}
func (*TexPayload)       payload() {}
func (*MemPayload)       payload() {}
func (*InputPayload)     payload() {}
func (*PrefetchPayload)  payload() {}
func (*PushConstPayload) payload() {}

// FlowPayload carries the branch target of a control-flow instruction.
type FlowPayload struct {
    Target *Block
}

// MovPayload carries the source/destination types of a mov; a mov is
// type-preserving iff they are equal.
type MovPayload struct {
    SrcType Type
    DstType Type
}

type AluCond uint8

const (
    CondLt AluCond = iota
    CondLe
    CondGt
    CondGe
    CondEq
    CondNe
)

// AluPayload is shared by cat2/cat3; Swapped records that copy propagation
// already exchanged the sources once.
type AluPayload struct {
    Cond    AluCond
    Swapped bool
}

type TexPayload struct {
    Samp uint8
    Tex  uint8
    Type Type
}

type MemPayload struct {
    Type      Type
    DstOffset int32
}

type InputPayload struct {
    InIdx int
}

type PrefetchPayload struct {
    Samp        uint8
    Tex         uint8
    InputOffset uint16
}

type PushConstPayload struct {
    SrcBase uint32
    SrcSize uint32
    DstBase uint32
}

func (self *FlowPayload) clone() Payload      { r := *self; return &r }
func (self *MovPayload) clone() Payload       { r := *self; return &r }
func (self *AluPayload) clone() Payload       { r := *self; return &r }
func (self *TexPayload) clone() Payload       { r := *self; return &r }
func (self *MemPayload) clone() Payload       { r := *self; return &r }
func (self *InputPayload) clone() Payload     { r := *self; return &r }
func (self *PrefetchPayload) clone() Payload  { r := *self; return &r }
func (self *PushConstPayload) clone() Payload { r := *self; return &r }

// Instr is one machine-level instruction. It belongs to exactly one Block.
type Instr struct {
    Block  *Block
    Opc    Opcode
    Flags  InstrFlags
    Repeat uint8

    Dsts []*Reg
    Srcs []*Reg
    Pl   Payload

    /* creation-order serial, stable scheduling tiebreak */
    Serial uint32

    /* number of SSA consumers, maintained by copy propagation only */
    UseCount int

    /* single address register referenced by relative srcs/dsts */
    Address *Reg

    /* explicit extra ordering edges (barriers, array/SSBO hazards) */
    Deps []*Instr

    /* side-effect ordering masks, see BarrierFlags */
    BarrierClass    BarrierFlags
    BarrierConflict BarrierFlags
}

// NewDst attaches the next destination register and returns it so the
// caller can set flags. The SSA back pointer is maintained here.
func (self *Instr) NewDst(num uint16, flags RegFlags) *Reg {
    if len(self.Dsts) == cap(self.Dsts) {
        panic("kir: instruction destination slots exhausted")
    }
    r := &Reg {
        Num    : num,
        Flags  : flags,
        Wrmask : 1,
        Instr  : self,
    }
    self.Dsts = append(self.Dsts, r)
    return r
}

func (self *Instr) NewSrc(num uint16, flags RegFlags) *Reg {
    if len(self.Srcs) == cap(self.Srcs) {
        panic("kir: instruction source slots exhausted")
    }
    r := &Reg {
        Num    : num,
        Flags  : flags,
        Wrmask : 1,
    }
    self.Srcs = append(self.Srcs, r)
    return r
}

// NewImmSrc attaches an immediate source.
func (self *Instr) NewImmSrc(v uint32) *Reg {
    r := self.NewSrc(0, RegImmed)
    r.SetUim(v)
    return r
}

// SetTied pairs a destination with the source that must share its
// physical location. The pairing is kept mutual.
func (self *Instr) SetTied(dst *Reg, src *Reg) {
    dst.Tied = src
    src.Tied = dst
}

// CheckMark returns whether the instruction was already marked, and marks
// it either way.
func (self *Instr) CheckMark() bool {
    if self.Flags & InstrMark != 0 {
        return true
    }
    self.Flags |= InstrMark
    return false
}

func (self *Instr) String() string {
    ss := make([]string, 0, len(self.Dsts) + len(self.Srcs))

    for _, d := range self.Dsts {
        ss = append(ss, d.String())
    }
    for _, s := range self.Srcs {
        ss = append(ss, s.String())
    }

    name := self.Opc.String()
    if m, ok := self.Pl.(*MovPayload); ok {
        name = fmt.Sprintf("%s.%s%s", name, m.SrcType, m.DstType)
    }
    if self.Flags & InstrSs != 0 {
        name = "(ss)" + name
    }
    if self.Flags & InstrSy != 0 {
        name = "(sy)" + name
    }
    if self.Repeat != 0 {
        name = fmt.Sprintf("(rpt%d)%s", self.Repeat, name)
    }

    return fmt.Sprintf("%s %s", name, strings.Join(ss, ", "))
}
