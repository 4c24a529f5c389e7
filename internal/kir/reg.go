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
    `math`
    `math/bits`
    `strings`
)

type RegFlags uint32

const (
    RegConst RegFlags = 1 << iota // reference into the uniform/constant file
    RegImmed                      // inline immediate value
    RegHalf                       // half precision
    RegShared                     // shared file: single writer, all threads read
    RegRelativ                    // relative (address-register indexed) access
    RegFNeg                       // float negate modifier
    RegFAbs                       // float absolute value modifier
    RegSNeg                       // integer negate modifier
    RegSAbs                       // integer absolute value modifier
    RegBNot                       // bitwise not modifier
    RegEi                         // "end of varying input" marker
    RegSSA                        // Def/Instr back pointers are valid
    RegArray                      // array access (pre-RA only)
    RegEarlyClobber               // dst written before srcs are consumed
    RegLastUse                    // RA metadata: last use of the value
    RegPredicate                  // predicate register file
    RegDummy                      // placeholder, ignored by dependency tracking
)

/* register numbering: component in the low two bits, rN.x == (N << 2) | x */

const (
    _RegSharedStart uint16 = 48 << 2 // r48.x, first shared register
    _RegNonGprStart uint16 = 61 << 2 // a0.x, then p0.x at 62<<2
    _RegA0          uint16 = 61 << 2
    _RegP0          uint16 = 62 << 2
)

func regNum(num uint16) uint16  { return num >> 2 }
func regComp(num uint16) uint16 { return num & 3 }

// Reg is a single operand: an SSA use/def edge, an immediate, a constant
// file reference, or a relative array access, depending on flags.
type Reg struct {
    Flags  RegFlags
    Num    uint16
    Wrmask uint16
    Size   uint16

    /* immediate bit pattern, see Iim/Uim/Fim accessors */
    Imm uint32

    /* relative addressing */
    Array struct {
        Id     uint16
        Offset int16
        Base   uint16
    }

    /* for RegSSA dsts, the instruction producing this register */
    Instr *Instr

    /* for RegSSA srcs, the dst register of the defining instruction */
    Def *Reg

    /* dst/src pair constrained to the same physical location; mutual or nil */
    Tied *Reg
}

func (self *Reg) Iim() int32   { return int32(self.Imm) }
func (self *Reg) Uim() uint32  { return self.Imm }
func (self *Reg) Fim() float32 { return math.Float32frombits(self.Imm) }

func (self *Reg) SetIim(v int32)   { self.Imm = uint32(v) }
func (self *Reg) SetUim(v uint32)  { self.Imm = v }
func (self *Reg) SetFim(v float32) { self.Imm = math.Float32bits(v) }

/* size of one element in half-register units */
func (self *Reg) ElemSize() int {
    if self.Flags & RegHalf != 0 {
        return 1
    } else {
        return 2
    }
}

func (self *Reg) Elems() int {
    if self.Flags & (RegArray | RegRelativ) != 0 {
        return int(self.Size)
    } else {
        return bits.Len16(self.Wrmask)
    }
}

func (self *Reg) IsGpr() bool {
    if self.Flags & (RegConst | RegImmed | RegPredicate) != 0 {
        return false
    } else {
        return self.Num < _RegNonGprStart
    }
}

// ssaDef returns the instruction defining this source register, or nil
// when the operand is not an SSA use (immediates, constants).
func ssaDef(reg *Reg) *Instr {
    if reg.Flags & (RegSSA | RegArray) != 0 && reg.Def != nil {
        return reg.Def.Instr
    } else {
        return nil
    }
}

func sameTypeReg(dst *Reg, src *Reg) bool {
    return (dst.Flags & RegHalf) == (src.Flags & RegHalf)
}

var _ModFlags = [...]struct{ f RegFlags; s string } {
    { RegFNeg, "fneg" },
    { RegFAbs, "fabs" },
    { RegSNeg, "sneg" },
    { RegSAbs, "sabs" },
    { RegBNot, "bnot" },
}

func (self *Reg) String() string {
    var mods []string
    for _, m := range _ModFlags {
        if self.Flags & m.f != 0 {
            mods = append(mods, m.s)
        }
    }

    /* base operand */
    var base string
    switch {
        case self.Flags & RegImmed != 0:
            base = fmt.Sprintf("#%d", self.Iim())
        case self.Flags & RegConst != 0 && self.Flags & RegRelativ != 0:
            base = fmt.Sprintf("c[a0 + %d]", self.Array.Offset)
        case self.Flags & RegConst != 0:
            base = fmt.Sprintf("c%d.%c", regNum(self.Num), "xyzw"[regComp(self.Num)])
        case self.Flags & RegRelativ != 0:
            base = fmt.Sprintf("r[a0 + %d]", self.Array.Offset)
        case self.Flags & RegPredicate != 0:
            base = fmt.Sprintf("p0.%c", "xyzw"[regComp(self.Num)])
        case self.Num >= _RegA0 && self.Num < _RegP0:
            base = fmt.Sprintf("a0.%c", "xyzw"[regComp(self.Num)])
        case self.Flags & RegHalf != 0:
            base = fmt.Sprintf("hr%d.%c", regNum(self.Num), "xyzw"[regComp(self.Num)])
        default:
            base = fmt.Sprintf("r%d.%c", regNum(self.Num), "xyzw"[regComp(self.Num)])
    }

    /* decorate with modifiers */
    if len(mods) == 0 {
        return base
    } else {
        return fmt.Sprintf("(%s)%s", strings.Join(mods, ","), base)
    }
}
