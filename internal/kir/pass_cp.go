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
    `tlog.app/go/tlog`
)

// CopyProp folds type-preserving movs, modifier-only movs and value loads
// into their consumers wherever the consumer slot can encode the combined
// operand. It runs on SSA form, before any false dependencies exist.
type CopyProp struct {
    LowerImmedToConst bool
}

type _CpCtx struct {
    sh       *Shader
    lowerImm bool
    progress bool
}

func (self CopyProp) String() string {
    return "CopyProp"
}

/* a folding candidate: a mov (or single-source absneg) between registers
 * of the same type whose source is itself an SSA value */
func isEligibleMov(src *Instr, allowMods bool) bool {
    if src == nil || !isSameTypeMov(src) {
        return false
    }

    reg := src.Srcs[0]
    if ssaDef(reg) == nil {
        return false
    }

    if src.Dsts[0].Flags & RegRelativ != 0 {
        return false
    }
    if reg.Flags & (RegRelativ | RegArray) != 0 {
        return false
    }
    if !allowMods && reg.Flags & _RegMods != 0 {
        return false
    }

    return true
}

// combineFlags merges the modifier and operand-kind flags of a folded mov's
// source into the consumer's flags. abs absorbs a stacked same-domain
// negate; negate and bitwise-not toggle; abs of a known-boolean value is
// the identity and is dropped.
func combineFlags(dstFlags *RegFlags, src *Instr) {
    srcFlags := src.Srcs[0].Flags

    /* an abs at the use site swallows a negate on the way in */
    if *dstFlags & RegFAbs != 0 {
        srcFlags &^= RegFNeg
    }
    if *dstFlags & RegSAbs != 0 {
        srcFlags &^= RegSNeg
    }

    if srcFlags & RegFAbs != 0 {
        *dstFlags |= RegFAbs
    }
    if srcFlags & RegFNeg != 0 {
        *dstFlags ^= RegFNeg
    }
    if srcFlags & RegSAbs != 0 {
        *dstFlags |= RegSAbs
    }
    if srcFlags & RegSNeg != 0 {
        *dstFlags ^= RegSNeg
    }
    if srcFlags & RegBNot != 0 {
        *dstFlags ^= RegBNot
    }

    /* operand kind travels wholesale; the use site's own SSA/shared bits
     * are replaced, not merged, or a folded value load would keep an SSA
     * flag with no definition behind it */
    *dstFlags &^= RegSSA | RegShared
    *dstFlags |= srcFlags & (RegSSA | RegConst | RegImmed | RegRelativ | RegArray | RegShared)

    /* abs of a 0/1 value changes nothing */
    if d := ssaDef(src.Srcs[0]); d != nil && isBool(d) {
        *dstFlags &^= RegFAbs | RegSAbs
    }
}

func (self *_CpCtx) unuse(i *Instr) {
    if i.UseCount <= 0 {
        panic("kir: unuse of instruction with no remaining uses")
    }

    i.UseCount--
    if i.UseCount != 0 {
        return
    }

    /* the value is now dead; it must not have been an output there is
     * still a promise to keep */
    for _, k := range i.Block.Keeps {
        if k == i {
            panic("kir: kept instruction lost its last use")
        }
    }

    i.BarrierClass = 0
    i.BarrierConflict = 0
}

// lowerImmed moves an immediate that no consumer slot can encode into the
// constant pool and rewrites the operand as a constant-file reference.
// Identical values share a slot; a full pool fails the fold.
func (self *_CpCtx) lowerImmed(instr *Instr, n int, reg *Reg, newFlags RegFlags) bool {
    if !self.lowerImm {
        return false
    }
    if newFlags & RegImmed == 0 {
        return false
    }

    newFlags = (newFlags &^ RegImmed) | RegConst
    if !validFlags(instr, n, newFlags) {
        return false
    }

    /* fold any surviving modifiers into the pooled value */
    reg = CloneReg(reg)
    if newFlags & RegSAbs != 0 && reg.Iim() < 0 {
        reg.SetIim(-reg.Iim())
    }
    if newFlags & RegSNeg != 0 {
        reg.SetIim(-reg.Iim())
    }
    if newFlags & RegBNot != 0 {
        reg.SetIim(^reg.Iim())
    }
    if newFlags & RegFAbs != 0 {
        reg.SetUim(reg.Uim() &^ 0x80000000)
    }
    if newFlags & RegFNeg != 0 {
        reg.SetUim(reg.Uim() ^ 0x80000000)
    }
    newFlags &^= _RegMods

    slot, ok := self.sh.Consts.Lookup(reg.Uim())
    if !ok {
        if slot, ok = self.sh.Consts.Add(reg.Uim()); !ok {
            return false
        }
    }

    reg.Flags = newFlags
    reg.Num = uint16(slot)
    instr.Srcs[n] = reg

    tlog.V("cp").Printw("lowered immediate to const", "slot", slot, "instr", instr)
    return true
}

/* exchange source slots n and swapN, keeping the exchange only when both
 * operands are encodable in their new homes */
func (self *_CpCtx) trySwapTwoSrcs(instr *Instr, n int, newFlags RegFlags, swapN int) bool {
    instr.Srcs[n], instr.Srcs[swapN] = instr.Srcs[swapN], instr.Srcs[n]

    if !validFlags(instr, swapN, newFlags) || !validFlags(instr, n, instr.Srcs[n].Flags) {
        instr.Srcs[n], instr.Srcs[swapN] = instr.Srcs[swapN], instr.Srcs[n]
        return false
    }

    /* the moved operand folds on the caller's rescan; mark the swap so it
     * is not undone */
    if pl, ok := instr.Pl.(*AluPayload); ok {
        pl.Swapped = true
    }
    return true
}

// trySwapCat3 makes an otherwise-rejected operand legal in a multiply-add
// by moving it to a slot that accepts it. mad can exchange its first two
// sources; sad is fully commutative in slots 0 and 2 against slot 1. Each
// instruction is swapped at most once.
func (self *_CpCtx) trySwapCat3(instr *Instr, n int, newFlags RegFlags) bool {
    if instr.Opc.Cat() != CatMulAdd {
        return false
    }
    if !(isMad(instr.Opc) && n == 1) && !isSad(instr.Opc) {
        return false
    }
    if pl, ok := instr.Pl.(*AluPayload); ok && pl.Swapped {
        return false
    }

    /* an immediate cannot live anywhere in cat3; the caller lowers those
     * to the constant pool before trying a swap */
    if newFlags & RegImmed != 0 {
        return false
    }

    /* only operands the second slot rejects are worth moving */
    if newFlags & (RegConst | RegShared | RegSNeg) == 0 {
        return false
    }

    if n == 1 {
        if self.trySwapTwoSrcs(instr, n, newFlags, 0) {
            return true
        }
        if isSad(instr.Opc) && self.trySwapTwoSrcs(instr, n, newFlags, 2) {
            return true
        }
        return false
    }

    return isSad(instr.Opc) && self.trySwapTwoSrcs(instr, n, newFlags, 1)
}

func conflicts(a *Reg, b *Reg) bool {
    return a != nil && b != nil && a.Def != b.Def
}

// regCP attempts to fold the definition of source slot n into the
// instruction itself. Returns whether anything changed.
func (self *_CpCtx) regCP(instr *Instr, reg *Reg, n int) bool {
    src := ssaDef(reg)
    if src == nil {
        return false
    }

    if isEligibleMov(src, true) {
        srcReg := src.Srcs[0]
        newFlags := reg.Flags
        combineFlags(&newFlags, src)

        if !validFlags(instr, n, newFlags) {
            return self.trySwapCat3(instr, n, newFlags)
        }

        if newFlags & RegArray != 0 {
            if reg.Flags & RegArray != 0 {
                panic("kir: array source folded into an array use")
            }
            reg.Array = srcReg.Array
        }

        reg.Flags = newFlags
        reg.Def = srcReg.Def

        instr.BarrierClass |= src.BarrierClass
        instr.BarrierConflict |= src.BarrierConflict

        self.unuse(src)
        if d := ssaDef(reg); d != nil {
            d.UseCount++
        }

        tlog.V("cp").Printw("folded mov", "mov", src, "into", instr, "slot", n)
        return true
    }

    if (isSameTypeMov(src) || isConstMov(src)) && !isFlow(instr) {
        srcReg := src.Srcs[0]
        if srcReg.Flags & RegArray != 0 {
            return false
        }

        newFlags := reg.Flags
        combineFlags(&newFlags, src)

        if !validFlags(instr, n, newFlags) {
            if self.lowerImmed(instr, n, srcReg, newFlags) {
                self.unuse(src)
                return true
            }
            return self.trySwapCat3(instr, n, newFlags)
        }

        if srcReg.Flags & RegConst != 0 {
            return self.constCP(instr, reg, n, src, srcReg, newFlags)
        }
        if srcReg.Flags & RegImmed != 0 {
            return self.immedCP(instr, n, src, srcReg, newFlags)
        }
    }

    return false
}

/* fold a constant-file load, including the narrowing const movs that the
 * consumer performs implicitly */
func (self *_CpCtx) constCP(instr *Instr, reg *Reg, n int, src *Instr, srcReg *Reg, newFlags RegFlags) bool {
    /* a relative access brings the mov's address register along; it must
     * not clash with an address the consumer already holds */
    if srcReg.Flags & RegRelativ != 0 && conflicts(instr.Address, src.Address) {
        return false
    }

    /* narrowing movs only disappear into consumers that narrow the same
     * way; check which interpretation the consumer applies. absneg is
     * always type-preserving and has no mov payload. */
    m, _ := src.Pl.(*MovPayload)
    switch {
        case m == nil || m.SrcType == m.DstType: {
            /* same-type const mov, always foldable */
        }

        case m.DstType == TypeF16: {
            if isMeta(instr) {
                return false
            }
            if instr.Opc == OpMov && !typeFloat(instr.Pl.(*MovPayload).SrcType) {
                return false
            }
            if instr.Opc != OpMov && !isCat2Float(instr.Opc) && !isCat3Float(instr.Opc) {
                return false
            }
        }

        case m.DstType == TypeU16 || m.DstType == TypeS16: {
            if isCat2Float(instr.Opc) || isCat3Float(instr.Opc) {
                return false
            }
            if instr.Opc == OpMov && typeFloat(instr.Pl.(*MovPayload).SrcType) {
                return false
            }
        }

        default: {
            return false
        }
    }

    nr := CloneReg(srcReg)
    nr.Flags = newFlags
    instr.Srcs[n] = nr

    if nr.Flags & RegRelativ != 0 {
        self.sh.SetAddress(instr, src.Address)
    }

    self.unuse(src)
    tlog.V("cp").Printw("folded const mov", "mov", src, "into", instr, "slot", n)
    return true
}

/* fold an immediate-loading mov, evaluating integer modifiers into the
 * value itself and translating float immediates through the lookup table */
func (self *_CpCtx) immedCP(instr *Instr, n int, src *Instr, srcReg *Reg, newFlags RegFlags) bool {
    iim := srcReg.Iim()

    /* float consumers can only encode table values; the encoded operand
     * becomes the table index */
    if instr.Opc.Cat() == CatAlu && !isCat2Int(instr.Opc) {
        fi := flut(srcReg)
        if fi < 0 {
            if self.lowerImmed(instr, n, srcReg, newFlags) {
                self.unuse(src)
                return true
            }
            return false
        }
        iim = int32(fi)
    }

    if newFlags & RegSAbs != 0 && iim < 0 {
        iim = -iim
    }
    if newFlags & RegSNeg != 0 {
        iim = -iim
    }
    if newFlags & RegBNot != 0 {
        iim = ^iim
    }

    if validFlags(instr, n, newFlags) && validImmediate(instr, iim) {
        newFlags &^= RegSAbs | RegSNeg | RegBNot
        nr := CloneReg(srcReg)
        nr.Flags = newFlags
        nr.SetIim(iim)
        instr.Srcs[n] = nr
        self.unuse(src)
        tlog.V("cp").Printw("folded immediate", "value", iim, "into", instr, "slot", n)
        return true
    }

    if self.lowerImmed(instr, n, srcReg, newFlags) {
        self.unuse(src)
        return true
    }
    return false
}

// instrCP walks the use-def graph depth-first and folds the sources of the
// instruction until none of them changes anymore. A successful fold can
// expose another (a chain of movs), so the source list is rescanned.
func (self *_CpCtx) instrCP(instr *Instr) {
    if len(instr.Srcs) == 0 {
        return
    }
    if instr.CheckMark() {
        return
    }

    for rescan := true; rescan; {
        rescan = false

        for n := 0; n < len(instr.Srcs); n++ {
            reg := instr.Srcs[n]
            src := ssaDef(reg)
            if src == nil {
                continue
            }

            self.instrCP(src)

            /* array reads stay put unless the def is a phi merge */
            if reg.Flags & RegArray != 0 && src.Opc != OpMetaPhi {
                continue
            }

            /* meta instructions cannot carry modifiers */
            if isMeta(instr) && (src.Opc == OpAbsNegF || src.Opc == OpAbsNegS) {
                continue
            }

            /* never fold past an address-register writer */
            if writesAddr(src) {
                continue
            }

            if self.regCP(instr, reg, n) {
                rescan = true
                self.progress = true
            }
        }
    }

    self.narrowImmedMov(instr)
    self.collapseIndirectSam(instr)
}

/* a type-converting mov of an immediate is really a mov of the converted
 * immediate; rewrite uint conversions in place */
func (self *_CpCtx) narrowImmedMov(instr *Instr) {
    if instr.Opc != OpMov {
        return
    }

    m := instr.Pl.(*MovPayload)
    if m.SrcType == m.DstType {
        return
    }
    if instr.Srcs[0].Flags & RegImmed == 0 {
        return
    }
    if fullType(m.SrcType) != TypeU32 || fullType(m.DstType) != TypeU32 {
        return
    }

    v := instr.Srcs[0].Uim()
    switch typeSize(m.DstType) {
        case 16 : v &= 0xffff
        case 8  : v &= 0xff
    }
    instr.Srcs[0].SetUim(v)

    if instr.Dsts[0].Flags & RegHalf != 0 {
        instr.Srcs[0].Flags |= RegHalf
    } else {
        instr.Srcs[0].Flags &^= RegHalf
    }

    m.SrcType = m.DstType
    self.progress = true
}

/* an indirect sampler access whose texture/sampler indices turn out to be
 * small immediates collapses back to the direct encoding */
func (self *_CpCtx) collapseIndirectSam(instr *Instr) {
    if !isTex(instr) {
        return
    }
    if instr.Flags & InstrS2En == 0 || instr.Flags & InstrBindless != 0 {
        return
    }

    st := ssaDef(instr.Srcs[0])
    if st == nil || st.Opc != OpMetaCollect {
        panic("kir: indirect sampler operand is not a collect")
    }

    tex := st.Srcs[0]
    samp := st.Srcs[1]
    if tex.Flags & RegImmed == 0 || samp.Flags & RegImmed == 0 {
        return
    }
    if tex.Iim() >= 16 || samp.Iim() >= 16 {
        return
    }

    pl := instr.Pl.(*TexPayload)
    pl.Tex = uint8(tex.Iim())
    pl.Samp = uint8(samp.Iim())

    instr.Flags &^= InstrS2En
    instr.Srcs = append(instr.Srcs[:0], instr.Srcs[1:]...)
    self.unuse(st)
    self.progress = true

    tlog.V("cp").Printw("collapsed indirect sampler", "instr", instr)
}

/* a kept output that is itself a plain mov forwards the promise to the
 * mov's source */
func (self *_CpCtx) eliminateOutputMov(instr *Instr) *Instr {
    if !isEligibleMov(instr, false) {
        return instr
    }
    if instr.Srcs[0].Flags & RegArray != 0 {
        return instr
    }

    src := ssaDef(instr.Srcs[0])
    self.progress = true
    tlog.V("cp").Printw("eliminated output mov", "mov", instr, "src", src)
    return src
}

func (self CopyProp) Apply(sh *Shader) bool {
    ctx := _CpCtx {
        sh       : sh,
        lowerImm : self.LowerImmedToConst,
    }

    /* reset and recount SSA consumers; the pass relies on exact counts */
    for _, bb := range sh.Blocks {
        for _, v := range bb.Instrs {
            if len(v.Deps) != 0 {
                panic("kir: copy propagation must run before false dependencies exist")
            }
            v.UseCount = 0
        }
    }
    for _, bb := range sh.Blocks {
        for _, v := range bb.Instrs {
            for _, s := range v.Srcs {
                if d := ssaDef(s); d != nil {
                    d.UseCount++
                }
            }
        }
    }

    sh.ClearMarks()

    for _, bb := range sh.Blocks {
        if t := bb.Terminator(); t != nil {
            ctx.instrCP(t)
        }
        for n, k := range bb.Keeps {
            ctx.instrCP(k)
            bb.Keeps[n] = ctx.eliminateOutputMov(k)
        }
    }

    return ctx.progress
}
