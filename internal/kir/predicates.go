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

/* Instruction classification helpers. These encode the shape of each
 * hardware category, they are not a full per-opcode catalog. */

func isFlow(i *Instr) bool    { return i.Opc.Cat() == CatFlow }
func isAlu(i *Instr) bool     { c := i.Opc.Cat(); return c >= CatMov && c <= CatMulAdd }
func isSfu(i *Instr) bool     { return i.Opc.Cat() == CatSfu }
func isTex(i *Instr) bool     { return i.Opc.Cat() == CatTex }
func isMem(i *Instr) bool     { return i.Opc.Cat() == CatMem }
func isBarrier(i *Instr) bool { return i.Opc.Cat() == CatBarrier }
func isMeta(i *Instr) bool    { return i.Opc.Cat() == CatMeta }

func isTerminator(i *Instr) bool {
    switch i.Opc {
        case OpBr, OpJump, OpPredT, OpPredF : return true
        default                             : return false
    }
}

func isKillOrDemote(i *Instr) bool {
    return i.Opc == OpKill || i.Opc == OpDemote
}

func isMad(opc Opcode) bool { return opc == OpMadF || opc == OpMadS }
func isSad(opc Opcode) bool { return opc == OpSadS }

func isCat2Float(opc Opcode) bool {
    switch opc {
        case OpAddF, OpMulF, OpMinF, OpMaxF, OpCmpsF : return true
        default                                      : return false
    }
}

func isCat2Int(opc Opcode) bool {
    return opc.Cat() == CatAlu && !isCat2Float(opc) && opc != OpAbsNegF && opc != OpBaryF
}

func isCat3Float(opc Opcode) bool { return opc == OpMadF }

// isBool reports whether the instruction is known to produce only 0/1.
func isBool(i *Instr) bool {
    switch i.Opc {
        case OpCmpsF, OpCmpsS, OpCmpsU : return true
        default                        : return false
    }
}

// isSameTypeMov reports a non-transformative mov, which also includes
// absneg.f/absneg.s since those take a single source argument.
func isSameTypeMov(i *Instr) bool {
    switch i.Opc {
        case OpMov: {
            m := i.Pl.(*MovPayload)
            if m.SrcType != m.DstType {
                return false
            }
            if !sameTypeReg(i.Dsts[0], i.Srcs[0]) {
                return false
            }
        }

        case OpAbsNegF, OpAbsNegS: {
            if i.Flags & InstrSat != 0 {
                return false
            }
            if !sameTypeReg(i.Dsts[0], i.Srcs[0]) {
                return false
            }
        }

        default: {
            return false
        }
    }

    /* movs that write predicate or address registers are special */
    dst := i.Dsts[0]
    if dst.Flags & RegPredicate != 0 {
        return false
    }
    if regNum(dst.Num) == regNum(_RegA0) && dst.Flags & (RegConst | RegImmed) == 0 {
        return false
    }
    if dst.Flags & (RegRelativ | RegArray) != 0 {
        return false
    }

    return true
}

// isConstMov reports a narrowing (never widening) mov from the constant
// file, which can still be folded into consumers that do the same
// demotion implicitly.
func isConstMov(i *Instr) bool {
    if i.Opc != OpMov {
        return false
    }
    if i.Srcs[0].Flags & RegConst == 0 {
        return false
    }

    m := i.Pl.(*MovPayload)
    st := m.SrcType
    dt := m.DstType

    if typeSize(dt) > typeSize(st) {
        return false
    }

    return (typeFloat(st) && typeFloat(dt)) ||
           (typeUint(st) && typeUint(dt)) ||
           (typeSint(st) && typeSint(dt))
}

func writesAddr(i *Instr) bool {
    for _, d := range i.Dsts {
        if d.Flags & (RegConst | RegImmed | RegPredicate) == 0 && regNum(d.Num) == regNum(_RegA0) {
            return true
        }
    }
    return false
}

// isInput matches varying-fetch instructions that must all issue before
// any thread in the group can be killed.
func isInput(i *Instr) bool {
    switch i.Opc {
        case OpLdlv, OpBaryF, OpFlatB : return true
        default                       : return false
    }
}

func isLocalMemLoad(i *Instr) bool {
    return i.Opc == OpLdl || i.Opc == OpLdlv
}

func isLoad(i *Instr) bool {
    switch i.Opc {
        case OpLdg, OpLdl, OpLdlv, OpLdc : return true
        default                          : return false
    }
}

func isAtomic(opc Opcode) bool {
    return opc == OpAtomicAdd
}

func isTexOrPrefetch(i *Instr) bool {
    return isTex(i) || i.Opc == OpMetaTexPrefetch
}

// isSsProducer reports whether consumers of the result may need an (ss)
// wait: special function units, local memory loads, and any write into
// the shared register file.
func isSsProducer(i *Instr) bool {
    for _, d := range i.Dsts {
        if d.Flags & RegShared != 0 {
            return true
        }
    }
    return isSfu(i) || isLocalMemLoad(i)
}

func needsSs(producer *Instr) bool {
    return isSsProducer(producer)
}

// isSyProducer reports a long-latency memory/texture result that consumers
// wait on with (sy).
func isSyProducer(i *Instr) bool {
    return isTexOrPrefetch(i) || (isLoad(i) && !isLocalMemLoad(i)) || isAtomic(i.Opc)
}

// isWarHazardProducer marks instructions that do not consume their sources
// at issue time, so a later writer of those sources must wait.
func isWarHazardProducer(i *Instr) bool {
    return isTex(i) || isMem(i) || isSsProducer(i) || i.Opc == OpStc
}
