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
    `math`
)

const (
    _RegMods   = RegFNeg | RegFAbs | RegSNeg | RegSAbs | RegBNot
    _RegDirect = RegConst | RegImmed | RegRelativ
)

/* number of other srcs that already reference the const file, an
 * immediate, or a relative access; the encodings share one slot */
func countDirectSrcs(i *Instr, except int) int {
    c := 0
    for n, s := range i.Srcs {
        if n != except && s.Flags & _RegDirect != 0 {
            c++
        }
    }
    return c
}

// validFlags answers whether source slot n of the instruction can
// structurally hold an operand with the given flags. This is a pure
// predicate, it never mutates.
func validFlags(i *Instr, n int, flags RegFlags) bool {
    if flags & RegDummy != 0 {
        return true
    }

    switch i.Opc.Cat() {
        /* control flow and barriers read plain registers only */
        case CatFlow, CatBarrier: {
            return flags & (_RegDirect | _RegMods) == 0
        }

        /* movs take any operand form but carry no modifiers; absneg
         * opcodes exist for that */
        case CatMov: {
            return flags & _RegMods == 0
        }

        case CatAlu: {
            if flags & _RegDirect != 0 && countDirectSrcs(i, n) != 0 {
                return false
            }
            return true
        }

        /* the multiply-add family never encodes an immediate, cannot
         * take a constant in the second slot, only negates integers in
         * the second slot, and has no abs form */
        case CatMulAdd: {
            if flags & (RegImmed | RegFAbs | RegSAbs | RegBNot) != 0 {
                return false
            }
            if flags & (RegConst | RegRelativ) != 0 {
                if n == 1 || countDirectSrcs(i, n) != 0 {
                    return false
                }
            }
            if flags & RegSNeg != 0 && n != 1 {
                return false
            }
            if flags & RegShared != 0 && n == 2 {
                return false
            }
            return true
        }

        case CatSfu: {
            if flags & _RegDirect != 0 && countDirectSrcs(i, n) != 0 {
                return false
            }
            return true
        }

        /* samplers address registers directly; only isam encodes an
         * immediate offset in slots 1 and 2 */
        case CatTex: {
            if flags & (RegConst | RegRelativ | _RegMods) != 0 {
                return false
            }
            if flags & RegImmed != 0 {
                return i.Opc == OpIsam && (n == 1 || n == 2)
            }
            return true
        }

        case CatMem: {
            return flags & (RegConst | RegRelativ | _RegMods) == 0
        }

        case CatMeta: {
            return flags & (RegRelativ | _RegMods) == 0
        }
    }

    return false
}

// validImmediate answers whether the value itself fits the instruction's
// immediate encoding.
func validImmediate(i *Instr, iim int32) bool {
    switch i.Opc.Cat() {
        case CatAlu : return iim >= -0x8000 && iim <= 0xffff
        case CatMem : return iim >= -0x8000 && iim <= 0xffff
        case CatTex : return iim >= 0 && iim < 0x100
        default     : return true
    }
}

/* the shared float immediate lookup table; float ALU operations can only
 * encode these constants directly */
var _FlutValues = [...]float32 {
    0.0,
    0.5,
    1.0,
    2.0,
    math.E,
    math.Pi,
    1.0 / math.Pi,
    1.0 / math.Ln2 * math.Ln10, // log2(10)
    math.Ln2 / math.Ln10,       // 1/log2(10)
    math.Log2E,
    1.0 / math.Log2E,
    4.0,
}

// flut returns the lookup-table index encoding the float immediate, or -1
// when the value is not representable.
func flut(reg *Reg) int {
    v := reg.Fim()
    for n, f := range _FlutValues {
        if math.Float32bits(f) == math.Float32bits(v) {
            return n
        }
    }
    return -1
}
