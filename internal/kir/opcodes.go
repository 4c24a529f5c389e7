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

// OpCat is the hardware execution category of an opcode. The category
// determines which payload variant an instruction carries and which
// operand forms its source slots accept.
type OpCat uint8

const (
    CatFlow    OpCat = iota // branches, jumps, kills
    CatMov                  // moves and type conversions
    CatAlu                  // two-source ALU
    CatMulAdd               // three-source multiply-add family
    CatSfu                  // special function unit (transcendentals)
    CatTex                  // texture sampling
    CatMem                  // memory loads/stores/atomics
    CatBarrier              // execution and memory barriers
    CatMeta                 // compiler-internal pseudo instructions
)

const _OpcBits = 8

type Opcode uint16

func opc(cat OpCat, id uint16) Opcode {
    return Opcode(uint16(cat) << _OpcBits | id)
}

func (self Opcode) Cat() OpCat {
    return OpCat(self >> _OpcBits)
}

const (
    OpNop    = Opcode(iota) | Opcode(CatFlow) << _OpcBits
    OpJump
    OpBr
    OpPredT
    OpPredF
    OpKill
    OpDemote
)

const (
    OpMov = Opcode(iota) | Opcode(CatMov) << _OpcBits
)

const (
    OpAddF = Opcode(iota) | Opcode(CatAlu) << _OpcBits
    OpMulF
    OpAddS
    OpSubS
    OpAndB
    OpOrB
    OpXorB
    OpNotB
    OpShlB
    OpShrB
    OpMinF
    OpMaxF
    OpCmpsF
    OpCmpsS
    OpCmpsU
    OpAbsNegF
    OpAbsNegS
    OpBaryF
    OpFlatB
)

const (
    OpMadF = Opcode(iota) | Opcode(CatMulAdd) << _OpcBits
    OpMadS
    OpSadS
)

const (
    OpRcp = Opcode(iota) | Opcode(CatSfu) << _OpcBits
    OpRsq
    OpSqrt
    OpSin
    OpCos
    OpLog2
    OpExp2
)

const (
    OpSam = Opcode(iota) | Opcode(CatTex) << _OpcBits
    OpSamB
    OpIsam
    OpGetLod
)

const (
    OpLdg = Opcode(iota) | Opcode(CatMem) << _OpcBits
    OpStg
    OpLdl
    OpStl
    OpLdlv
    OpLdc
    OpStc
    OpAtomicAdd
    OpPushConstsLoad
)

const (
    OpBar = Opcode(iota) | Opcode(CatBarrier) << _OpcBits
    OpFence
)

const (
    OpMetaInput = Opcode(iota) | Opcode(CatMeta) << _OpcBits
    OpMetaCollect
    OpMetaSplit
    OpMetaPhi
    OpMetaTexPrefetch
)

var _OpNames = map[Opcode]string {
    OpNop             : "nop",
    OpJump            : "jump",
    OpBr              : "br",
    OpPredT           : "predt",
    OpPredF           : "predf",
    OpKill            : "kill",
    OpDemote          : "demote",
    OpMov             : "mov",
    OpAddF            : "add.f",
    OpMulF            : "mul.f",
    OpAddS            : "add.s",
    OpSubS            : "sub.s",
    OpAndB            : "and.b",
    OpOrB             : "or.b",
    OpXorB            : "xor.b",
    OpNotB            : "not.b",
    OpShlB            : "shl.b",
    OpShrB            : "shr.b",
    OpMinF            : "min.f",
    OpMaxF            : "max.f",
    OpCmpsF           : "cmps.f",
    OpCmpsS           : "cmps.s",
    OpCmpsU           : "cmps.u",
    OpAbsNegF         : "absneg.f",
    OpAbsNegS         : "absneg.s",
    OpBaryF           : "bary.f",
    OpFlatB           : "flat.b",
    OpMadF            : "mad.f",
    OpMadS            : "mad.s",
    OpSadS            : "sad.s",
    OpRcp             : "rcp",
    OpRsq             : "rsq",
    OpSqrt            : "sqrt",
    OpSin             : "sin",
    OpCos             : "cos",
    OpLog2            : "log2",
    OpExp2            : "exp2",
    OpSam             : "sam",
    OpSamB            : "sam.b",
    OpIsam            : "isam",
    OpGetLod          : "getlod",
    OpLdg             : "ldg",
    OpStg             : "stg",
    OpLdl             : "ldl",
    OpStl             : "stl",
    OpLdlv            : "ldlv",
    OpLdc             : "ldc",
    OpStc             : "stc",
    OpAtomicAdd       : "atomic.add",
    OpPushConstsLoad  : "push_consts",
    OpBar             : "bar",
    OpFence           : "fence",
    OpMetaInput       : "meta:input",
    OpMetaCollect     : "meta:collect",
    OpMetaSplit       : "meta:split",
    OpMetaPhi         : "meta:phi",
    OpMetaTexPrefetch : "meta:tex_prefetch",
}

func (self Opcode) String() string {
    if s, ok := _OpNames[self]; ok {
        return s
    } else {
        return "op?"
    }
}

/* Numeric operand types. The low bit selects half width within a domain so
 * fullType() can strip it. */

type Type uint8

const (
    TypeF32 Type = iota
    TypeF16
    TypeU32
    TypeU16
    TypeS32
    TypeS16
    TypeU8
)

func (self Type) String() string {
    switch self {
        case TypeF32 : return "f32"
        case TypeF16 : return "f16"
        case TypeU32 : return "u32"
        case TypeU16 : return "u16"
        case TypeS32 : return "s32"
        case TypeS16 : return "s16"
        case TypeU8  : return "u8"
        default      : return "t?"
    }
}

func fullType(t Type) Type {
    switch t {
        case TypeF16        : return TypeF32
        case TypeU16, TypeU8: return TypeU32
        case TypeS16        : return TypeS32
        default             : return t
    }
}

func typeSize(t Type) int {
    switch t {
        case TypeF32, TypeU32, TypeS32 : return 32
        case TypeU8                    : return 8
        default                        : return 16
    }
}

func typeFloat(t Type) bool { return t == TypeF32 || t == TypeF16 }
func typeUint(t Type) bool  { return t == TypeU32 || t == TypeU16 || t == TypeU8 }
func typeSint(t Type) bool  { return t == TypeS32 || t == TypeS16 }
