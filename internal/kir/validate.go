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
    `tlog.app/go/errors`
)

// Validate checks the structural invariants every pass relies on: operand
// back pointers, tied-register symmetry, terminator placement and CFG edge
// symmetry. Passes may leave the shader temporarily inconsistent, but it
// must validate between pipeline stages.
func Validate(sh *Shader) error {
    for _, bb := range sh.Blocks {
        if err := validateBlock(sh, bb); err != nil {
            return errors.Wrap(err, "block %d", bb.Index)
        }
    }
    return nil
}

func validateBlock(sh *Shader, bb *Block) error {
    if bb.Shader != sh {
        return errors.New("owned by a different shader")
    }

    for n, v := range bb.Instrs {
        if v.Block != bb {
            return errors.New("instruction %q has a stale block pointer", v)
        }
        if isTerminator(v) && n != len(bb.Instrs) - 1 {
            return errors.New("terminator %q is not the last instruction", v)
        }
        if err := validateInstr(v); err != nil {
            return errors.Wrap(err, "instruction %q", v)
        }
    }

    /* successor edges must be mirrored in the successor's pred list */
    for _, succ := range bb.Succs {
        if succ == nil {
            continue
        }
        found := false
        for _, p := range succ.Preds {
            if p == bb {
                found = true
                break
            }
        }
        if !found {
            return errors.New("successor block %d does not list block %d as predecessor", succ.Index, bb.Index)
        }
    }

    return nil
}

func validateInstr(i *Instr) error {
    for _, d := range i.Dsts {
        if d.Flags & RegSSA != 0 && d.Instr != i {
            return errors.New("SSA destination does not point back at its instruction")
        }
        if d.Tied != nil && d.Tied.Tied != d {
            return errors.New("tied destination is not paired mutually")
        }
    }

    for _, s := range i.Srcs {
        if s.Flags & RegSSA != 0 && s.Def == nil {
            return errors.New("SSA source has no definition")
        }
        if s.Flags & RegSSA != 0 && s.Def != nil && s.Def.Instr == nil {
            return errors.New("SSA source definition has no instruction")
        }
        if s.Tied != nil && s.Tied.Tied != s {
            return errors.New("tied source is not paired mutually")
        }
        if s.Flags & RegRelativ != 0 && s.Flags & RegImmed != 0 {
            return errors.New("operand is both relative and immediate")
        }
    }

    if i.Pl != nil {
        if err := validatePayload(i); err != nil {
            return err
        }
    }

    return nil
}

func validatePayload(i *Instr) error {
    var want bool
    switch i.Pl.(type) {
        case *FlowPayload      : want = isFlow(i)
        case *MovPayload       : want = i.Opc.Cat() == CatMov
        case *AluPayload       : want = i.Opc.Cat() == CatAlu || i.Opc.Cat() == CatMulAdd
        case *TexPayload       : want = isTex(i)
        case *MemPayload       : want = isMem(i)
        case *InputPayload     : want = i.Opc == OpMetaInput
        case *PrefetchPayload  : want = i.Opc == OpMetaTexPrefetch
        case *PushConstPayload : want = i.Opc == OpPushConstsLoad
        default                : return errors.New("unknown payload type %T", i.Pl)
    }
    if !want {
        return errors.New("payload %T does not match opcode category", i.Pl)
    }
    return nil
}
