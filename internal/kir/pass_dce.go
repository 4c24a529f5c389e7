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

// DeadCode removes instructions whose results are never read and that have
// no observable side effect. Copy propagation strands the movs it folded;
// this pass sweeps them up.
type DeadCode struct{}

func (DeadCode) String() string {
    return "DeadCode"
}

/* side-effecting instructions survive with no consumers */
func isImpure(i *Instr) bool {
    if isTerminator(i) || isKillOrDemote(i) || isBarrier(i) {
        return true
    }
    if i.BarrierClass != 0 {
        return true
    }

    switch i.Opc {
        case OpStg, OpStl, OpStc, OpAtomicAdd, OpPushConstsLoad : return true
        default                                                 : return false
    }
}

func (DeadCode) Apply(sh *Shader) bool {
    progress := false

    for {
        done := true
        used := make(map[*Instr]struct{})

        /* Phase 1: mark every SSA definition that something reads */
        for _, bb := range sh.Blocks {
            for _, v := range bb.Instrs {
                for _, s := range v.Srcs {
                    if d := ssaDef(s); d != nil {
                        used[d] = struct{}{}
                    }
                }
            }
            for _, k := range bb.Keeps {
                used[k] = struct{}{}
            }
        }

        /* Phase 2: drop everything unread and pure */
        for _, bb := range sh.Blocks {
            ins := bb.Instrs[:0]
            for _, v := range bb.Instrs {
                if _, ok := used[v]; ok || isImpure(v) {
                    ins = append(ins, v)
                } else {
                    tlog.V("dce").Printw("removed dead instruction", "instr", v)
                    v.Block = nil
                    done = false
                    progress = true
                }
            }
            bb.Instrs = ins
        }

        if done {
            break
        }
    }

    return progress
}
