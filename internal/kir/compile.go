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

// Pass is one rewrite over a whole shader. Apply reports whether anything
// changed, so fixpoint drivers know when to stop.
type Pass interface {
    Apply(*Shader) bool
}

type PassDescriptor struct {
    Pass Pass
    Name string
}

var OptPasses = [...]PassDescriptor {
    { Name: "Copy Propagation"      , Pass: CopyProp { LowerImmedToConst: true } },
    { Name: "Dead Code Elimination" , Pass: DeadCode {} },
}

const _MaxOptRounds = 16

// Optimize runs the SSA-level optimization passes to a fixpoint. Copy
// propagation exposes dead movs, dead code elimination removes them, which
// can in turn unblock further folding.
func Optimize(sh *Shader) {
    for round := 0; round < _MaxOptRounds; round++ {
        progress := false

        for _, p := range OptPasses {
            if p.Pass.Apply(sh) {
                progress = true
                tlog.V("passes").Printw("pass made progress", "pass", p.Name, "round", round)
            }
        }

        if !progress {
            return
        }
    }
}

// Schedule reorders every block post-RA against the given timing model;
// a nil model uses the default hazard parameters.
func Schedule(sh *Shader, model DelayModel) {
    PostSched { Model: model, MergedRegs: true }.Apply(sh)
}
