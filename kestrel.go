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

// Package kestrel is the machine-level backend of the shader compiler:
// a low-level instruction IR plus the pre-RA copy propagation and post-RA
// instruction scheduling passes that operate on it.
package kestrel

import (
	"github.com/kestrel-gpu/kestrel/internal/kir"
)

// Shader is a whole shader program in the backend IR.
type Shader = kir.Shader

// Block is one basic block of a Shader.
type Block = kir.Block

// Instr is a single machine-level instruction.
type Instr = kir.Instr

// Reg is one instruction operand.
type Reg = kir.Reg

// DelayModel answers pipeline timing questions for the scheduler.
type DelayModel = kir.DelayModel

// DelayParams holds the timing constants of the default model.
type DelayParams = kir.DelayParams

// NewShader creates an empty shader with the given constant pool capacity.
func NewShader(constSlots int) *Shader {
	return kir.NewShader(constSlots)
}

// Optimize runs the SSA-level optimization passes (copy propagation and
// dead code elimination) to a fixpoint.
func Optimize(sh *Shader) {
	kir.Optimize(sh)
}

// Schedule reorders every block after register allocation to hide result
// latencies. A nil model schedules against the default hazard parameters.
func Schedule(sh *Shader, model DelayModel) {
	kir.Schedule(sh, model)
}

// Validate checks the structural invariants of the IR.
func Validate(sh *Shader) error {
	return kir.Validate(sh)
}

// DefaultDelayParams returns the timing constants of the default target.
func DefaultDelayParams() *DelayParams {
	return kir.DefaultDelayParams()
}
