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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsWellFormedShader(t *testing.T) {
	sh, bb, b := singleBlockShader(4)
	exit := sh.NewBlock()

	x := opaqueF32(b)
	y := absnegF(b, x, RegFNeg)
	aluSSA(b, OpAddF, x, y)

	jump := b.Build(OpJump, 0, 0)
	jump.Pl = &FlowPayload{Target: exit}
	bb.AddSuccessor(exit)

	require.NoError(t, Validate(sh))
}

func TestValidateRejectsStaleBlockPointer(t *testing.T) {
	sh, _, b := singleBlockShader(0)
	other := sh.NewBlock()

	i := movImm(b, TypeU32, 1)
	i.Block = other

	require.ErrorContains(t, Validate(sh), "stale block pointer")
}

func TestValidateRejectsMisplacedTerminator(t *testing.T) {
	sh, bb, b := singleBlockShader(0)
	exit := sh.NewBlock()

	jump := b.Build(OpJump, 0, 0)
	jump.Pl = &FlowPayload{Target: exit}
	bb.AddSuccessor(exit)
	movImm(b, TypeU32, 1)

	require.ErrorContains(t, Validate(sh), "not the last instruction")
}

func TestValidateRejectsDanglingSSASource(t *testing.T) {
	sh, _, b := singleBlockShader(0)

	x := opaqueF32(b)
	use := movSSA(b, x)
	use.Srcs[0].Def = nil

	require.ErrorContains(t, Validate(sh), "no definition")
}

func TestValidateRejectsBrokenTiedPair(t *testing.T) {
	sh, _, b := singleBlockShader(0)

	x := opaqueU32(b)
	y := opaqueU32(b)
	i := aluSSA(b, OpAddS, x, y)
	i.SetTied(i.Dsts[0], i.Srcs[0])
	i.Srcs[0].Tied = nil

	require.ErrorContains(t, Validate(sh), "tied destination")
}

func TestValidateRejectsAsymmetricEdge(t *testing.T) {
	sh, bb, _ := singleBlockShader(0)
	exit := sh.NewBlock()

	/* edge wired by hand, without the matching pred entry */
	bb.Succs[0] = exit

	require.ErrorContains(t, Validate(sh), "predecessor")
}

func TestValidateRejectsMismatchedPayload(t *testing.T) {
	sh, _, b := singleBlockShader(0)

	i := movImm(b, TypeU32, 1)
	i.Pl = &TexPayload{Type: TypeU32}

	require.ErrorContains(t, Validate(sh), "does not match opcode category")
}
