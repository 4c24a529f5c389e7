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
)

// Block is a basic block: an owned, ordered instruction sequence with at
// most two successor edges (the second selected by the branch condition).
// Predecessor lists are maintained by whoever adds successor edges.
type Block struct {
    Shader *Shader
    Index  int

    Instrs []*Instr

    Succs [2]*Block
    Preds []*Block

    /* control flow as the machine actually takes it, where it diverges
     * from the logical per-invocation view (if/else fallthrough) */
    PhysSuccs []*Block
    PhysPreds []*Block

    /* instructions with no data-flow consumer that must not be deleted */
    Keeps []*Instr

    /* dominance info, computed by ComputeDominators */
    ImmDom       *Block
    DomChildren  []*Block
    DomPreIndex  int
    DomPostIndex int
    LoopDepth    int
}

// AddSuccessor adds a CFG edge to the next free successor slot and keeps
// the predecessor list of the target symmetric.
func (self *Block) AddSuccessor(to *Block) {
    if self.Succs[0] == nil {
        self.Succs[0] = to
    } else if self.Succs[1] == nil {
        self.Succs[1] = to
    } else {
        panic(fmt.Sprintf("kir: block %d already has two successors", self.Index))
    }
    to.Preds = append(to.Preds, self)
}

func (self *Block) AddPhysSuccessor(to *Block) {
    self.PhysSuccs = append(self.PhysSuccs, to)
    to.PhysPreds = append(to.PhysPreds, self)
}

// AddKeep registers an instruction with no data-flow consumer (stores,
// barriers, discards) so later passes won't treat it as dead.
func (self *Block) AddKeep(i *Instr) {
    self.Keeps = append(self.Keeps, i)
}

// Terminator returns the block's trailing control-flow instruction, nil if
// the block currently has none.
func (self *Block) Terminator() *Instr {
    if n := len(self.Instrs); n == 0 {
        return nil
    } else if t := self.Instrs[n - 1]; isTerminator(t) {
        return t
    } else {
        return nil
    }
}

// TakeTerminator detaches and returns the terminator. The caller must
// reattach it before the block is considered well-formed again.
func (self *Block) TakeTerminator() *Instr {
    t := self.Terminator()
    if t != nil {
        self.Instrs = self.Instrs[:len(self.Instrs) - 1]
    }
    return t
}

func (self *Block) indexOf(i *Instr) int {
    for n, v := range self.Instrs {
        if v == i {
            return n
        }
    }
    panic(fmt.Sprintf("kir: instruction %q not in block %d", i, self.Index))
}

func (self *Block) insertAt(n int, i *Instr) {
    self.Instrs = append(self.Instrs, nil)
    copy(self.Instrs[n + 1:], self.Instrs[n:])
    self.Instrs[n] = i
    i.Block = self
}

// Remove unlinks an instruction from the block without touching its
// registers; used by DCE and the scheduler's self-mov cleanup.
func (self *Block) Remove(i *Instr) {
    n := self.indexOf(i)
    self.Instrs = append(self.Instrs[:n], self.Instrs[n + 1:]...)
    i.Block = nil
}
