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

type CursorOption uint8

const (
    CursorBeforeBlock CursorOption = iota
    CursorAfterBlock
    CursorBeforeInstr
    CursorAfterInstr
)

// Cursor names one of four insertion points in a program. All structural
// mutation goes through a cursor so passes never hand-splice lists.
type Cursor struct {
    option CursorOption
    block  *Block
    instr  *Instr
}

func BeforeBlock(bb *Block) Cursor { return Cursor { option: CursorBeforeBlock, block: bb } }
func AfterBlock(bb *Block) Cursor  { return Cursor { option: CursorAfterBlock, block: bb } }
func BeforeInstr(i *Instr) Cursor  { return Cursor { option: CursorBeforeInstr, instr: i } }
func AfterInstr(i *Instr) Cursor   { return Cursor { option: CursorAfterInstr, instr: i } }

func (self Cursor) insertionPoint() (*Block, int) {
    switch self.option {
        case CursorBeforeBlock : return self.block, 0
        case CursorAfterBlock  : return self.block, len(self.block.Instrs)
        case CursorBeforeInstr : return self.instr.Block, self.instr.Block.indexOf(self.instr)
        case CursorAfterInstr  : return self.instr.Block, self.instr.Block.indexOf(self.instr) + 1
        default                : panic("kir: invalid cursor option")
    }
}

// NewInstr allocates an instruction with empty dst/src slots and inserts
// it at the cursor. Destinations and sources are attached individually
// afterwards via NewDst/NewSrc.
func NewInstr(at Cursor, opc Opcode, ndsts int, nsrcs int) *Instr {
    bb, n := at.insertionPoint()
    i := &Instr {
        Opc    : opc,
        Dsts   : make([]*Reg, 0, ndsts),
        Srcs   : make([]*Reg, 0, nsrcs),
        Serial : bb.Shader.nextSerial(),
    }
    bb.insertAt(n, i)
    return i
}

// Builder carries a cursor that advances past every inserted instruction,
// so consecutive Build calls emit in program order.
type Builder struct {
    cur Cursor
}

func NewBuilder(at Cursor) *Builder {
    return &Builder { cur: at }
}

func (self *Builder) Build(opc Opcode, ndsts int, nsrcs int) *Instr {
    i := NewInstr(self.cur, opc, ndsts, nsrcs)
    self.cur = AfterInstr(i)
    return i
}

// CloneReg copies a register deeply enough that the clone can be mutated
// independently; the SSA def pointer is shared identity until overwritten.
func CloneReg(r *Reg) *Reg {
    c := *r
    c.Tied = nil
    return &c
}

// CloneInstr copies an instruction and its registers at the cursor. Tied
// pairs are re-linked within the clone; SSA def pointers of sources keep
// referring to the original definitions.
func CloneInstr(at Cursor, i *Instr) *Instr {
    c := NewInstr(at, i.Opc, len(i.Dsts), len(i.Srcs))
    c.Flags = i.Flags
    c.Repeat = i.Repeat
    c.Address = i.Address
    c.BarrierClass = i.BarrierClass
    c.BarrierConflict = i.BarrierConflict
    if i.Pl != nil {
        c.Pl = i.Pl.clone()
    }

    for _, d := range i.Dsts {
        r := CloneReg(d)
        r.Instr = c
        c.Dsts = append(c.Dsts, r)
    }
    for _, s := range i.Srcs {
        c.Srcs = append(c.Srcs, CloneReg(s))
    }

    /* restore tied pairing between the cloned halves */
    for di, d := range i.Dsts {
        if d.Tied == nil {
            continue
        }
        for si, s := range i.Srcs {
            if d.Tied == s {
                c.SetTied(c.Dsts[di], c.Srcs[si])
            }
        }
    }

    return c
}
