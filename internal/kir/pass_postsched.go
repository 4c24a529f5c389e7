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

    `github.com/davecgh/go-spew/spew`
    `tlog.app/go/tlog`
)

// PostSched reorders each block after register allocation to hide result
// latencies, using the DelayModel for the target's timing. Instructions
// are picked greedily from the ready set of a dependency DAG; the relative
// order of conflicting register accesses is always preserved.
type PostSched struct {
    Model      DelayModel
    MergedRegs bool
}

func (self PostSched) String() string {
    return "PostSched"
}

/* register-file classification for dependency tracking; offsets returned
 * by regFileOffset are in half-register units so that aliasing half and
 * full registers collide */

type _RegFile uint8

const (
    _FileFull _RegFile = iota
    _FileHalf
    _FileShared
    _FileNonGpr
)

const (
    _FileFullSize   = 2 * int(_RegSharedStart)
    _FileHalfSize   = int(_RegSharedStart)
    _FileSharedSize = 2 * int(_RegNonGprStart - _RegSharedStart)
    _FileNonGprSize = 2 * 8
)

func regFileOffset(reg *Reg, num uint16, merged bool) (_RegFile, int) {
    if reg.Flags & (RegConst | RegImmed) != 0 {
        panic("kir: constants and immediates have no register file")
    }

    size := reg.ElemSize()
    switch {
        case !reg.IsGpr()                        : return _FileNonGpr, int(num - _RegNonGprStart) * size
        case reg.Flags & RegShared != 0          : return _FileShared, int(num - _RegSharedStart) * size
        case merged || reg.Flags & RegHalf == 0  : return _FileFull, int(num) * size
        default                                  : return _FileHalf, int(num)
    }
}

type _SchedCtx struct {
    sh     *Shader
    model  DelayModel
    merged bool

    /* current block under scheduling */
    block *Block
    dag   *Dag
    nodes map[*Instr]*DagNode

    /* block-entry wait state, threaded along CFG edges */
    states map[*Block]*LegalizeState
    st     *LegalizeState

    remaining int
}

/* last writer (or reader, in the reverse pass) of every scalar register
 * component, per file */
type _DepsState struct {
    ctx     *_SchedCtx
    forward bool

    full   []*DagNode
    half   []*DagNode
    shared []*DagNode
    nongpr []*DagNode
}

func newDepsState(ctx *_SchedCtx, forward bool) *_DepsState {
    return &_DepsState {
        ctx     : ctx,
        forward : forward,
        full    : make([]*DagNode, _FileFullSize),
        half    : make([]*DagNode, _FileHalfSize),
        shared  : make([]*DagNode, _FileSharedSize),
        nongpr  : make([]*DagNode, _FileNonGprSize),
    }
}

func (self *_DepsState) file(f _RegFile) []*DagNode {
    switch f {
        case _FileFull   : return self.full
        case _FileHalf   : return self.half
        case _FileShared : return self.shared
        case _FileNonGpr : return self.nongpr
        default          : panic("kir: invalid register file")
    }
}

func (self *_DepsState) addDep(dep *DagNode, node *DagNode, d int) {
    if dep == nil {
        return
    }
    if dep == node {
        panic(fmt.Sprintf("kir: instruction %q depends on itself", node.Instr))
    }

    if self.forward {
        self.ctx.dag.AddEdgeMax(dep, node, d)
    } else {
        self.ctx.dag.AddEdgeMax(node, dep, 0)
    }
}

/* one scalar component: edge against the recorded access, then record
 * ourselves if this is a write (srcN < 0) */
func (self *_DepsState) addSingleRegDep(node *DagNode, slot []*DagNode, off int, srcN int) {
    dep := slot[off]
    d := 0

    if srcN >= 0 && dep != nil {
        if self.forward {
            d = self.ctx.model.DelaySlots(dep.Instr, node.Instr, srcN, false)
            if isSyProducer(dep.Instr) {
                node.HasSySrc = true
            }
            if needsSs(dep.Instr) {
                node.HasSsSrc = true
            }
        } else {
            /* node reads the register dep will overwrite; if node holds
             * on to its sources past issue, dep must sync as if it read
             * an (ss) result */
            if isWarHazardProducer(node.Instr) {
                dep.HasSsSrc = true
            }
        }
    }

    self.addDep(dep, node, d)
    if srcN < 0 {
        slot[off] = node
    }
}

func (self *_DepsState) addRegDep(node *DagNode, reg *Reg, num uint16, srcN int) {
    f, off := regFileOffset(reg, num, self.merged())
    slot := self.file(f)
    size := reg.ElemSize()

    for i := 0; i < size; i++ {
        self.addSingleRegDep(node, slot, off + i, srcN)
    }
}

func (self *_DepsState) merged() bool {
    return self.ctx.merged
}

// calculateDeps adds ordering edges between this instruction and every
// tracked prior (or later) access to the registers it touches. Sources
// first, then destinations update the writer tables, so a read-after-write
// of the same register within one instruction sees the previous writer.
func (self *_DepsState) calculateDeps(node *DagNode) {
    for srcN, reg := range node.Instr.Srcs {
        if reg.Flags & (RegConst | RegImmed | RegDummy) != 0 {
            continue
        }

        if reg.Flags & RegRelativ != 0 {
            /* the whole array is potentially read */
            for j := uint16(0); j < reg.Size; j++ {
                self.addRegDep(node, reg, reg.Array.Base + j, srcN)
            }
        } else {
            for b := uint16(0); b < 16; b++ {
                if reg.Wrmask & (1 << b) != 0 {
                    self.addRegDep(node, reg, reg.Num + b, srcN)
                }
            }
        }
    }

    for _, reg := range node.Instr.Dsts {
        if reg.Wrmask == 0 || reg.Flags & RegDummy != 0 {
            continue
        }

        if reg.Flags & RegRelativ != 0 {
            for j := uint16(0); j < reg.Size; j++ {
                self.addRegDep(node, reg, reg.Array.Base + j, -1)
            }
        } else {
            for b := uint16(0); b < 16; b++ {
                if reg.Wrmask & (1 << b) != 0 {
                    self.addRegDep(node, reg, reg.Num + b, -1)
                }
            }
        }
    }
}

func (self *_SchedCtx) buildDag(unscheduled []*Instr) {
    self.dag = NewDag()
    self.nodes = make(map[*Instr]*DagNode, len(unscheduled))

    for _, v := range unscheduled {
        self.nodes[v] = self.dag.NewNode(v)
    }

    /* forward pass: read-after-write with real latencies, write-after-write
     * ordering */
    fwd := newDepsState(self, true)
    for _, v := range unscheduled {
        fwd.calculateDeps(self.nodes[v])
    }

    /* reverse pass: write-after-read ordering, zero latency */
    rev := newDepsState(self, false)
    for n := len(unscheduled) - 1; n >= 0; n-- {
        rev.calculateDeps(self.nodes[unscheduled[n]])
    }

    /* explicit ordering edges, plus the fixed classes: every input before
     * any kill, every kill before later texture/memory access */
    var kills []*DagNode
    var inputs []*DagNode

    for _, v := range unscheduled {
        n := self.nodes[v]

        for _, dep := range v.Deps {
            if dep == nil || dep.Block != v.Block {
                continue
            }
            if dep.Flags & InstrUnused != 0 {
                continue
            }
            if dn, ok := self.nodes[dep]; ok {
                self.dag.AddEdgeMax(dn, n, 0)
            }
        }

        switch {
            case isInput(v): {
                inputs = append(inputs, n)
            }

            case isKillOrDemote(v): {
                for _, in := range inputs {
                    self.dag.AddEdgeMax(in, n, 0)
                }
                kills = append(kills, n)
            }

            case isTex(v) || isMem(v): {
                for _, k := range kills {
                    self.dag.AddEdgeMax(k, n, 0)
                }
            }
        }
    }

    self.dag.InitHeads()

    /* critical-path lengths, soft latencies included so long-latency
     * producers bubble up */
    self.dag.TraverseBottomUp(func(n *DagNode) {
        maxDelay := 0

        for _, e := range n.Edges {
            delay := e.Data

            if e.To.HasSySrc && isSyProducer(n.Instr) {
                if d := self.model.SoftSyDelay(n.Instr); d > delay {
                    delay = d
                }
            }
            if e.To.HasSsSrc && needsSs(n.Instr) {
                if d := self.model.SoftSsDelay(n.Instr); d > delay {
                    delay = d
                }
            }

            if v := e.To.MaxDelay + delay; v > maxDelay {
                maxDelay = v
            }
        }

        if maxDelay > n.MaxDelay {
            n.MaxDelay = maxDelay
        }
    })
}

/* issue slots the block would stall if the node were issued now */
func (self *_SchedCtx) nodeDelay(n *DagNode) int {
    if d := n.EarliestIP - self.st.Cycle; d > 0 {
        return d
    }
    return 0
}

/* like nodeDelay, but charging the effective latency of outstanding (sy)
 * and (ss) results this node would wait on */
func (self *_SchedCtx) nodeDelaySoft(n *DagNode) int {
    d := self.nodeDelay(n)
    if n.HasSsSrc && self.st.SsDelay > d {
        d = self.st.SsDelay
    }
    if n.HasSySrc && self.st.SyDelay > d {
        d = self.st.SyDelay
    }
    return d
}

func (self *_SchedCtx) schedule(instr *Instr) {
    n := self.nodes[instr]
    st := self.st

    delay := self.nodeDelay(n)
    if delay > self.model.Params().MaxHardDelay {
        panic(fmt.Sprintf("kir: hard delay %d on %q exceeds the pipeline depth", delay, instr))
    }

    /* attach the sync flags the instruction needs at this position */
    instr.Flags &^= InstrSs | InstrSy
    if n.HasSsSrc && st.PendingSs {
        instr.Flags |= InstrSs
        st.PendingSs = false
    }
    if n.HasSySrc && st.PendingSy {
        instr.Flags |= InstrSy
        st.PendingSy = false
    }

    tlog.V("psched").Printw("schedule", "instr", instr, "delay", delay, "cycle", st.Cycle)

    self.block.Instrs = append(self.block.Instrs, instr)
    instr.Block = self.block
    self.dag.PruneHead(n)
    self.remaining--

    /* issue and release the children; a repeated instruction occupies one
     * issue slot per iteration and its result lands after the last one */
    st.Cycle += delay
    for _, e := range n.Edges {
        if ip := st.Cycle + int(instr.Repeat) + e.Data; ip > e.To.EarliestIP {
            e.To.EarliestIP = ip
        }
    }
    st.Cycle += 1 + int(instr.Repeat)

    if isMeta(instr) && instr.Opc != OpMetaTexPrefetch {
        return
    }

    if isSsProducer(instr) {
        st.SsDelay = self.model.SoftSsDelay(instr)
        st.PendingSs = true
    } else if instr.Flags & InstrSs != 0 {
        st.SsDelay = 0
    } else if st.SsDelay > 0 {
        st.SsDelay--
    }

    if isSyProducer(instr) {
        st.SyDelay = self.model.SoftSyDelay(instr)
        st.PendingSy = true
    } else if instr.Flags & InstrSy != 0 {
        st.SyDelay = 0
    } else if st.SyDelay > 0 {
        st.SyDelay--
    }
}

func (self *_SchedCtx) dumpState() {
    if !tlog.If("psched_dump") {
        return
    }
    for _, n := range self.dag.Heads() {
        tlog.Printw("head", "instr", n.Instr.String(),
            "max_delay", n.MaxDelay,
            "delay", self.nodeDelay(n),
            "delay_soft", self.nodeDelaySoft(n),
            "node", spew.Sdump(n))
    }
}

// choose picks the next instruction from the ready set, in decreasing
// priority: meta bookkeeping, varying inputs, stall-free discards,
// issue-ready long-latency producers, anything with an acceptably small
// soft delay, and finally whatever leads the longest remaining path.
func (self *_SchedCtx) choose() *Instr {
    var chosen *DagNode

    self.dumpState()

    for _, n := range self.dag.Heads() {
        if !isMeta(n.Instr) {
            continue
        }
        if chosen == nil || chosen.MaxDelay < n.MaxDelay {
            chosen = n
        }
    }
    if chosen != nil {
        return chosen.Instr
    }

    /* the last varying fetch frees input storage for the next warp, so
     * inputs go as early as possible */
    for _, n := range self.dag.Heads() {
        if !isInput(n.Instr) {
            continue
        }
        if chosen == nil || chosen.MaxDelay < n.MaxDelay {
            chosen = n
        }
    }
    if chosen != nil {
        return chosen.Instr
    }

    /* discards cut all following work, but never at the cost of a stall */
    for _, n := range self.dag.Heads() {
        if self.nodeDelay(n) > 0 {
            continue
        }
        if !isKillOrDemote(n.Instr) {
            continue
        }
        if chosen == nil || chosen.MaxDelay < n.MaxDelay {
            chosen = n
        }
    }
    if chosen != nil {
        return chosen.Instr
    }

    /* issue expensive instructions the moment they are ready so their
     * latency overlaps the rest of the block */
    for _, n := range self.dag.Heads() {
        if self.nodeDelaySoft(n) > 0 {
            continue
        }
        if !isSsProducer(n.Instr) && !isSyProducer(n.Instr) {
            continue
        }
        if chosen == nil || chosen.MaxDelay < n.MaxDelay {
            chosen = n
        }
    }
    if chosen != nil {
        return chosen.Instr
    }

    /* prefer a few nops now over more nops later; among equal stalls the
     * longer remaining path wins */
    chosenDelay := 0
    for _, n := range self.dag.Heads() {
        d := self.nodeDelaySoft(n)

        if d > self.model.Params().SoftThreshold {
            continue
        }

        if chosen == nil || d < chosenDelay {
            chosen = n
            chosenDelay = d
            continue
        }
        if d > chosenDelay {
            continue
        }
        if chosen.MaxDelay < n.MaxDelay {
            chosen = n
            chosenDelay = d
        }
    }
    if chosen != nil {
        return chosen.Instr
    }

    for _, n := range self.dag.Heads() {
        if chosen == nil || chosen.MaxDelay < n.MaxDelay {
            chosen = n
        }
    }
    if chosen != nil {
        return chosen.Instr
    }

    return nil
}

func (self *_SchedCtx) schedBlock(bb *Block) {
    self.block = bb
    self.st = new(LegalizeState)
    self.states[bb] = self.st

    /* worst case over all already-scheduled predecessors */
    for _, pred := range bb.Preds {
        if ps, ok := self.states[pred]; ok {
            self.st.MergeMax(ps)
        }
    }

    /* the terminator stays last; pull it out rather than modeling it */
    terminator := bb.TakeTerminator()

    unscheduled := make([]*Instr, 0, len(bb.Instrs))
    for _, v := range bb.Instrs {
        if v.Opc != OpNop {
            unscheduled = append(unscheduled, v)
        }
    }
    bb.Instrs = bb.Instrs[:0]
    self.remaining = len(unscheduled)

    self.buildDag(unscheduled)

    /* fixed prologue phases: value-receiving metas first, then texture
     * prefetches (which may overwrite dead inputs), then the push-const
     * load */
    for _, v := range unscheduled {
        if v.Opc == OpMetaInput {
            self.schedule(v)
        }
    }
    for _, v := range unscheduled {
        if v.Opc == OpMetaTexPrefetch {
            self.schedule(v)
        }
    }
    for _, v := range unscheduled {
        if v.Opc == OpPushConstsLoad {
            self.schedule(v)
        }
    }

    for self.remaining > 0 {
        instr := self.choose()
        if instr == nil {
            panic("kir: ready set is empty with instructions remaining")
        }
        self.schedule(instr)
    }

    self.dag = nil
    self.nodes = nil

    if terminator != nil {
        bb.Instrs = append(bb.Instrs, terminator)
    }
}

func isSelfMov(i *Instr) bool {
    if !isSameTypeMov(i) {
        return false
    }
    if i.Dsts[0].Num != i.Srcs[0].Num {
        return false
    }
    if i.Dsts[0].Flags & RegRelativ != 0 {
        return false
    }
    if i.Srcs[0].Flags & (RegConst | RegImmed | RegRelativ | _RegMods) != 0 {
        return false
    }
    return true
}

// cleanupSelfMovs drops in-place movs (mov rN.x, rN.x) that earlier stages
// could not prove removable, and unhooks them from any false dependencies
// so the DAG never sees them.
func cleanupSelfMovs(sh *Shader) {
    for _, bb := range sh.Blocks {
        for _, v := range bb.Instrs {
            for n, dep := range v.Deps {
                if dep != nil && isSelfMov(dep) {
                    v.Deps[n] = nil
                }
            }
        }

        ins := bb.Instrs[:0]
        for _, v := range bb.Instrs {
            if isSelfMov(v) {
                tlog.V("psched").Printw("dropped self mov", "instr", v)
                v.Block = nil
            } else {
                ins = append(ins, v)
            }
        }
        bb.Instrs = ins
    }
}

func (self PostSched) Apply(sh *Shader) bool {
    model := self.Model
    if model == nil {
        model = NewHazardModel(nil)
    }

    ctx := _SchedCtx {
        sh     : sh,
        model  : model,
        merged : self.MergedRegs,
        states : make(map[*Block]*LegalizeState, len(sh.Blocks)),
    }

    cleanupSelfMovs(sh)

    for _, bb := range sh.Blocks {
        ctx.schedBlock(bb)
    }

    return true
}
