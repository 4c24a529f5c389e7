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

// DelayParams holds the pipeline timing constants of the target. All
// values are in instruction issue slots.
type DelayParams struct {
    /* scheduling heuristic: soft delays at or below this are considered
     * cheap enough to eat rather than reorder around */
    SoftThreshold int

    /* the longest stall the hardware resolves without a sync flag; also
     * the delay charged for address-register and alu->non-alu hazards */
    MaxHardDelay int

    /* effective slots until a special-function result is consumable
     * without an (ss) stall */
    SfuDelay int

    /* effective slots until a shared-register write is visible */
    SharedDelay int

    /* effective slots until a texture fetch result lands, indexed by the
     * number of destination components minus one */
    TexDelay [4]int

    /* effective slots until a global memory load lands */
    MemDelay int

    /* alu -> alu forwarding latency */
    AluLatency int
}

func DefaultDelayParams() *DelayParams {
    return &DelayParams {
        SoftThreshold : 3,
        MaxHardDelay  : 6,
        SfuDelay      : 10,
        SharedDelay   : 6,
        TexDelay      : [4]int { 51, 53, 62, 64 },
        MemDelay      : 109,
        AluLatency    : 3,
    }
}

// LegalizeState is the per-block wait state the scheduler threads through
// the CFG: the block-local issue slot counter, how many slots remain until
// all outstanding (ss) and (sy) results have landed, and whether any such
// result is still unconsumed.
type LegalizeState struct {
    /* issue slot within the current block, stalls included */
    Cycle int

    SsDelay int
    SyDelay int

    /* an (ss) / (sy) producer issued with no sync flag consumed yet */
    PendingSs bool
    PendingSy bool
}

// MergeMax folds a predecessor's exit state into a block's entry state.
// Counters merge componentwise to the worst case over all paths; the slot
// counter restarts per block.
func (self *LegalizeState) MergeMax(pred *LegalizeState) {
    if pred.SsDelay > self.SsDelay {
        self.SsDelay = pred.SsDelay
    }
    if pred.SyDelay > self.SyDelay {
        self.SyDelay = pred.SyDelay
    }
    self.PendingSs = self.PendingSs || pred.PendingSs
    self.PendingSy = self.PendingSy || pred.PendingSy
}

// DelayModel answers timing questions for the scheduler. The scheduler is
// generic over it so tests can substitute a fixed-latency model.
type DelayModel interface {
    // DelaySlots is the number of issue slots that must separate the
    // producer from the consumer reading it through source slot srcN.
    // With soft set, stalls normally hidden behind sync flags are
    // charged at their effective latency instead of zero.
    DelaySlots(producer *Instr, consumer *Instr, srcN int, soft bool) int

    // SoftSsDelay is the effective latency of an (ss)-producing result.
    SoftSsDelay(producer *Instr) int

    // SoftSyDelay is the effective latency of a (sy)-producing result.
    SoftSyDelay(producer *Instr) int

    Params() *DelayParams
}

// HazardModel is the default DelayModel.
type HazardModel struct {
    P *DelayParams
}

func NewHazardModel(p *DelayParams) *HazardModel {
    if p == nil {
        p = DefaultDelayParams()
    }
    return &HazardModel { P: p }
}

func (self *HazardModel) Params() *DelayParams {
    return self.P
}

func (self *HazardModel) SoftSsDelay(producer *Instr) int {
    if isSfu(producer) || isLocalMemLoad(producer) {
        return self.P.SfuDelay
    }
    return self.P.SharedDelay
}

func (self *HazardModel) SoftSyDelay(producer *Instr) int {
    if !isTex(producer) && producer.Opc != OpMetaTexPrefetch {
        return self.P.MemDelay
    }

    n := 1
    if len(producer.Dsts) != 0 {
        n = producer.Dsts[0].Elems()
    }
    if n < 1 {
        n = 1
    }
    if n > len(self.P.TexDelay) {
        n = len(self.P.TexDelay)
    }
    return self.P.TexDelay[n - 1]
}

func (self *HazardModel) DelaySlots(producer *Instr, consumer *Instr, srcN int, soft bool) int {
    /* ordering-only edges carry no latency */
    if srcN >= len(consumer.Srcs) {
        return 0
    }
    if isMeta(producer) || isMeta(consumer) {
        return 0
    }

    /* address-register writes drain the fetch pipeline */
    if writesAddr(producer) {
        return self.P.MaxHardDelay
    }

    /* (ss)/(sy) results stall on the sync flag, not on delay slots; the
     * soft view charges their effective latency so the scheduler tries
     * to cover it */
    if soft && isSsProducer(producer) {
        return self.SoftSsDelay(producer)
    }
    if isSsProducer(producer) || isSyProducer(producer) {
        return 0
    }

    /* alu feeding a non-alu consumer pays the worst-case distance */
    if isFlow(consumer) || isSfu(consumer) || isTex(consumer) || isMem(consumer) {
        return self.P.MaxHardDelay
    }

    /* reading a full register as half (or vice versa) costs two extra
     * slots in merged-register mode */
    penalty := 0
    if len(producer.Dsts) != 0 &&
       producer.Dsts[0].Flags & RegHalf != consumer.Srcs[srcN].Flags & RegHalf {
        penalty = 2
    }

    /* the third source of a multiply-add is not needed on the first
     * cycle of execution */
    if consumer.Opc.Cat() == CatMulAdd && srcN == 2 {
        return 1 + penalty
    }
    return self.P.AluLatency + penalty
}
