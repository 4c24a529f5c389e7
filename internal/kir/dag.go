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
    `github.com/oleiade/lane`
)

// DagEdge is a scheduling constraint: To must issue after the owning node,
// separated by at least Data slots.
type DagEdge struct {
    To   *DagNode
    Data int
}

// DagNode is one unscheduled instruction plus its scheduling metadata.
type DagNode struct {
    Instr *Instr
    Edges []DagEdge

    /* incoming constraints not yet released */
    NumParents int

    /* critical-path length to the end of the block, soft latencies
     * included */
    MaxDelay int

    /* earliest issue slot at which all scheduled producers are ready */
    EarliestIP int

    /* transitively consumes an outstanding (sy) / (ss) result */
    HasSySrc bool
    HasSsSrc bool
}

// Dag is the per-block dependency graph the scheduler picks from. Nodes
// and head lists preserve insertion order, so scheduling is deterministic.
type Dag struct {
    nodes []*DagNode
    heads []*DagNode
}

func NewDag() *Dag {
    return new(Dag)
}

func (self *Dag) NewNode(i *Instr) *DagNode {
    n := &DagNode { Instr: i }
    self.nodes = append(self.nodes, n)
    return n
}

func (self *Dag) Nodes() []*DagNode {
    return self.nodes
}

// Heads returns the current ready set: nodes all of whose producers have
// been scheduled already.
func (self *Dag) Heads() []*DagNode {
    return self.heads
}

// AddEdgeMax adds the constraint parent-before-child. A duplicate edge is
// merged by keeping the larger slot distance.
func (self *Dag) AddEdgeMax(parent *DagNode, child *DagNode, data int) {
    for n, e := range parent.Edges {
        if e.To == child {
            if data > e.Data {
                parent.Edges[n].Data = data
            }
            return
        }
    }
    parent.Edges = append(parent.Edges, DagEdge { To: child, Data: data })
    child.NumParents++
}

// InitHeads seeds the ready set once all edges are in place.
func (self *Dag) InitHeads() {
    self.heads = self.heads[:0]
    for _, n := range self.nodes {
        if n.NumParents == 0 {
            self.heads = append(self.heads, n)
        }
    }
}

// PruneHead removes a ready node and releases its children, appending any
// that became ready to the head list.
func (self *Dag) PruneHead(n *DagNode) {
    if n.NumParents != 0 {
        panic("kir: scheduling an instruction before its dependencies")
    }

    for i, h := range self.heads {
        if h == n {
            self.heads = append(self.heads[:i], self.heads[i + 1:]...)
            break
        }
    }

    for _, e := range n.Edges {
        e.To.NumParents--
        if e.To.NumParents == 0 {
            self.heads = append(self.heads, e.To)
        }
    }
}

/* depth-first traversal frame; expanded frames fire the callback */
type _DagFrame struct {
    node     *DagNode
    expanded bool
}

// TraverseBottomUp visits every node reachable from the heads, children
// strictly before parents, so a callback can fold child metadata upward.
func (self *Dag) TraverseBottomUp(visit func(*DagNode)) {
    st := lane.NewStack()
    seen := make(map[*DagNode]bool, len(self.nodes))

    for _, h := range self.heads {
        st.Push(&_DagFrame { node: h })
    }

    for !st.Empty() {
        f := st.Pop().(*_DagFrame)

        if f.expanded {
            visit(f.node)
            continue
        }
        if seen[f.node] {
            continue
        }

        seen[f.node] = true
        f.expanded = true
        st.Push(f)

        for _, e := range f.node.Edges {
            if !seen[e.To] {
                st.Push(&_DagFrame { node: e.To })
            }
        }
    }
}
