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

/** This is an implementation of the Lengauer-Tarjan algorithm described in
 *  https://doi.org/10.1145%2F357062.357071
 */

package kir

type _LtNode struct {
    semi     int
    node     *Block
    dom      *_LtNode
    label    *_LtNode
    parent   *_LtNode
    ancestor *_LtNode
    pred     []*_LtNode
    bucket   map[*_LtNode]struct{}
}

type _LengauerTarjan struct {
    nodes  []*_LtNode
    vertex map[int]int
}

func newLengauerTarjan() *_LengauerTarjan {
    return &_LengauerTarjan {
        vertex: make(map[int]int),
    }
}

func (self *_LengauerTarjan) dfs(bb *Block) {
    i := len(self.nodes)
    self.vertex[bb.Index] = i

    /* create a new node */
    p := &_LtNode {
        semi   : i,
        node   : bb,
        bucket : make(map[*_LtNode]struct{}),
    }

    /* add to node list */
    p.label = p
    self.nodes = append(self.nodes, p)

    /* traverse the successors */
    for _, w := range bb.Succs {
        if w == nil {
            continue
        }
        idx, ok := self.vertex[w.Index]

        /* not visited yet */
        if !ok {
            self.dfs(w)
            idx = self.vertex[w.Index]
            self.nodes[idx].parent = p
        }

        /* add predecessors */
        q := self.nodes[idx]
        q.pred = append(q.pred, p)
    }
}

func (self *_LengauerTarjan) eval(p *_LtNode) *_LtNode {
    if p.ancestor == nil {
        return p
    } else {
        self.compress(p)
        return p.label
    }
}

func (self *_LengauerTarjan) link(p *_LtNode, q *_LtNode) {
    q.ancestor = p
}

func (self *_LengauerTarjan) compress(p *_LtNode) {
    if p.ancestor.ancestor != nil {
        self.compress(p.ancestor)
        if p.label.semi > p.ancestor.label.semi { p.label = p.ancestor.label }
        p.ancestor = p.ancestor.ancestor
    }
}

// ComputeDominators fills in ImmDom, DomChildren, the dominator-tree DFS
// pre/post indices and the loop-nesting depth of every reachable block.
// The entry block is Blocks[0].
func ComputeDominators(sh *Shader) {
    for _, bb := range sh.Blocks {
        bb.ImmDom = nil
        bb.DomChildren = bb.DomChildren[:0]
        bb.LoopDepth = 0
    }

    /* Step 1: Carry out a depth-first search of the problem graph. Number the vertices
     * from 1 to n as they are reached during the search. Initialize the variables used
     * in succeeding steps. */
    lt := newLengauerTarjan()
    lt.dfs(sh.Blocks[0])

    /* perform Step 2 and Step 3 simultaneously */
    for i := len(lt.nodes) - 1; i > 0; i-- {
        p := lt.nodes[i]
        q := (*_LtNode)(nil)

        /* Step 2: Compute the semidominators of all vertices by applying Theorem 4.
         * Carry out the computation vertex by vertex in decreasing order by number. */
        for _, v := range p.pred {
            q = lt.eval(v)
            if q.semi < p.semi {
                p.semi = q.semi
            }
        }

        /* link the ancestor */
        lt.link(p.parent, p)
        lt.nodes[p.semi].bucket[p] = struct{}{}

        /* Step 3: Implicitly define the immediate dominator of each vertex by applying Corollary 1 */
        for v := range p.parent.bucket {
            if q = lt.eval(v); q.semi < v.semi {
                v.dom = q
            } else {
                v.dom = p.parent
            }
        }

        /* clear the bucket */
        for v := range p.parent.bucket {
            delete(p.parent.bucket, v)
        }
    }

    /* Step 4: Explicitly define the immediate dominator of each vertex, carrying out the
     * computation vertex by vertex in increasing order by number. */
    for _, p := range lt.nodes[1:] {
        if p.dom.node.Index != lt.nodes[p.semi].node.Index {
            p.dom = p.dom.dom
        }
    }

    /* attach the dominator relations to the blocks */
    for _, p := range lt.nodes[1:] {
        p.node.ImmDom = p.dom.node
        p.dom.node.DomChildren = append(p.dom.node.DomChildren, p.node)
    }

    /* DFS pre/post indices over the dominator tree */
    idx := 0
    var walk func(bb *Block)
    walk = func(bb *Block) {
        bb.DomPreIndex = idx
        idx++
        for _, c := range bb.DomChildren {
            walk(c)
        }
        bb.DomPostIndex = idx
        idx++
    }
    walk(sh.Blocks[0])

    computeLoopDepth(sh)
}

func dominates(a *Block, b *Block) bool {
    return a.DomPreIndex <= b.DomPreIndex && b.DomPostIndex <= a.DomPostIndex
}

/* natural loop depth: every back edge u->h with h dominating u puts the
 * blocks reachable backwards from u up to h one level deeper */
func computeLoopDepth(sh *Shader) {
    for _, bb := range sh.Blocks {
        for _, s := range bb.Succs {
            if s == nil || !dominates(s, bb) {
                continue
            }

            /* collect the loop body by walking predecessors from the latch */
            body := map[*Block]struct{} { s: {} }
            stack := []*Block { bb }

            for len(stack) != 0 {
                v := stack[len(stack) - 1]
                stack = stack[:len(stack) - 1]
                if _, ok := body[v]; ok {
                    continue
                }
                body[v] = struct{}{}
                stack = append(stack, v.Preds...)
            }

            for v := range body {
                v.LoopDepth++
            }
        }
    }
}
