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

// ConstPool is the list of immediates pushed to the constant file when
// switching to this shader. Slots are reused by exact value match and run
// out silently: a failed Add just means the caller keeps the immediate.
type ConstPool struct {
    vals  []uint32
    index map[uint32]int
}

func NewConstPool(slots int) *ConstPool {
    return &ConstPool {
        vals  : make([]uint32, 0, slots),
        index : make(map[uint32]int, slots),
    }
}

func (self *ConstPool) Len() int {
    return len(self.vals)
}

func (self *ConstPool) Lookup(v uint32) (int, bool) {
    n, ok := self.index[v]
    return n, ok
}

func (self *ConstPool) Add(v uint32) (int, bool) {
    if n, ok := self.index[v]; ok {
        return n, true
    }
    if len(self.vals) == cap(self.vals) {
        return 0, false
    }
    n := len(self.vals)
    self.vals = append(self.vals, v)
    self.index[v] = n
    return n, true
}

func (self *ConstPool) Value(n int) uint32 {
    return self.vals[n]
}
