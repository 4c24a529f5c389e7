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
    `strings`
)

func (self *Block) String() string {
    ni := len(self.Instrs)
    ss := make([]string, 0, ni + 1)

    /* block header with CFG edges */
    var succ []string
    for _, s := range self.Succs {
        if s != nil {
            succ = append(succ, fmt.Sprintf("bb_%d", s.Index))
        }
    }
    ss = append(ss, fmt.Sprintf("bb_%d: -> {%s}", self.Index, strings.Join(succ, ", ")))

    /* print every instruction */
    for n, v := range self.Instrs {
        ss = append(ss, fmt.Sprintf("%06x |     %s", n, v))
    }

    /* join them together */
    return strings.Join(ss, "\n")
}

func (self *Shader) String() string {
    ss := make([]string, 0, len(self.Blocks))

    /* dump all the blocks */
    for _, bb := range self.Blocks {
        ss = append(ss, bb.String())
    }

    /* join them together */
    return fmt.Sprintf(
        "Shader {\n%s\n}",
        strings.Join(ss, "\n"),
    )
}
