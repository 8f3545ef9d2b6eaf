// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package typeutil

import "sync"

// Set 是非并发安全的集合，零值不可用，请使用 NewSet 或 make 创建。
type Set[T comparable] map[T]struct{}

func NewSet[T comparable](elements ...T) Set[T] {
	set := make(Set[T], len(elements))
	set.Insert(elements...)
	return set
}

func (set Set[T]) Insert(elements ...T) {
	for _, e := range elements {
		set[e] = struct{}{}
	}
}

func (set Set[T]) Contain(element T) bool {
	_, ok := set[element]
	return ok
}

func (set Set[T]) Remove(element T) {
	delete(set, element)
}

// ConcurrentSet 基于 sync.Map，适合读多写少、键集合只增不减或偶尔批量清理的场景。
type ConcurrentSet[T comparable] struct {
	inner sync.Map
}

func NewConcurrentSet[T comparable]() *ConcurrentSet[T] {
	return &ConcurrentSet[T]{}
}

// Insert 返回 element 是否为新插入。
func (set *ConcurrentSet[T]) Insert(element T) bool {
	_, loaded := set.inner.LoadOrStore(element, struct{}{})
	return !loaded
}

func (set *ConcurrentSet[T]) Contain(element T) bool {
	_, ok := set.inner.Load(element)
	return ok
}

func (set *ConcurrentSet[T]) Remove(element T) {
	set.inner.Delete(element)
}

// Range 遍历集合，f 返回 false 时停止。遍历期间可以安全地 Remove。
func (set *ConcurrentSet[T]) Range(f func(element T) bool) {
	set.inner.Range(func(key, _ any) bool {
		return f(key.(T))
	})
}
