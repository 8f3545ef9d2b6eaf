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

package conc

import "github.com/lk2023060901/propbridge/pkg/util/merr"

type future interface {
	wait()
	OK() bool
	Err() error
}

// Future 是一次异步计算的结果，Await 会阻塞直到计算完成。
type Future[T any] struct {
	ch    chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{
		ch: make(chan struct{}),
	}
}

func (future *Future[T]) wait() {
	<-future.ch
}

// Await 等待结果，返回计算的值与错误。
func (future *Future[T]) Await() (T, error) {
	future.wait()
	return future.value, future.err
}

func (future *Future[T]) Value() T {
	future.wait()
	return future.value
}

// OK 在计算完成且没有错误时返回 true。
func (future *Future[T]) OK() bool {
	future.wait()
	return future.err == nil
}

func (future *Future[T]) Err() error {
	future.wait()
	return future.err
}

// Inner 返回一个在计算完成时关闭的 channel。
func (future *Future[T]) Inner() <-chan struct{} {
	return future.ch
}

// Go 在新的 goroutine 中执行 fn 并返回其 Future。
func Go[T any](fn func() (T, error)) *Future[T] {
	future := newFuture[T]()
	go func() {
		defer close(future.ch)
		future.value, future.err = fn()
	}()
	return future
}

// AwaitAll 等待全部 Future 完成，返回所有错误的合并结果。
func AwaitAll[T future](futures ...T) error {
	errs := make([]error, 0, len(futures))
	for _, f := range futures {
		errs = append(errs, f.Err())
	}
	return merr.Combine(errs...)
}
