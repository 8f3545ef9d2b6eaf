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

import (
	"runtime"

	"github.com/cockroachdb/errors"
	ants "github.com/panjf2000/ants/v2"

	"github.com/lk2023060901/propbridge/pkg/util/merr"
)

// Pool 是对 ants.Pool 的泛型封装，每次提交返回一个 Future。
type Pool[T any] struct {
	inner *ants.Pool
	opt   *poolOption
}

// NewPool 创建容量为 cap 的协程池，cap <= 0 时使用 GOMAXPROCS。
func NewPool[T any](cap int, opts ...PoolOption) *Pool[T] {
	opt := defaultPoolOption()
	for _, o := range opts {
		o(opt)
	}
	if cap <= 0 {
		cap = runtime.GOMAXPROCS(0)
	}

	pool, err := ants.NewPool(cap, opt.antsOptions()...)
	if err != nil {
		panic(err)
	}
	return &Pool[T]{
		inner: pool,
		opt:   opt,
	}
}

// Submit 提交一个任务。提交失败时返回的 Future 立即完成并携带错误。
func (pool *Pool[T]) Submit(method func() (T, error)) *Future[T] {
	future := newFuture[T]()
	err := pool.inner.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				future.err = errors.Newf("conc pool task panicked: %v", r)
				close(future.ch)
				panic(r)
			}
			close(future.ch)
		}()
		if pool.opt.preHandler != nil {
			pool.opt.preHandler()
		}
		res, err := method()
		if err != nil {
			future.err = err
		} else {
			future.value = res
		}
	})
	if err != nil {
		future.err = merr.WrapErrOperationNotSupported("submit", err.Error())
		close(future.ch)
	}
	return future
}

// Release 关闭协程池，已提交的任务继续执行完毕。
func (pool *Pool[T]) Release() {
	pool.inner.Release()
}
