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
	"time"

	ants "github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/lk2023060901/propbridge/pkg/log"
)

type poolOption struct {
	// nonBlocking 为 true 时池满直接返回错误，否则阻塞提交方。
	nonBlocking bool
	// expiryDuration 为空闲 worker 的回收间隔，0 表示使用 ants 缺省值。
	expiryDuration time.Duration
	// concealPanic 为 true 时任务 panic 只记录日志。
	concealPanic bool
	// panicHandler 在记录日志之后调用。
	panicHandler func(any)
	// preHandler 在每个任务执行前调用。
	preHandler func()
}

func defaultPoolOption() *poolOption {
	return &poolOption{}
}

func (opt *poolOption) handlePanic(v any) {
	log.Error("conc pool task panicked", log.FieldModule("conc"), zap.Any("panic", v))
	if opt.panicHandler != nil {
		opt.panicHandler(v)
	}
	if !opt.concealPanic {
		panic(v)
	}
}

func (opt *poolOption) antsOptions() []ants.Option {
	result := []ants.Option{
		ants.WithNonblocking(opt.nonBlocking),
		ants.WithPanicHandler(opt.handlePanic),
	}
	if opt.expiryDuration > 0 {
		result = append(result, ants.WithExpiryDuration(opt.expiryDuration))
	}
	return result
}

// PoolOption 用于配置协程池行为的选项函数。
type PoolOption func(opt *poolOption)

func WithNonBlocking(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.nonBlocking = v
	}
}

func WithExpiryDuration(d time.Duration) PoolOption {
	return func(opt *poolOption) {
		opt.expiryDuration = d
	}
}

// WithConcealPanic 为 true 时任务的 panic 不会传播，Future 以错误完成。
func WithConcealPanic(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.concealPanic = v
	}
}

func WithPanicHandler(fn func(any)) PoolOption {
	return func(opt *poolOption) {
		opt.panicHandler = fn
	}
}

func WithPreHandler(fn func()) PoolOption {
	return func(opt *poolOption) {
		opt.preHandler = fn
	}
}
