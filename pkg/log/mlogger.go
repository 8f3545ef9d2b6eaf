// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.


package log

import (
	"sync"
	"sync/atomic"

	"github.com/uber/jaeger-client-go/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MLogger 在 zap.Logger 之上增加了按分组限流的日志能力。
type MLogger struct {
	*zap.Logger
	rl atomic.Value // RateLimiter
}

func (l *MLogger) With(fields ...zap.Field) *MLogger {
	nl := &MLogger{
		Logger: l.Logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return NewLazyWith(core, fields)
		})),
	}
	if rl := l.rl.Load(); rl != nil {
		nl.rl.Store(rl)
	}
	return nl
}

// WithRateGroup 返回一个绑定具名限流器的副本，同名分组共享额度，接收者本身不受影响。
// 分组已存在时以本次参数重新配置它。
func (l *MLogger) WithRateGroup(group string, creditPerSecond, maxBalance float64) *MLogger {
	var rl *utils.ReconfigurableRateLimiter
	if v, ok := _namedRateLimiters.Load(group); ok {
		rl = v.(*utils.ReconfigurableRateLimiter)
		rl.Update(creditPerSecond, maxBalance)
	} else {
		v, _ := _namedRateLimiters.LoadOrStore(group, utils.NewRateLimiter(creditPerSecond, maxBalance))
		rl = v.(*utils.ReconfigurableRateLimiter)
	}
	nl := &MLogger{Logger: l.Logger}
	nl.rl.Store(RateLimiter(rl))
	return nl
}

func (l *MLogger) limiter() RateLimiter {
	if rl, ok := l.rl.Load().(RateLimiter); ok {
		return rl
	}
	return R()
}

// RatedWarn 额度足够时输出 Warn 日志，返回是否输出。
func (l *MLogger) RatedWarn(cost float64, msg string, fields ...zap.Field) bool {
	if !l.limiter().CheckCredit(cost) {
		return false
	}
	l.WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
	return true
}

// lazyWithCore 推迟 core.With 的字段编码，直到第一次真正写日志。
type lazyWithCore struct {
	corePtr atomic.Pointer[zapcore.Core]
	once    sync.Once
	fields  []zapcore.Field
}

var _ zapcore.Core = (*lazyWithCore)(nil)

func NewLazyWith(core zapcore.Core, fields []zapcore.Field) zapcore.Core {
	d := lazyWithCore{fields: fields}
	d.corePtr.Store(&core)
	return &d
}

func (d *lazyWithCore) initOnce() zapcore.Core {
	core := *d.corePtr.Load()
	d.once.Do(func() {
		core = core.With(d.fields)
		d.corePtr.Store(&core)
	})
	return core
}

func (d *lazyWithCore) Enabled(level zapcore.Level) bool {
	return (*d.corePtr.Load()).Enabled(level)
}

func (d *lazyWithCore) Sync() error {
	return d.initOnce().Sync()
}

func (d *lazyWithCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return d.initOnce().Write(entry, fields)
}

func (d *lazyWithCore) With(fields []zapcore.Field) zapcore.Core {
	return d.initOnce().With(fields)
}

func (d *lazyWithCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return d.initOnce().Check(e, ce)
}
