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
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxLoggerKey struct{}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { L().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// With 返回携带 fields 的子 Logger，字段在第一次写日志时才编码。
func With(fields ...zap.Field) *MLogger {
	lazy := zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return NewLazyWith(core, fields)
	})
	return &MLogger{Logger: L().WithOptions(lazy, zap.AddCallerSkip(-1))}
}

// WithIdentity 把对象标识挂到 ctx 的 Logger 上，经 Ctx 取出的 Logger 都会带上该字段。
func WithIdentity(ctx context.Context, identity string) context.Context {
	parent := Ctx(ctx).Logger
	return context.WithValue(ctx, ctxLoggerKey{}, &MLogger{Logger: parent.With(FieldIdentity(identity))})
}

// Ctx 取出 ctx 上挂载的 Logger，没有时返回按当前全局级别过滤的 Logger。
func Ctx(ctx context.Context) *MLogger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxLoggerKey{}).(*MLogger); ok {
			return l
		}
	}
	return &MLogger{Logger: ctxL()}
}
