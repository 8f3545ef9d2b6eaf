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


package merr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

type ErrorType int32

const (
	SystemError ErrorType = 0
	InputError  ErrorType = 1
)

var ErrorTypeName = map[ErrorType]string{
	SystemError: "system_error",
	InputError:  "input_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// 在此处定义叶子错误。
// WARN: 新增错误前请先确认下方已有错误是否能够满足需求。
// 命名规则：Err + 相关前缀 + 错误名
var (
	// Path 相关
	ErrPathNotFound    = newBridgeError("property path not found", 100, false)
	ErrPathInvalid     = newBridgeError("invalid property path", 101, false, WithErrorType(InputError))
	ErrPathDuplicated  = newBridgeError("duplicated property path", 102, false)
	ErrIdentityUnknown = newBridgeError("object identity not attached", 103, false)

	// Serializer 相关
	ErrMissingSerializer       = newBridgeError("missing serializer", 200, false)
	ErrSerializerInstantiation = newBridgeError("serializer instantiation failed", 201, false)
	ErrSerializerDuplicated    = newBridgeError("serializer already registered", 202, false)
	ErrValueNotConvertible     = newBridgeError("value not convertible", 203, false, WithErrorType(InputError))
	ErrValueDecode             = newBridgeError("value decode failed", 204, false)
	ErrValueEncode             = newBridgeError("value encode failed", 205, false)

	// Member 相关
	ErrMemberNotWritable = newBridgeError("member not writable", 300, false)
	ErrMemberNotReadable = newBridgeError("member not readable", 301, false)
	ErrMemberAccess      = newBridgeError("member access failed", 302, false)

	// Graph 相关
	ErrCyclicReference = newBridgeError("cyclic reference", 400, false)
	ErrDepthExceeded   = newBridgeError("graph depth exceeded", 401, false)

	// Cache 相关
	ErrCacheCorrupt = newBridgeError("cache file corrupt", 500, false)

	// IO 相关
	ErrIoFailed = newBridgeError("IO failed", 1001, true)

	// Parameter 相关
	ErrParameterInvalid = newBridgeError("invalid parameter", 1100, false, WithErrorType(InputError))
	ErrParameterMissing = newBridgeError("missing parameter", 1101, false, WithErrorType(InputError))

	// 请勿导出该错误，仅用于将未知错误转换为 bridgeError。
	errUnexpected = newBridgeError("unexpected error", (1<<16)-1, false)

	// General
	ErrOperationNotSupported = newBridgeError("unsupported operation", 3000, false)
)

type errorOption func(*bridgeError)

func WithErrorType(etype ErrorType) errorOption {
	return func(err *bridgeError) {
		err.errType = etype
	}
}

type bridgeError struct {
	msg       string
	retriable bool
	errCode   int32
	errType   ErrorType
}

func newBridgeError(msg string, code int32, retriable bool, options ...errorOption) bridgeError {
	err := bridgeError{
		msg:       msg,
		retriable: retriable,
		errCode:   code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e bridgeError) code() int32 {
	return e.errCode
}

func (e bridgeError) Error() string {
	return e.msg
}

func (e bridgeError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(bridgeError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// 多错误的 cause 定义为最后一个错误
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
