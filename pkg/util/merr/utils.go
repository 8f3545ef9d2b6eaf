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
	"fmt"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case bridgeError:
		return specificErr.code()
	case multiErrors:
		for _, item := range specificErr.errs {
			if code := Code(item); code != errUnexpected.code() {
				return code
			}
		}
		return errUnexpected.code()
	default:
		return errUnexpected.code()
	}
}

func IsRetryableErr(err error) bool {
	var target bridgeError
	if errors.As(err, &target) {
		return target.retriable
	}
	return false
}

func GetErrorType(err error) ErrorType {
	var target bridgeError
	if errors.As(err, &target) {
		return target.errType
	}
	return SystemError
}

// Path 相关
func WrapErrPathNotFound(identity, path string, msg ...string) error {
	err := wrapFields(ErrPathNotFound, value("identity", identity), value("path", path))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrPathInvalid(path string, msg ...string) error {
	err := wrapFields(ErrPathInvalid, value("path", path))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrPathDuplicated(identity string, paths []string) error {
	return wrapFields(ErrPathDuplicated, value("identity", identity), value("paths", paths))
}

func WrapErrIdentityUnknown(identity string, msg ...string) error {
	err := wrapFields(ErrIdentityUnknown, value("identity", identity))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Serializer 相关
func WrapErrMissingSerializer(t reflect.Type, msg ...string) error {
	err := wrapFields(ErrMissingSerializer, value("type", t))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrSerializerInstantiation(t reflect.Type, err error) error {
	if err == nil {
		return nil
	}
	return wrapFieldsWithDesc(ErrSerializerInstantiation, err.Error(), value("type", t))
}

func WrapErrSerializerDuplicated(t reflect.Type) error {
	return wrapFields(ErrSerializerDuplicated, value("type", t))
}

func WrapErrValueNotConvertible(from any, to reflect.Type, msg ...string) error {
	err := wrapFields(ErrValueNotConvertible, value("from", fmt.Sprintf("%T", from)), value("to", to))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrValueDecode(path string, err error) error {
	if err == nil {
		return nil
	}
	return wrapFieldsWithDesc(ErrValueDecode, err.Error(), value("path", path))
}

func WrapErrValueEncode(path string, err error) error {
	if err == nil {
		return nil
	}
	return wrapFieldsWithDesc(ErrValueEncode, err.Error(), value("path", path))
}

// Member 相关
func WrapErrMemberNotWritable(member string, msg ...string) error {
	err := wrapFields(ErrMemberNotWritable, value("member", member))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrMemberNotReadable(member string, msg ...string) error {
	err := wrapFields(ErrMemberNotReadable, value("member", member))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrMemberAccess(member string, reason any) error {
	return wrapFieldsWithDesc(ErrMemberAccess, fmt.Sprint(reason), value("member", member))
}

// Graph 相关
func WrapErrCyclicReference(path string, t reflect.Type) error {
	return wrapFields(ErrCyclicReference, value("path", path), value("type", t))
}

func WrapErrDepthExceeded(path string, depth, limit int) error {
	return wrapFields(ErrDepthExceeded, value("path", path), bound("depth", depth, 0, limit))
}

// Cache 相关
func WrapErrCacheCorrupt(file string, err error) error {
	if err == nil {
		return nil
	}
	return wrapFieldsWithDesc(ErrCacheCorrupt, err.Error(), value("file", file))
}

// IO 相关
func WrapErrIoFailed(key string, err error) error {
	if err == nil {
		return nil
	}
	return wrapFieldsWithDesc(ErrIoFailed, err.Error(), value("key", key))
}

// Parameter 相关
func WrapErrParameterInvalid[T any](expected, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		value("expected", expected),
		value("actual", actual),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidMsg(fmtStr string, args ...any) error {
	return errors.Wrapf(ErrParameterInvalid, fmtStr, args...)
}

func WrapErrParameterMissing[T any](param T, msg ...string) error {
	err := wrapFields(ErrParameterMissing,
		value("missing_param", param),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrOperationNotSupported(op string, msg ...string) error {
	err := wrapFields(ErrOperationNotSupported, value("operation", op))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func wrapFields(err bridgeError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	return err
}

func wrapFieldsWithDesc(err bridgeError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}

type boundField struct {
	name  string
	value any
	lower any
	upper any
}

func bound(name string, value, lower, upper any) boundField {
	return boundField{
		name,
		value,
		lower,
		upper,
	}
}

func (f boundField) String() string {
	return fmt.Sprintf("%v out of range %v <= %s <= %v", f.value, f.lower, f.name, f.upper)
}
