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
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrPathNotFound("node_42", "origin/z")
	err = errors.Wrap(err, "failed to resolve path")
	s.ErrorIs(err, ErrPathNotFound)
	s.Equal(Code(ErrPathNotFound), Code(err))
	s.Equal(int32(0), Code(nil))
	s.Equal(errUnexpected.errCode, Code(errors.New("plain")))

	sameCodeErr := newBridgeError("new error", ErrPathNotFound.errCode, false)
	s.True(sameCodeErr.Is(ErrPathNotFound))
}

func (s *ErrSuite) TestWrap() {
	// Path 相关错误。
	s.ErrorIs(WrapErrPathNotFound("id", "a/b"), ErrPathNotFound)
	s.ErrorIs(WrapErrPathInvalid("a//b", "empty segment"), ErrPathInvalid)
	s.ErrorIs(WrapErrPathDuplicated("id", []string{"a"}), ErrPathDuplicated)
	s.ErrorIs(WrapErrIdentityUnknown("id"), ErrIdentityUnknown)

	// Serializer 相关错误。
	intType := reflect.TypeOf(0)
	s.ErrorIs(WrapErrMissingSerializer(intType), ErrMissingSerializer)
	s.ErrorIs(WrapErrSerializerInstantiation(intType, errors.New("no ctor")), ErrSerializerInstantiation)
	s.Nil(WrapErrSerializerInstantiation(intType, nil))
	s.ErrorIs(WrapErrSerializerDuplicated(intType), ErrSerializerDuplicated)
	s.ErrorIs(WrapErrValueNotConvertible("x", intType), ErrValueNotConvertible)
	s.ErrorIs(WrapErrValueDecode("a", errors.New("bad")), ErrValueDecode)
	s.ErrorIs(WrapErrValueEncode("a", errors.New("bad")), ErrValueEncode)

	// Member 相关错误。
	s.ErrorIs(WrapErrMemberNotWritable("width"), ErrMemberNotWritable)
	s.ErrorIs(WrapErrMemberNotReadable("width"), ErrMemberNotReadable)
	s.ErrorIs(WrapErrMemberAccess("width", "panic"), ErrMemberAccess)

	// Graph 相关错误。
	s.ErrorIs(WrapErrCyclicReference("a/b", intType), ErrCyclicReference)
	s.ErrorIs(WrapErrDepthExceeded("a/b", 33, 32), ErrDepthExceeded)

	// Cache / IO 相关错误。
	s.ErrorIs(WrapErrCacheCorrupt("id_1.cache", errors.New("eof")), ErrCacheCorrupt)
	s.ErrorIs(WrapErrIoFailed("k", errors.New("disk full")), ErrIoFailed)
	s.Nil(WrapErrIoFailed("k", nil))

	// Parameter 相关错误。
	s.ErrorIs(WrapErrParameterInvalid("pointer", "struct"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidMsg("bad %s", "thing"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterMissing("identity"), ErrParameterMissing)
	s.ErrorIs(WrapErrOperationNotSupported("set"), ErrOperationNotSupported)
}

func (s *ErrSuite) TestWrapMessage() {
	err := WrapErrPathNotFound("node_42", "origin/z", "lookup")
	s.Contains(err.Error(), "[identity=node_42]")
	s.Contains(err.Error(), "[path=origin/z]")
	s.Contains(err.Error(), "lookup")
}

func (s *ErrSuite) TestRetryable() {
	s.True(IsRetryableErr(WrapErrIoFailed("k", errors.New("busy"))))
	s.False(IsRetryableErr(ErrPathNotFound))
	s.False(IsRetryableErr(errors.New("plain")))
}

func (s *ErrSuite) TestErrorType() {
	s.Equal(SystemError, GetErrorType(ErrPathNotFound))
	s.Equal(InputError, GetErrorType(WrapErrParameterMissing("identity")))
	s.Equal(InputError, GetErrorType(WrapErrPathInvalid("a//b")))
	s.Equal(SystemError, GetErrorType(WrapErrIoFailed("k", errors.New("disk full"))))
	s.Equal("input_error", InputError.String())
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		errThird  = errors.New("third")
	)

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.False(errors.Is(err, errThird))

	s.Equal("first: second", err.Error())
	s.Nil(Combine(nil, nil))
	s.Error(Combine(nil, errThird))
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
