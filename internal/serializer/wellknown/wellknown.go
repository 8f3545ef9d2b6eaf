// Package wellknown 为常用的非基础类型注册扩展 Serializer：
// time.Time、time.Duration 以及 protobuf 的 Timestamp / Duration。
//
// 使用方以空白导入的方式启用：
//
//	import _ "github.com/lk2023060901/propbridge/internal/serializer/wellknown"
package wellknown

import (
	"reflect"
	"strconv"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/lk2023060901/propbridge/internal/serializer"
	"github.com/lk2023060901/propbridge/pkg/util/merr"
)

func init() {
	serializer.MustRegister(reflect.TypeFor[time.Time](), func() (serializer.Serializer, error) {
		return &textCodec[time.Time]{
			tag:    "time",
			format: func(v time.Time) (string, error) { return v.Format(time.RFC3339Nano), nil },
			parse:  func(raw string) (time.Time, error) { return time.Parse(time.RFC3339Nano, raw) },
			adapt: func(value any) (time.Time, bool) {
				ts, ok := value.(*timestamppb.Timestamp)
				if !ok || ts == nil {
					return time.Time{}, false
				}
				return ts.AsTime(), true
			},
		}, nil
	})

	serializer.MustRegister(reflect.TypeFor[time.Duration](), func() (serializer.Serializer, error) {
		return &textCodec[time.Duration]{
			tag:    "duration",
			format: func(v time.Duration) (string, error) { return v.String(), nil },
			parse:  time.ParseDuration,
			adapt: func(value any) (time.Duration, bool) {
				d, ok := value.(*durationpb.Duration)
				if !ok || d == nil {
					return 0, false
				}
				return d.AsDuration(), true
			},
		}, nil
	})

	serializer.MustRegister(reflect.TypeFor[*timestamppb.Timestamp](), func() (serializer.Serializer, error) {
		return &textCodec[*timestamppb.Timestamp]{
			tag:    "timestamp",
			format: formatProto[*timestamppb.Timestamp],
			parse: func(raw string) (*timestamppb.Timestamp, error) {
				ts := &timestamppb.Timestamp{}
				return ts, parseProto(raw, ts)
			},
			adapt: func(value any) (*timestamppb.Timestamp, bool) {
				t, ok := value.(time.Time)
				if !ok {
					return nil, false
				}
				return timestamppb.New(t), true
			},
		}, nil
	})

	serializer.MustRegister(reflect.TypeFor[*durationpb.Duration](), func() (serializer.Serializer, error) {
		return &textCodec[*durationpb.Duration]{
			tag:    "duration",
			format: formatProto[*durationpb.Duration],
			parse: func(raw string) (*durationpb.Duration, error) {
				d := &durationpb.Duration{}
				return d, parseProto(raw, d)
			},
			adapt: func(value any) (*durationpb.Duration, bool) {
				d, ok := value.(time.Duration)
				if !ok {
					return nil, false
				}
				return durationpb.New(d), true
			},
		}, nil
	})
}

// formatProto 使用 protojson 编码 well-known 消息，并去掉外层的 JSON 引号。
func formatProto[M proto.Message](msg M) (string, error) {
	if !msg.ProtoReflect().IsValid() {
		return "", merr.WrapErrParameterMissing("message")
	}
	data, err := protojson.Marshal(msg)
	if err != nil {
		return "", err
	}
	return strconv.Unquote(string(data))
}

func parseProto(raw string, msg proto.Message) error {
	return protojson.Unmarshal([]byte(strconv.Quote(raw)), msg)
}
