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


package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// propbridgeNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	propbridgeNamespace = "propbridge"

	reasonLabelName = "reason"
	opLabelName     = "op"
	resultLabelName = "result"

	CacheOpLoad    = "load"
	CacheOpPersist = "persist"

	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultSuccess = "success"
	ResultFail    = "fail"
)

var (
	// buckets 为树构建耗时直方图的桶划分，单位为毫秒。
	// [0.05 0.1 0.2 0.4 ... 409.6]
	buckets = prometheus.ExponentialBuckets(0.05, 2, 14)

	TreeBuildTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: propbridgeNamespace,
			Name:      "tree_builds_total",
			Help:      "number of property trees built",
		})

	TreeBuildLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: propbridgeNamespace,
			Name:      "tree_build_latency",
			Help:      "latency of building a property tree in milliseconds",
			Buckets:   buckets,
		})

	TreesCached = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: propbridgeNamespace,
			Name:      "trees_cached",
			Help:      "number of property trees held by the identity cache",
		})

	OpaqueLeafTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: propbridgeNamespace,
			Name:      "opaque_leaves_total",
			Help:      "number of members degenerated into opaque leaves, by reason",
		}, []string{reasonLabelName})

	SerializerSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: propbridgeNamespace,
			Name:      "serializer_skipped_total",
			Help:      "number of registered serializers skipped because instantiation failed",
		})

	CacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: propbridgeNamespace,
			Name:      "cache_ops_total",
			Help:      "number of disk cache operations, by op and result",
		}, []string{opLabelName, resultLabelName})

	CacheCorruptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: propbridgeNamespace,
			Name:      "cache_corrupt_total",
			Help:      "number of malformed cache files read as empty",
		})

	metricRegisterer prometheus.Registerer
	registerOnce     sync.Once
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标，同一进程内只生效一次。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(TreeBuildTotal)
		r.MustRegister(TreeBuildLatency)
		r.MustRegister(TreesCached)
		r.MustRegister(OpaqueLeafTotal)
		r.MustRegister(SerializerSkippedTotal)
		r.MustRegister(CacheOpsTotal)
		r.MustRegister(CacheCorruptTotal)
		metricRegisterer = r
	})
}
