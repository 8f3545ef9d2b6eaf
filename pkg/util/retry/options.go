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


package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

type config struct {
	attempts     uint
	sleep        time.Duration
	maxSleepTime time.Duration
	isRetryErr   func(err error) bool
}

func newDefaultConfig() *config {
	return &config{
		attempts:     uint(10),
		sleep:        200 * time.Millisecond,
		maxSleepTime: 3 * time.Second,
	}
}

// newBackOff 构造休眠间隔序列：从 sleep 开始指数增长，不超过 maxSleepTime。
func (c *config) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.sleep
	b.MaxInterval = c.maxSleepTime
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Option 用于配置重试行为。
type Option func(*config)

// Attempts 设置最大尝试次数，0 表示不限次数。
func Attempts(attempts uint) Option {
	return func(c *config) {
		c.attempts = attempts
	}
}

// Sleep 设置首次重试前的休眠时间。
func Sleep(sleep time.Duration) Option {
	return func(c *config) {
		c.sleep = sleep
		if c.sleep*2 > c.maxSleepTime {
			c.maxSleepTime = 2 * c.sleep
		}
	}
}

// MaxSleepTime 设置单次休眠的上限。
func MaxSleepTime(maxSleepTime time.Duration) Option {
	return func(c *config) {
		if c.sleep*2 > maxSleepTime {
			c.maxSleepTime = 2 * c.sleep
		} else {
			c.maxSleepTime = maxSleepTime
		}
	}
}

// RetryErr 设置判定错误是否可重试的函数。
func RetryErr(isRetryErr func(err error) bool) Option {
	return func(c *config) {
		c.isRetryErr = isRetryErr
	}
}
