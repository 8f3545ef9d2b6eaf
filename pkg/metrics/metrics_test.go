package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	// 重复注册不会 panic。
	Register(reg)
	assert.Equal(t, reg, GetRegisterer())

	before := testutil.ToFloat64(OpaqueLeafTotal.WithLabelValues("cyclic"))
	OpaqueLeafTotal.WithLabelValues("cyclic").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(OpaqueLeafTotal.WithLabelValues("cyclic")))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
