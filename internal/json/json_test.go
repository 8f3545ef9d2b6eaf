package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngines(t *testing.T) {
	defer SetEngine(EngineSonic)

	for _, engine := range []string{EngineSonic, EngineJSONIter} {
		t.Run(engine, func(t *testing.T) {
			require.True(t, SetEngine(engine))
			assert.Equal(t, engine, Engine())

			data, err := Marshal(map[string]string{"b": "2", "a": "1"})
			require.NoError(t, err)
			assert.Equal(t, `{"a":"1","b":"2"}`, string(data))

			var out map[string]string
			require.NoError(t, Unmarshal(data, &out))
			assert.Equal(t, "1", out["a"])

			indented, err := MarshalIndent(map[string]int{"x": 1}, "", "  ")
			require.NoError(t, err)
			assert.Contains(t, string(indented), "\n  \"x\": 1")

			assert.Error(t, Unmarshal([]byte("{not json"), &out))
		})
	}

	assert.False(t, SetEngine("gob"))
}

func TestLookup(t *testing.T) {
	defer SetEngine(EngineSonic)

	name, api, ok := Lookup(" JSONITER ")
	require.True(t, ok)
	assert.Equal(t, EngineJSONIter, name)
	assert.Equal(t, EngineSonic, Engine())

	data, err := api.Marshal(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(data))

	name, _, ok = Lookup("")
	assert.True(t, ok)
	assert.Equal(t, EngineSonic, name)

	_, _, ok = Lookup("gob")
	assert.False(t, ok)
}
