package peaks

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/function61/gokit/assert"
)

func TestSerializationRoundTripsNaN(t *testing.T) {
	col := testCollection(t)
	col.ApplyCostCriterion(10) // NaNs out the middle row

	serialized, err := json.Marshal(col)
	assert.Ok(t, err)

	restored := &Collection{}
	assert.Ok(t, json.Unmarshal(serialized, restored))

	assert.EqualString(t, restored.Tag, "Si111")
	assert.Assert(t, len(restored.SubRuns) == 3)
	assert.Assert(t, restored.Values[0][0] == 100)
	assert.Assert(t, math.IsNaN(restored.Values[1][0]))
	assert.Assert(t, restored.Costs[2] == 1.5)
}
