package curve

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFit_ReproducesEndpoints(t *testing.T) {
	seg, err := Fit(2500, 4500, 3)
	require.NoError(t, err)

	assert.InDelta(t, 2500, seg.At(-XLimit), 1e-9)
	assert.InDelta(t, 4500, seg.At(XLimit), 1e-9)
}

func TestFit_ClosedForm(t *testing.T) {
	// b=2, L=2: b^L=4, b^-L=0.25, span 3.75
	seg, err := Fit(1000, 4750, 2)
	require.NoError(t, err)

	assert.InDelta(t, 1000.0, seg.A, 1e-9)
	assert.InDelta(t, (4*1000.0-0.25*4750.0)/3.75, seg.C, 1e-9)
}

func TestFit_RejectsExponent(t *testing.T) {
	for _, base := range []float64{1, 0.5, 0, -2, math.NaN(), math.Inf(1)} {
		_, err := Fit(100, 200, base)
		assert.ErrorIs(t, err, ErrInvalidExponent, "base %v", base)
	}
}

func TestFit_DescendingPair(t *testing.T) {
	seg, err := Fit(6500, 4500, 2)
	require.NoError(t, err)

	assert.Less(t, seg.A, 0.0)
	assert.Equal(t, 6500, seg.Evaluate(0, Forward))
	assert.Equal(t, 4500, seg.Evaluate(1, Forward))
	assert.Equal(t, 4500, seg.Evaluate(0, Backward))
	assert.Equal(t, 6500, seg.Evaluate(1, Backward))
}

func TestSegmentEvaluate_ClampsProgress(t *testing.T) {
	seg, err := Fit(2500, 4500, 2.2)
	require.NoError(t, err)

	assert.Equal(t, 2500, seg.Evaluate(-0.4, Forward))
	assert.Equal(t, 4500, seg.Evaluate(1.7, Forward))
	assert.Equal(t, 2500, seg.Evaluate(math.NaN(), Forward))
}

func TestSegmentEvaluate_Monotonic(t *testing.T) {
	seg, err := Fit(1500, 6500, 8)
	require.NoError(t, err)

	prev := seg.Evaluate(0, Forward)
	for i := 1; i <= 100; i++ {
		v := seg.Evaluate(float64(i)/100, Forward)
		assert.GreaterOrEqual(t, v, prev)
		assert.LessOrEqual(t, v, 6500)
		prev = v
	}
}

func TestSegmentEvaluate_NearLinearForSmallBase(t *testing.T) {
	seg, err := Fit(0, 1000, 1.0001)
	require.NoError(t, err)

	assert.InDelta(t, 500, seg.Evaluate(0.5, Forward), 2)
}

func TestClampProgress(t *testing.T) {
	testCases := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{3, 1},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, ClampProgress(tc.in))
	}
}

func TestDirection_JSON(t *testing.T) {
	type window struct {
		Direction Direction `json:"direction"`
	}

	for _, d := range []Direction{Forward, Backward} {
		data, err := json.Marshal(window{Direction: d})
		require.NoError(t, err)
		assert.JSONEq(t, `{"direction":"`+d.String()+`"}`, string(data))

		var got window
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, d, got.Direction)
	}

	var w window
	assert.Error(t, json.Unmarshal([]byte(`{"direction":"sideways"}`), &w))
}
