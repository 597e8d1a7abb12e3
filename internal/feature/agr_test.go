package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRelationship(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"constant", "aggregate", "identity", ""} {
		rel, err := ParseRelationship(s)
		require.NoError(t, err)
		assert.Equal(t, Relationship(s), rel)
	}

	_, err := ParseRelationship("bogus")
	assert.Error(t, err)
}

func TestCheckGeometryChange(t *testing.T) {
	t.Parallel()

	s := Schema{
		{Name: "name", Type: TypeString, AGR: AGRIdentity},
		{Name: "pop", Type: TypeNumber},
		{Name: "density", Type: TypeNumber},
	}

	diags := CheckGeometryChange("interpolate", s)
	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.Equal(t, SeverityWarn, d.Severity)
		assert.Equal(t, CodeUnresolvedAGR, d.Code)
		assert.Equal(t, -1, d.Feature)
	}
	assert.Equal(t, "pop", diags[0].Attr)
	assert.Equal(t, "density", diags[1].Attr)
}

func TestCheckGeometryChangeAllTagged(t *testing.T) {
	t.Parallel()

	s := Schema{
		{Name: "name", Type: TypeString, AGR: AGRIdentity},
		{Name: "pop", Type: TypeNumber, AGR: AGRAggregate},
	}
	assert.Empty(t, CheckGeometryChange("centroid", s))
}

func TestDowngradeForSubGeometry(t *testing.T) {
	t.Parallel()

	s := Schema{
		{Name: "name", Type: TypeString, AGR: AGRIdentity},
		{Name: "elev", Type: TypeNumber, AGR: AGRConstant},
		{Name: "pop", Type: TypeNumber, AGR: AGRAggregate},
	}

	out := DowngradeForSubGeometry(s)

	assert.Equal(t, AGRConstant, out.Field("name").AGR)
	assert.Equal(t, AGRConstant, out.Field("elev").AGR)
	assert.Equal(t, AGRAggregate, out.Field("pop").AGR)

	// input untouched
	assert.Equal(t, AGRIdentity, s.Field("name").AGR)
}
