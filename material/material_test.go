package material

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laserdamage/model"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	for _, name := range c.Names() {
		m, err := c.Lookup(name)
		require.NoError(t, err)
		assert.NoError(t, Validate(m), name)
	}

	al, err := c.Lookup(" Aluminum-6061-T6 ")
	require.NoError(t, err)
	assert.InDelta(t, 6.903e-5, al.Diffusivity(), 1e-8)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Default().Lookup("unobtainium")
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestWithDoesNotMutate(t *testing.T) {
	base := Default()
	m, err := base.Lookup(Aluminum2024)
	require.NoError(t, err)
	m.Name = "aluminum-2024-clad"
	m.Absorptivity = 0.3

	next, err := base.With(m)
	require.NoError(t, err)
	_, err = base.Lookup("aluminum-2024-clad")
	assert.Error(t, err)
	got, err := next.Lookup("aluminum-2024-clad")
	require.NoError(t, err)
	assert.Equal(t, 0.3, got.Absorptivity)
}

func TestValidate(t *testing.T) {
	m, _ := Default().Lookup(TitaniumTC4)

	bad := m
	bad.VaporizationPoint = bad.MeltingPoint - 1
	assert.ErrorIs(t, Validate(bad), model.ErrConfiguration)

	bad = m
	bad.Density = 0
	assert.ErrorIs(t, Validate(bad), model.ErrConfiguration)

	bad = m
	bad.Absorptivity = 1.2
	assert.ErrorIs(t, Validate(bad), model.ErrConfiguration)
}
