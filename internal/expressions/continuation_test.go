package expressions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgrevis/gridplan/pkg/schema"
)

func TestNewContinuation_IterBound(t *testing.T) {
	cont, err := NewContinuation("iter < 3")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := cont(i)
		require.NoError(t, err)
		assert.True(t, ok, "iter %d", i)
	}
	ok, err := cont(3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewContinuation_ElapsedAvailable(t *testing.T) {
	cont, err := NewContinuation("elapsed_s < 3600")
	require.NoError(t, err)

	ok, err := cont(0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewContinuation_Empty(t *testing.T) {
	_, err := NewContinuation("")
	var perr *schema.PlanError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, schema.ErrCodeValidation, perr.Code)
}

func TestNewContinuation_NotBoolean(t *testing.T) {
	_, err := NewContinuation("iter + 1")
	require.Error(t, err)
}

func TestNewContinuation_SyntaxError(t *testing.T) {
	_, err := NewContinuation("iter <")
	var perr *schema.PlanError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, schema.ErrCodeValidation, perr.Code)
}
