package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDs(t *testing.T) {
	require.NoError(t, SetNode(7))

	a, b := NextID(), NextID()
	assert.NotEqual(t, a, b)

	short := ShortID()
	assert.NotEmpty(t, short)
	assert.Equal(t, strings.ToUpper(short), short)

	p := ProvisionalID()
	assert.True(t, IsProvisional(p))
	assert.False(t, IsProvisional(a))
}

