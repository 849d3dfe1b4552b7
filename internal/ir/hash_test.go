package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorSetHashStable(t *testing.T) {
	set := []LinkDescriptor{
		{ID: "a", Contract: "nft-collection", Function: "set-governance-contract", Args: []Arg{RefArg("governance")}},
		{ID: "b", Contract: "staking", Function: "set-nft-contract", Args: []Arg{RefArg("nft-collection")}},
	}

	h1, err := DescriptorSetHash(set)
	require.NoError(t, err)
	h2, err := DescriptorSetHash([]LinkDescriptor{set[0].Clone(), set[1].Clone()})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestDescriptorSetHashOrderSensitive(t *testing.T) {
	a := LinkDescriptor{ID: "a", Contract: "x", Function: "set-y"}
	b := LinkDescriptor{ID: "b", Contract: "y", Function: "set-x"}

	h1, err := DescriptorSetHash([]LinkDescriptor{a, b})
	require.NoError(t, err)
	h2, err := DescriptorSetHash([]LinkDescriptor{b, a})
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestDescriptorSetHashEmpty(t *testing.T) {
	h, err := DescriptorSetHash(nil)
	require.NoError(t, err)
	assert.Equal(t, hashWithDomain(DomainDescriptorSet, []byte("[]")), h)
}
