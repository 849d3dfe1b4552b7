package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDescriptors(t *testing.T) {
	ok := []LinkDescriptor{
		{ID: "a", Contract: "registry", Function: "set-token", Args: []Arg{RefArg("token")}},
		{ID: "b", Contract: "token", Function: "set-fee", Args: []Arg{LiteralArg("u100")}, DependsOn: []string{"a"}},
	}
	assert.NoError(t, ValidateDescriptors(ok))

	bad := []LinkDescriptor{
		{ID: "a", Contract: "", Function: "set-x", Args: []Arg{{}}},
		{ID: "a", Contract: "c", Function: "", Args: []Arg{{Ref: "x", Literal: "u1"}}},
		{ID: "", Contract: "c", Function: "f", DependsOn: []string{"ghost"}},
		{ID: "d", Contract: "c", Function: "f", DependsOn: []string{"d"}, Verify: &VerifySpec{Expect: &Arg{}}},
	}
	err := ValidateDescriptors(bad)
	require.Error(t, err)

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Len(t, ce.Problems, 9)
	assert.Contains(t, err.Error(), `duplicate id "a"`)
	assert.Contains(t, err.Error(), `unknown link "ghost"`)
	assert.Contains(t, err.Error(), "depends on itself")
}

func TestValidateDescriptorsEmpty(t *testing.T) {
	assert.True(t, IsConfigurationError(ValidateDescriptors(nil)))
}
