package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linkctl/internal/ir"
)

func link(id, contract, function string, args ...ir.Arg) ir.LinkDescriptor {
	return ir.LinkDescriptor{ID: id, Contract: contract, Function: function, Args: args}
}

func ids(descs []ir.LinkDescriptor) []string {
	out := make([]string, len(descs))
	for i, d := range descs {
		out[i] = d.ID
	}
	return out
}

// TestResolve_ContractLinkingScenario covers the governance/staking/reward set.
func TestResolve_ContractLinkingScenario(t *testing.T) {
	descs := []ir.LinkDescriptor{
		link("B", "staking", "set-nft-contract", ir.RefArg("nft-collection")),
		link("A", "nft-collection", "set-governance-contract", ir.RefArg("governance")),
		link("C", "impact-tracker", "set-reward-token", ir.RefArg("gip-token")),
	}

	plan, err := Resolve(descs)
	require.NoError(t, err)

	// B waits for A, then keeps its input position ahead of C
	assert.Equal(t, []string{"A", "B", "C"}, ids(plan.Ordered()))
	assert.Equal(t, [][]string{{"A", "C"}, {"B"}}, plan.LayerIDs())

	a, b := plan.Graph.index["A"], plan.Graph.index["B"]
	assert.Equal(t, []int{a}, plan.Graph.Deps(b))
}

func TestResolve_StableTieBreak(t *testing.T) {
	descs := []ir.LinkDescriptor{
		link("z", "c1", "set-a", ir.LiteralArg("u1")),
		link("y", "c2", "set-a", ir.LiteralArg("u1")),
		link("x", "c3", "set-a", ir.LiteralArg("u1")),
	}

	plan, err := Resolve(descs)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "y", "x"}, ids(plan.Ordered()))
	assert.Len(t, plan.Layers, 1)
}

func TestResolve_ExplicitDependsOn(t *testing.T) {
	first := link("first", "c1", "set-a", ir.LiteralArg("u1"))
	second := link("second", "c2", "set-a", ir.LiteralArg("u1"))
	first.DependsOn = []string{"second"}

	plan, err := Resolve([]ir.LinkDescriptor{first, second})
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, ids(plan.Ordered()))
}

func TestResolve_SelfReferenceIsNotACycle(t *testing.T) {
	d := link("self", "vault", "set-owner-contract", ir.RefArg("vault"))

	plan, err := Resolve([]ir.LinkDescriptor{d})
	require.NoError(t, err)
	assert.Equal(t, []string{"self"}, ids(plan.Ordered()))
}

func TestResolve_MultipleConfigurersAllPrecede(t *testing.T) {
	descs := []ir.LinkDescriptor{
		link("use", "staking", "set-nft-contract", ir.RefArg("nft")),
		link("cfg1", "nft", "set-governance", ir.RefArg("gov")),
		link("cfg2", "nft", "set-minter", ir.RefArg("minter")),
	}

	plan, err := Resolve(descs)
	require.NoError(t, err)
	assert.Equal(t, []string{"cfg1", "cfg2", "use"}, ids(plan.Ordered()))
}

func TestResolve_TwoNodeCycle(t *testing.T) {
	descs := []ir.LinkDescriptor{
		link("a", "token", "set-staking", ir.RefArg("staking")),
		link("b", "staking", "set-token", ir.RefArg("token")),
	}

	_, err := Resolve(descs)
	require.Error(t, err)

	var ce *ir.CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"staking", "token"}, ce.Contracts)
	assert.Equal(t, []string{"a", "b", "a"}, ce.Links)
}

func TestResolve_CycleWithDownstreamNode(t *testing.T) {
	descs := []ir.LinkDescriptor{
		link("ok", "registry", "set-admin", ir.LiteralArg("'SP1")),
		link("a", "x", "set-y", ir.RefArg("y")),
		link("b", "y", "set-z", ir.RefArg("z")),
		link("c", "z", "set-x", ir.RefArg("x")),
		link("down", "w", "set-x", ir.RefArg("x")),
	}

	_, err := Resolve(descs)
	var ce *ir.CycleError
	require.ErrorAs(t, err, &ce)

	// "down" is blocked by the cycle but not part of it
	assert.Equal(t, []string{"x", "y", "z"}, ce.Contracts)
	assert.Equal(t, []string{"a", "c", "b", "a"}, ce.Links)
}

func TestResolve_CyclePathClosesThroughBranch(t *testing.T) {
	l0 := link("l0", "c0", "set-a", ir.LiteralArg("u1"))
	l1 := link("l1", "c1", "set-a", ir.LiteralArg("u1"))
	l2 := link("l2", "c2", "set-a", ir.LiteralArg("u1"))
	l3 := link("l3", "c3", "set-a", ir.LiteralArg("u1"))
	// edges run l0->l1, l1->l2, l1->l3, l2->l1 and l3->l0
	l1.DependsOn = []string{"l0", "l2"}
	l2.DependsOn = []string{"l1"}
	l3.DependsOn = []string{"l1"}
	l0.DependsOn = []string{"l3"}
	descs := []ir.LinkDescriptor{l0, l1, l2, l3}

	_, err := Resolve(descs)
	var ce *ir.CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"l0", "l1", "l3", "l0"}, ce.Links)

	g, err := Build(descs)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(ce.Links), 3)
	assert.Equal(t, ce.Links[0], ce.Links[len(ce.Links)-1])
	for k := 0; k+1 < len(ce.Links); k++ {
		from, to := g.index[ce.Links[k]], g.index[ce.Links[k+1]]
		assert.Contains(t, g.dependents[from], to, "%s -> %s", ce.Links[k], ce.Links[k+1])
	}
}

func TestBuild_DuplicateID(t *testing.T) {
	_, err := Build([]ir.LinkDescriptor{
		link("dup", "a", "set-x"),
		link("dup", "b", "set-x"),
	})
	assert.True(t, ir.IsConfigurationError(err))
}

func TestBuild_UnknownDependsOn(t *testing.T) {
	d := link("a", "x", "set-y")
	d.DependsOn = []string{"ghost"}

	_, err := Build([]ir.LinkDescriptor{d})
	require.Error(t, err)
	assert.True(t, ir.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "ghost")
}

func TestTransitiveDeps(t *testing.T) {
	descs := []ir.LinkDescriptor{
		link("a", "x", "set-gov", ir.RefArg("gov")),
		link("b", "y", "set-x", ir.RefArg("x")),
		link("c", "z", "set-y", ir.RefArg("y")),
		link("d", "q", "set-gov", ir.RefArg("gov")),
	}

	g, err := Build(descs)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, g.TransitiveDeps(2))
	assert.Equal(t, []int{0}, g.TransitiveDeps(1))
	assert.Empty(t, g.TransitiveDeps(0))
	assert.Empty(t, g.TransitiveDeps(3))
}

func TestResolve_Empty(t *testing.T) {
	plan, err := Resolve(nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Order)
	assert.Empty(t, plan.Layers)
}
