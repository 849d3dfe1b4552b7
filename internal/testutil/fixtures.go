// Package testutil holds shared fixtures for linkctl tests: a fake clock,
// an in-memory run store and the reference staking deployment.
package testutil

import (
	"github.com/roach88/linkctl/internal/addressbook"
	"github.com/roach88/linkctl/internal/chain"
	"github.com/roach88/linkctl/internal/ir"
)

// Deployer is the account that deployed the fixture contracts.
const Deployer = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"

// GipToken is deployed by a different account and must be listed
// explicitly in the address book.
const GipToken = "SP3K8BC0PPEVCV7NZ6QSRWPQ2JE9E5B6N3PA0KBR9.gip-token"

// Link ids of the fixture deployment.
const (
	LinkGovernance  = "nft-collection.set-governance"
	LinkNFTContract = "staking.set-nft-contract"
	LinkRewardToken = "impact-tracker.set-reward-token"
)

// Principal returns the principal of a contract deployed by Deployer.
func Principal(name string) string {
	return Deployer + "." + name
}

// Literal returns the Clarity literal of a contract deployed by Deployer.
func Literal(name string) string {
	return chain.PrincipalLiteral(Principal(name))
}

// ScenarioDescriptors returns the three-link staking deployment:
//
//   - nft-collection learns its governance contract (no dependencies)
//   - staking learns the nft-collection, so it runs after the link above
//   - impact-tracker learns the externally deployed gip-token
func ScenarioDescriptors() []ir.LinkDescriptor {
	return []ir.LinkDescriptor{
		{
			ID:       LinkGovernance,
			Contract: "nft-collection",
			Function: "set-governance",
			Args:     []ir.Arg{ir.RefArg("governance")},
		},
		{
			ID:       LinkNFTContract,
			Contract: "staking",
			Function: "set-nft-contract",
			Args:     []ir.Arg{ir.RefArg("nft-collection")},
		},
		{
			ID:       LinkRewardToken,
			Contract: "impact-tracker",
			Function: "set-reward-token",
			Args:     []ir.Arg{ir.RefArg("gip-token")},
		},
	}
}

// ScenarioBook resolves every name in ScenarioDescriptors.
func ScenarioBook() *addressbook.Book {
	return addressbook.New(Deployer, map[string]string{"gip-token": GipToken})
}
