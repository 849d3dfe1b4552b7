// Package resolver orders link descriptors so that no call needs an address
// that is not known yet.
//
// An edge A → B exists when one of B's reference arguments names the
// contract configured by A, or when B lists A in depends_on. The order is a
// topological sort with a stable tie-break: among descriptors with no
// ordering constraint between them, input order wins.
//
// Resolution is pure. A cycle is reported as *ir.CycleError naming the
// involved contracts; it is fatal and aborts a run before any transaction.
package resolver
