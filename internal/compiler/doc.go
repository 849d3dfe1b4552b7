// Package compiler loads link descriptor files.
//
// A descriptor file declares the links of one deployment plus an optional
// embedded address book. Three source formats are accepted and normalized
// to the same File:
//
//   - YAML (.yaml, .yml) and JSON (.json)
//   - CUE (.cue), evaluated with the CUE Go API
//   - HCL (.hcl), where references are written as contract.<name>
//
// Every document is checked against an embedded JSON Schema, its version
// against a semver constraint, and its links with ir.ValidateDescriptors.
package compiler
