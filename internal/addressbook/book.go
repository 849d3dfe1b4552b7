// Package addressbook resolves logical contract names to deployed principals.
//
// A Book holds explicit name -> principal entries and an optional deployer
// address. Names without an explicit entry resolve to "<deployer>.<name>",
// which is how contracts deployed from one account are addressed.
package addressbook

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/linkctl/internal/ir"
)

// standardPrincipal matches a bare account address (c32, but loosely: devnet
// placeholders such as SPXXXX are accepted).
var standardPrincipal = regexp.MustCompile(`^S[A-Z0-9]{1,40}$`)

// contractName follows Clarity contract naming rules.
var contractName = regexp.MustCompile(`^[a-zA-Z]([a-zA-Z0-9_-]){0,127}$`)

// Book maps logical contract names to principals.
type Book struct {
	Deployer string            `yaml:"deployer,omitempty" json:"deployer,omitempty"`
	Entries  map[string]string `yaml:"addresses,omitempty" json:"addresses,omitempty"`
}

// New creates a book with the given deployer and entries.
func New(deployer string, entries map[string]string) *Book {
	b := &Book{Deployer: deployer, Entries: make(map[string]string, len(entries))}
	for k, v := range entries {
		b.Entries[k] = v
	}
	return b
}

// LoadFile reads a YAML address file:
//
//	deployer: SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7
//	addresses:
//	  gip-token: SP3K8BC0PPEVCV7NZ6QSRWPQ2JE9E5B6N3PA0KBR9.gip-token
func LoadFile(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read address book: %w", err)
	}
	var b Book
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse address book %s: %w", path, err)
	}
	if b.Entries == nil {
		b.Entries = map[string]string{}
	}
	return &b, nil
}

// Merge returns a book where entries and deployer from other take
// precedence over b. Either side may be nil.
func (b *Book) Merge(other *Book) *Book {
	out := New("", nil)
	for _, src := range []*Book{b, other} {
		if src == nil {
			continue
		}
		if src.Deployer != "" {
			out.Deployer = src.Deployer
		}
		for k, v := range src.Entries {
			out.Entries[k] = v
		}
	}
	return out
}

// Lookup resolves name to a principal.
func (b *Book) Lookup(name string) (string, bool) {
	if b == nil {
		return "", false
	}
	if addr, ok := b.Entries[name]; ok && addr != "" {
		return addr, true
	}
	if b.Deployer != "" && contractName.MatchString(name) {
		return b.Deployer + "." + name, true
	}
	return "", false
}

// ResolveAll resolves every contract name the descriptors need: targets,
// setter refs and verify refs. All unresolved or malformed names are
// reported together in one ConfigurationError.
func (b *Book) ResolveAll(descriptors []ir.LinkDescriptor) (map[string]string, error) {
	resolved := make(map[string]string)
	missing := make(map[string]bool)
	var problems []string

	for _, d := range descriptors {
		for _, name := range d.AllRefs() {
			if _, done := resolved[name]; done || missing[name] {
				continue
			}
			addr, ok := b.Lookup(name)
			if !ok {
				missing[name] = true
				continue
			}
			if err := ValidatePrincipal(addr); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", name, err))
				missing[name] = true
				continue
			}
			resolved[name] = addr
		}
	}

	if len(missing) > 0 {
		unresolved := make([]string, 0, len(missing))
		for name := range missing {
			unresolved = append(unresolved, name)
		}
		sort.Strings(unresolved)
		return nil, &ir.ConfigurationError{
			Message:    "address book cannot resolve all contract references",
			Unresolved: unresolved,
			Problems:   problems,
		}
	}
	return resolved, nil
}

// ValidatePrincipal checks the shape of a standard or contract principal.
func ValidatePrincipal(p string) error {
	account, name, isContract := cutLast(p, '.')
	if !standardPrincipal.MatchString(account) {
		return fmt.Errorf("invalid principal %q", p)
	}
	if isContract && !contractName.MatchString(name) {
		return fmt.Errorf("invalid contract name in principal %q", p)
	}
	return nil
}

func cutLast(s string, sep byte) (before, after string, found bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
