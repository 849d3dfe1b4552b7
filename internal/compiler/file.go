package compiler

import (
	"github.com/roach88/linkctl/internal/addressbook"
	"github.com/roach88/linkctl/internal/ir"
)

// File is a decoded descriptor file.
type File struct {
	Version   string            `json:"version" yaml:"version"`
	Deployer  string            `json:"deployer,omitempty" yaml:"deployer,omitempty"`
	Addresses map[string]string `json:"addresses,omitempty" yaml:"addresses,omitempty"`
	Links     []Link            `json:"links" yaml:"links"`

	// Source is the path or name the file was loaded from.
	Source string `json:"-" yaml:"-"`
}

// Link is one link entry as written in a descriptor file.
type Link struct {
	ID        string         `json:"id,omitempty" yaml:"id,omitempty"`
	Contract  string         `json:"contract" yaml:"contract"`
	Function  string         `json:"function" yaml:"function"`
	Args      []ir.Arg       `json:"args,omitempty" yaml:"args,omitempty"`
	DependsOn []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Verify    *ir.VerifySpec `json:"verify,omitempty" yaml:"verify,omitempty"`
}

// Descriptors converts the links to descriptors in file order. A link
// without an id is named contract.function.
func (f *File) Descriptors() []ir.LinkDescriptor {
	out := make([]ir.LinkDescriptor, len(f.Links))
	for i, l := range f.Links {
		id := l.ID
		if id == "" {
			id = ir.DefaultID(l.Contract, l.Function)
		}
		d := ir.LinkDescriptor{
			ID:        id,
			Contract:  l.Contract,
			Function:  l.Function,
			Args:      append([]ir.Arg(nil), l.Args...),
			DependsOn: append([]string(nil), l.DependsOn...),
			Verify:    l.Verify,
		}
		out[i] = d.Clone()
	}
	return out
}

// Book returns the address book embedded in the file.
func (f *File) Book() *addressbook.Book {
	return addressbook.New(f.Deployer, f.Addresses)
}
