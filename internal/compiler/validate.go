package compiler

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/roach88/linkctl/internal/addressbook"
	"github.com/roach88/linkctl/internal/ir"
)

// SupportedVersions is the semver constraint a descriptor file version
// must satisfy.
const SupportedVersions = ">= 1.0, < 2.0"

// Validation error codes (E100-E199)
const (
	ErrInvalidVersion     = "E101" // version is not semver
	ErrUnsupportedVersion = "E102" // version outside SupportedVersions
	ErrInvalidDeployer    = "E103" // deployer is not a standard principal
	ErrInvalidAddress     = "E104" // address book entry is not a principal
	ErrInvalidLink        = "E105" // link descriptor problem
)

// ValidationError is one problem found in a descriptor file.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var versionConstraint = func() *semver.Constraints {
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		panic(fmt.Sprintf("compiler: bad version constraint: %v", err))
	}
	return c
}()

// Validate checks a decoded file. Returns all errors found (does not
// fail-fast).
func Validate(f *File) []ValidationError {
	var errs []ValidationError

	v, err := semver.NewVersion(f.Version)
	switch {
	case err != nil:
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("%q is not a semantic version", f.Version),
			Code:    ErrInvalidVersion,
		})
	case !versionConstraint.Check(v):
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("version %s is not supported (want %s)", v, SupportedVersions),
			Code:    ErrUnsupportedVersion,
		})
	}

	if f.Deployer != "" {
		if err := addressbook.ValidatePrincipal(f.Deployer); err != nil {
			errs = append(errs, ValidationError{Field: "deployer", Message: err.Error(), Code: ErrInvalidDeployer})
		}
	}

	names := make([]string, 0, len(f.Addresses))
	for name := range f.Addresses {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := addressbook.ValidatePrincipal(f.Addresses[name]); err != nil {
			errs = append(errs, ValidationError{
				Field:   "addresses." + name,
				Message: err.Error(),
				Code:    ErrInvalidAddress,
			})
		}
	}

	if err := ir.ValidateDescriptors(f.Descriptors()); err != nil {
		var ce *ir.ConfigurationError
		if errors.As(err, &ce) && len(ce.Problems) > 0 {
			for _, p := range ce.Problems {
				errs = append(errs, ValidationError{Field: "links", Message: p, Code: ErrInvalidLink})
			}
		} else {
			errs = append(errs, ValidationError{Field: "links", Message: err.Error(), Code: ErrInvalidLink})
		}
	}

	return errs
}
