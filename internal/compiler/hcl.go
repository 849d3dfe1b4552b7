package compiler

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/roach88/linkctl/internal/ir"
)

// refRoot is the traversal root that marks a contract reference in HCL:
// args = [contract.nft-collection, "u100"].
const refRoot = "contract"

// hclFile is the top-level structure of an HCL descriptor file.
type hclFile struct {
	Version   string            `hcl:"version"`
	Deployer  string            `hcl:"deployer,optional"`
	Addresses map[string]string `hcl:"addresses,optional"`
	Links     []*hclLink        `hcl:"link,block"`
}

type hclLink struct {
	ID        string         `hcl:"id,label"`
	Contract  string         `hcl:"contract"`
	Function  string         `hcl:"function"`
	Args      *hcl.Attribute `hcl:"args,optional"`
	DependsOn []string       `hcl:"depends_on,optional"`
	Verify    *hclVerify     `hcl:"verify,block"`
}

type hclVerify struct {
	Function string         `hcl:"function,optional"`
	Args     *hcl.Attribute `hcl:"args,optional"`
	Expect   *hcl.Attribute `hcl:"expect,optional"`
	Skip     bool           `hcl:"skip,optional"`
}

// parseHCL decodes an HCL descriptor file into a File.
func parseHCL(data []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	out := &File{
		Version:   parsed.Version,
		Deployer:  parsed.Deployer,
		Addresses: parsed.Addresses,
		Links:     make([]Link, 0, len(parsed.Links)),
	}
	for _, l := range parsed.Links {
		link := Link{ID: l.ID, Contract: l.Contract, Function: l.Function, DependsOn: l.DependsOn}

		args, err := hclArgList(l.Args)
		if err != nil {
			return nil, err
		}
		link.Args = args

		if v := l.Verify; v != nil {
			spec := &ir.VerifySpec{Function: v.Function, Skip: v.Skip}
			if spec.Args, err = hclArgList(v.Args); err != nil {
				return nil, err
			}
			if v.Expect != nil {
				expect, err := hclArg(v.Expect.Expr)
				if err != nil {
					return nil, err
				}
				spec.Expect = &expect
			}
			link.Verify = spec
		}
		out.Links = append(out.Links, link)
	}
	return out, nil
}

func hclArgList(attr *hcl.Attribute) ([]ir.Arg, error) {
	if attr == nil {
		return nil, nil
	}
	exprs, diags := hcl.ExprList(attr.Expr)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s: %w", attr.Name, diags)
	}
	args := make([]ir.Arg, 0, len(exprs))
	for _, expr := range exprs {
		a, err := hclArg(expr)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return args, nil
}

// hclArg turns contract.<name> traversals into refs and evaluates
// everything else to a literal string.
func hclArg(expr hcl.Expression) (ir.Arg, error) {
	if traversal, diags := hcl.AbsTraversalForExpr(expr); !diags.HasErrors() {
		if traversal.RootName() != refRoot || len(traversal) != 2 {
			return ir.Arg{}, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid reference",
				Detail:   fmt.Sprintf("references must have the form %s.<name>", refRoot),
				Subject:  expr.Range().Ptr(),
			}
		}
		attr, ok := traversal[1].(hcl.TraverseAttr)
		if !ok {
			return ir.Arg{}, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid reference",
				Detail:   "contract name must be an attribute",
				Subject:  expr.Range().Ptr(),
			}
		}
		return ir.RefArg(attr.Name), nil
	}

	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return ir.Arg{}, diags
	}
	lit, err := literalOf(v)
	if err != nil {
		return ir.Arg{}, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid argument",
			Detail:   err.Error(),
			Subject:  expr.Range().Ptr(),
		}
	}
	return ir.LiteralArg(lit), nil
}

// literalOf renders a primitive cty value verbatim. Whole numbers are
// written without a fraction so 100 stays "100".
func literalOf(v cty.Value) (string, error) {
	if v.IsNull() || !v.IsKnown() {
		return "", fmt.Errorf("argument has no value")
	}
	if v.Type() == cty.Number {
		bf := v.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int(nil)
			return i.String(), nil
		}
		return bf.Text('f', -1), nil
	}
	if !v.Type().IsPrimitiveType() {
		return "", fmt.Errorf("argument must be a string, number or bool, got %s", v.Type().FriendlyName())
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", err
	}
	return s.AsString(), nil
}
