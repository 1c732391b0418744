// Package loader wraps go/packages to discover the test functions
// declared in Go packages.
package loader

import (
	"fmt"
	"go/ast"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/tools/go/packages"
)

// LoadMode is the minimum set of flags needed to inspect test files.
const LoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedSyntax |
	packages.NeedTypes

// TestFunc is a top-level test function.
type TestFunc struct {
	// Name is the function name, e.g. "TestAddBook".
	Name string

	// Package is the import path of the package under test. External
	// test packages ("foo_test") report the path of "foo".
	Package string

	// File and Line locate the declaration.
	File string
	Line int
}

// Tests loads the packages matching patterns, including their test
// files, and returns their test functions ordered by package, file and
// position. Dir is the directory patterns are resolved in; empty means
// the current directory.
func Tests(dir string, patterns ...string) ([]TestFunc, error) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	cfg := &packages.Config{
		Mode:  LoadMode,
		Dir:   dir,
		Tests: true,
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages %q: %w", strings.Join(patterns, " "), err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %q", strings.Join(patterns, " "))
	}

	// Check for package-level errors (syntax, type errors, etc.).
	var errs []string
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			errs = append(errs, e.Error())
		}
	})
	if len(errs) > 0 {
		return nil, fmt.Errorf("packages %q have errors:\n  %s",
			strings.Join(patterns, " "), strings.Join(errs, "\n  "))
	}

	// With Tests set, a package with tests is loaded up to three
	// times (plain, test variant, external test); the same file can
	// appear in several of them.
	seen := make(map[string]bool)
	var out []TestFunc
	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			pos := pkg.Fset.Position(file.Pos())
			if !strings.HasSuffix(pos.Filename, "_test.go") {
				continue
			}
			for _, decl := range file.Decls {
				fn, ok := decl.(*ast.FuncDecl)
				if !ok || !IsTestFunc(fn) {
					continue
				}
				p := pkg.Fset.Position(fn.Pos())
				key := p.Filename + ":" + fn.Name.Name
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, TestFunc{
					Name:    fn.Name.Name,
					Package: strings.TrimSuffix(pkg.PkgPath, "_test"),
					File:    p.Filename,
					Line:    p.Line,
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Package != out[j].Package {
			return out[i].Package < out[j].Package
		}
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	return out, nil
}

// IsTestFunc reports whether fn has the shape go test runs:
// func TestXxx(t *testing.T), where Xxx does not start with a
// lowercase letter.
func IsTestFunc(fn *ast.FuncDecl) bool {
	if fn.Recv != nil || fn.Type.TypeParams != nil {
		return false
	}
	name := fn.Name.Name
	if !strings.HasPrefix(name, "Test") {
		return false
	}
	if rest := name[len("Test"):]; rest != "" {
		r, _ := utf8.DecodeRuneInString(rest)
		if unicode.IsLower(r) {
			return false
		}
	}

	params := fn.Type.Params.List
	if len(params) != 1 || len(params[0].Names) > 1 {
		return false
	}
	star, ok := params[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	sel, ok := star.X.(*ast.SelectorExpr)
	return ok && sel.Sel.Name == "T"
}
