package loader_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"testing"

	"github.com/unbound-force/verdict/internal/loader"
)

func TestTests_DiscoversTestFunctions(t *testing.T) {
	funcs, err := loader.Tests(filepath.Join("testdata", "sample"), "./...")
	if err != nil {
		t.Fatalf("Tests() failed: %v", err)
	}

	var names []string
	for _, f := range funcs {
		names = append(names, f.Name)
		if f.Package != "example.com/sample" {
			t.Errorf("%s: expected package example.com/sample, got %q", f.Name, f.Package)
		}
		if f.Line == 0 || f.File == "" {
			t.Errorf("%s: missing position", f.Name)
		}
	}

	// books_ext_test.go sorts before books_test.go.
	want := []string{"TestDeleteBook", "TestAddBook", "TestGetBook"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestTests_InvalidPattern(t *testing.T) {
	_, err := loader.Tests("", "github.com/nonexistent/package/that/does/not/exist")
	if err == nil {
		t.Error("expected error for nonexistent package")
	}
}

func TestIsTestFunc(t *testing.T) {
	src := `package p
import "testing"
func TestA(t *testing.T) {}
func Test(t *testing.T) {}
func Test_b(t *testing.T) {}
func Testing(t *testing.T) {}
func TestB(b *testing.B) {}
func TestC() {}
func (s suite) TestD(t *testing.T) {}
`
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "p_test.go", src, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{
		"TestA": true, "Test": true, "Test_b": true,
		"Testing": false, "TestB": false, "TestC": false, "TestD": false,
	}
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if got := loader.IsTestFunc(fn); got != want[fn.Name.Name] {
			t.Errorf("IsTestFunc(%s) = %v, want %v", fn.Name.Name, got, want[fn.Name.Name])
		}
	}
}
