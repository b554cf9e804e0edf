//go:build ignore

// gen generates the arithmetic of all fixed-point types declared in
// fixed.go. A type IntM_N must use all bits of its underlying type.
package main

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"log"
	"os"
	"text/template"
)

const output = "fixed_gen.go"

var methods = template.Must(template.New("methods").Parse(`// Code generated by go run gen.go; DO NOT EDIT.

package fixed

import "fmt"
{{ range . }}
func {{ .Name }}U(i int) {{ .Name }}     { return {{ .Name }}(i<<{{ .Frac }}) }
func {{ .Name }}F(f float32) {{ .Name }} { return {{ .Name }}(f*(1<<{{ .Frac }})) }

func (x {{ .Name }}) Floor() int             { return int(x >> {{ .Frac }}) }
func (x {{ .Name }}) Ceil() int              { return int(({{ .Wide }}(x) + (1<<{{ .Frac }} - 1)) >> {{ .Frac }}) }
func (x {{ .Name }}) Round() int             { return int(({{ .Wide }}(x) + 1<<({{ .Frac }}-1)) >> {{ .Frac }}) }
func (x {{ .Name }}) Float() float32         { return float32(x) / (1 << {{ .Frac }}) }
func (x {{ .Name }}) Mul(y {{ .Name }}) {{ .Name }} { return {{ .Name }}(({{ .Wide }}(x)*{{ .Wide }}(y))>>{{ .Frac }}) }
func (x {{ .Name }}) Div(y {{ .Name }}) {{ .Name }} { return {{ .Name }}({{ .Wide }}(x)<<{{ .Frac }}/{{ .Wide }}(y)) }

func (x {{ .Name }}) String() string {
	const shift, mask = {{ .Frac }}, 1<<{{ .Frac }} - 1
	return fmt.Sprintf("%d:%0{{ .Digits }}d", {{ .Wide }}(x>>shift), {{ .Wide }}(x&mask))
}
{{ end }}`))

type fixedType struct {
	Name, Wide   string
	Frac, Digits int
}

var widths = map[string]struct {
	bits int
	wide string
}{
	"int8":  {8, "int16"},
	"int16": {16, "int32"},
	"int32": {32, "int64"},
}

func parse(name, base string) (fixedType, error) {
	w, ok := widths[base]
	if !ok {
		return fixedType{}, fmt.Errorf("%s: unsupported underlying type %s", name, base)
	}
	var intbits, frac int
	if _, err := fmt.Sscanf(name, "Int%d_%d", &intbits, &frac); err != nil {
		return fixedType{}, fmt.Errorf("%s: %v", name, err)
	}
	if intbits+frac != w.bits {
		return fixedType{}, fmt.Errorf("%s: must use all %d bits of %s", name, w.bits, base)
	}
	return fixedType{
		Name:   name,
		Wide:   w.wide,
		Frac:   frac,
		Digits: len(fmt.Sprint(1<<frac - 1)),
	}, nil
}

func main() {
	log.SetFlags(0)
	f, err := parser.ParseFile(token.NewFileSet(), "fixed.go", nil, 0)
	if err != nil {
		log.Fatalln(err)
	}

	var types []fixedType
	ast.Inspect(f, func(n ast.Node) bool {
		spec, ok := n.(*ast.TypeSpec)
		if !ok {
			return true
		}
		base, ok := spec.Type.(*ast.Ident)
		if !ok {
			return false
		}
		t, err := parse(spec.Name.Name, base.Name)
		if err != nil {
			log.Fatalln(err)
		}
		types = append(types, t)
		return false
	})

	var src bytes.Buffer
	if err := methods.Execute(&src, types); err != nil {
		log.Fatalln(err)
	}
	out, err := format.Source(src.Bytes())
	if err != nil {
		log.Fatalln(err)
	}
	if err := os.WriteFile(output, out, 0o644); err != nil {
		log.Fatalln(err)
	}
}
