package main

import (
	"encoding/json"
	"testing"
)

func TestDecodeProgramRoundTripsAFunction(t *testing.T) {
	original := &Program{
		Functions: []*FuncDecl{
			{
				Name:       "add",
				Params:     []Param{{Name: "a", Type: Type{Kind: TypeI64}}, {Name: "b", Type: Type{Kind: TypeI64}}},
				ReturnType: Type{Kind: TypeI64},
				Body: []Stmt{
					&IfStmt{
						Cond: &BinaryExpr{Op: "<", Left: &Ident{Name: "a"}, Right: &IntLit{Value: 0}},
						Then: []Stmt{&ReturnStmt{Value: &IntLit{Value: 0}}},
						Else: []Stmt{
							&ReturnStmt{Value: &BinaryExpr{Op: "+", Left: &Ident{Name: "a"}, Right: &Ident{Name: "b"}}},
						},
					},
				},
			},
		},
		Globals: []*VarDecl{{Name: "limit", Init: &IntLit{Value: 10}}},
	}

	raw, err := marshalProgramForTest(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded, err := DecodeProgram(raw)
	if err != nil {
		t.Fatalf("DecodeProgram: %v", err)
	}

	if len(decoded.Functions) != 1 || decoded.Functions[0].Name != "add" {
		t.Fatalf("expected one function named add, got %#v", decoded.Functions)
	}
	body := decoded.Functions[0].Body
	ifs, ok := body[0].(*IfStmt)
	if !ok {
		t.Fatalf("expected the decoded body's first statement to be an IfStmt, got %#v", body[0])
	}
	cond, ok := ifs.Cond.(*BinaryExpr)
	if !ok || cond.Op != "<" {
		t.Fatalf("expected the decoded condition to be a < comparison, got %#v", ifs.Cond)
	}
	if len(decoded.Globals) != 1 || decoded.Globals[0].Name != "limit" {
		t.Fatalf("expected one global named limit, got %#v", decoded.Globals)
	}
}

// marshalProgramForTest builds the same JSON shape DecodeProgram expects,
// reusing the per-node marshal helpers ast_json.go defines for Stmt/Expr.
func marshalProgramForTest(prog *Program) ([]byte, error) {
	type wireFunc struct {
		Name       string
		Params     []Param
		ReturnType Type
		Body       json.RawMessage
	}
	type wire struct {
		Functions []wireFunc
		Globals   []json.RawMessage
	}

	w := wire{}
	for _, fn := range prog.Functions {
		body, err := marshalStmts(fn.Body)
		if err != nil {
			return nil, err
		}
		w.Functions = append(w.Functions, wireFunc{
			Name: fn.Name, Params: fn.Params, ReturnType: fn.ReturnType, Body: body,
		})
	}
	for _, g := range prog.Globals {
		raw, err := marshalStmt(g)
		if err != nil {
			return nil, err
		}
		w.Globals = append(w.Globals, raw)
	}

	return json.Marshal(w)
}
