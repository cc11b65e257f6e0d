package main

// pass_partialinline.go implements spec.md §4.8's partial-inlining rule on
// the callee side: for a function whose body starts with an early return
// `if guard { return X; } rest`, it outlines `rest` as a cold function
// `f_cold` and rewrites f's own body to `if guard { return X } else {
// return f_cold(params) }`. Call sites of `f` are not rewritten; they keep
// calling `f`. Grounded on partial_inlining.cpp's shape (recognize the
// guard-then-return prefix, split the function), adapted to this repo's
// flat Program.Functions list.

type PartialInliningPass struct{}

func (*PartialInliningPass) Name() string { return "partial-inlining" }

func (p *PartialInliningPass) Run(prog *Program) (int, error) {
	changed := 0
	var added []*FuncDecl

	for _, fn := range prog.Functions {
		if fn.IsExtern || len(fn.Generic) > 0 {
			continue
		}
		guard, retVal, rest, ok := p.splitGuardReturn(fn.Body)
		if !ok {
			continue
		}

		coldName := fn.Name + "_cold"
		cold := &FuncDecl{
			Name:       coldName,
			Params:     fn.Params,
			ReturnType: fn.ReturnType,
			Body:       rest,
			Pos:        fn.Pos,
		}
		added = append(added, cold)

		args := make([]Expr, len(fn.Params))
		for i, param := range fn.Params {
			args[i] = &Ident{Name: param.Name}
		}
		fn.Body = []Stmt{
			&IfStmt{
				Cond: guard,
				Then: []Stmt{&ReturnStmt{Value: retVal, Pos: fn.Pos}},
				Else: []Stmt{&ReturnStmt{
					Value: &CallExpr{Callee: &Ident{Name: coldName}, Args: args, Pos: fn.Pos},
					Pos:   fn.Pos,
				}},
				Pos: fn.Pos,
			},
		}
		changed++
	}

	prog.Functions = append(prog.Functions, added...)
	return changed, nil
}

// splitGuardReturn recognizes `if guard { return X } ...rest` as the
// first statement of body (no elif/else on the guard, and its then-branch
// is exactly one ReturnStmt), returning the guard condition, the
// returned value, and the remaining statements.
func (p *PartialInliningPass) splitGuardReturn(body []Stmt) (guard Expr, retVal Expr, rest []Stmt, ok bool) {
	if len(body) < 2 {
		return nil, nil, nil, false
	}
	ifs, isIf := body[0].(*IfStmt)
	if !isIf || len(ifs.Elif) != 0 || len(ifs.Else) != 0 || len(ifs.Then) != 1 {
		return nil, nil, nil, false
	}
	ret, isRet := ifs.Then[0].(*ReturnStmt)
	if !isRet {
		return nil, nil, nil, false
	}
	return ifs.Cond, ret.Value, body[1:], true
}
