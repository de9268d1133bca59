package query

import (
	"github.com/funvibe/quill/internal/ast"
	"github.com/funvibe/quill/internal/diagnostics"
	"github.com/funvibe/quill/internal/items"
	"github.com/funvibe/quill/internal/runtime"
	"github.com/funvibe/quill/internal/token"
)

// evalConst evaluates a constant initialiser. Evaluation is memoised per
// item and guarded by a small state machine: re-entering an item whose value
// is still unresolved is a true cycle and fails.
func (q *Query) evalConst(entry *Indexed, span token.Span) (runtime.Value, *diagnostics.DiagnosticError) {
	key := entry.Item.Key()

	state, ok := q.consts[key]
	if !ok {
		state = &constEntry{}
		q.consts[key] = state
	}

	state.used++
	switch state.state {
	case constResolved:
		return state.value, nil
	case constInProgress:
		return nil, diagnostics.NewErrorSpan(diagnostics.ErrQ003, span, entry.Item.String()).
			WithSource("", entry.SourceID)
	}

	state.state = constInProgress
	value, err := q.evalConstExpr(entry.Item, entry.ConstExpr, entry.SourceID)
	if err != nil {
		return nil, err
	}
	state.state = constResolved
	state.value = value
	return value, nil
}

func (q *Query) evalConstExpr(at items.Item, expr ast.Expr, sourceID int) (runtime.Value, *diagnostics.DiagnosticError) {
	switch e := expr.(type) {
	case *ast.LitUnit:
		return &runtime.Unit{}, nil
	case *ast.LitBool:
		return &runtime.Bool{Value: e.Value}, nil
	case *ast.LitInteger:
		return &runtime.Integer{Value: e.Value}, nil
	case *ast.LitFloat:
		return &runtime.Float{Value: e.Value}, nil
	case *ast.LitStr:
		return &runtime.Str{Value: e.Value}, nil
	case *ast.LitChar:
		return &runtime.CharValue{Value: e.Value}, nil
	case *ast.LitByte:
		return &runtime.ByteValue{Value: e.Value}, nil

	case *ast.ExprGroup:
		return q.evalConstExpr(at, e.Expr, sourceID)

	case *ast.ExprUnary:
		value, err := q.evalConstExpr(at, e.Expr, sourceID)
		if err != nil {
			return nil, err
		}
		switch e.Op.Type {
		case token.MINUS:
			switch v := value.(type) {
			case *runtime.Integer:
				return &runtime.Integer{Value: -v.Value}, nil
			case *runtime.Float:
				return &runtime.Float{Value: -v.Value}, nil
			}
		case token.BANG:
			if v, ok := value.(*runtime.Bool); ok {
				return &runtime.Bool{Value: !v.Value}, nil
			}
		}
		return nil, diagnostics.NewErrorSpan(diagnostics.ErrQ005, e.Span()).WithSource("", sourceID)

	case *ast.ExprBinary:
		lhs, err := q.evalConstExpr(at, e.Lhs, sourceID)
		if err != nil {
			return nil, err
		}
		rhs, err := q.evalConstExpr(at, e.Rhs, sourceID)
		if err != nil {
			return nil, err
		}
		if out, ok := constBinaryOp(e.Op.Type, lhs, rhs); ok {
			return out, nil
		}
		return nil, diagnostics.NewErrorSpan(diagnostics.ErrQ005, e.Span()).WithSource("", sourceID)

	case *ast.Path:
		// A reference to another constant: resolve it walking outward from
		// the referencing constant's module.
		name := q.unit.ConvertPath(mustParent(at), e)
		base := mustParent(at)
		for {
			candidate := base.Join(name)
			if entry, ok := q.indexed[candidate.Key()]; ok && entry.Kind == IndexedConst {
				return q.evalConst(entry, e.Span())
			}
			parent, ok := base.Pop()
			if !ok {
				break
			}
			base = parent
		}
		return nil, diagnostics.NewErrorSpan(diagnostics.ErrQ001, e.Span(), e.Segments[0].Lexeme).
			WithSource("", sourceID)
	}

	return nil, diagnostics.NewErrorSpan(diagnostics.ErrQ005, expr.Span()).WithSource("", sourceID)
}

func mustParent(it items.Item) items.Item {
	parent, _ := it.Pop()
	return parent
}

func constBinaryOp(op token.TokenType, lhs, rhs runtime.Value) (runtime.Value, bool) {
	if li, ok := lhs.(*runtime.Integer); ok {
		ri, ok := rhs.(*runtime.Integer)
		if !ok {
			return nil, false
		}
		switch op {
		case token.PLUS:
			return &runtime.Integer{Value: li.Value + ri.Value}, true
		case token.MINUS:
			return &runtime.Integer{Value: li.Value - ri.Value}, true
		case token.ASTERISK:
			return &runtime.Integer{Value: li.Value * ri.Value}, true
		case token.SLASH:
			if ri.Value == 0 {
				return nil, false
			}
			return &runtime.Integer{Value: li.Value / ri.Value}, true
		case token.EQ:
			return &runtime.Bool{Value: li.Value == ri.Value}, true
		case token.NOT_EQ:
			return &runtime.Bool{Value: li.Value != ri.Value}, true
		case token.LT:
			return &runtime.Bool{Value: li.Value < ri.Value}, true
		case token.LTE:
			return &runtime.Bool{Value: li.Value <= ri.Value}, true
		case token.GT:
			return &runtime.Bool{Value: li.Value > ri.Value}, true
		case token.GTE:
			return &runtime.Bool{Value: li.Value >= ri.Value}, true
		}
		return nil, false
	}

	if ls, ok := lhs.(*runtime.Str); ok {
		rs, ok := rhs.(*runtime.Str)
		if !ok {
			return nil, false
		}
		switch op {
		case token.PLUS:
			return &runtime.Str{Value: ls.Value + rs.Value}, true
		case token.EQ:
			return &runtime.Bool{Value: ls.Value == rs.Value}, true
		case token.NOT_EQ:
			return &runtime.Bool{Value: ls.Value != rs.Value}, true
		}
		return nil, false
	}

	if lb, ok := lhs.(*runtime.Bool); ok {
		rb, ok := rhs.(*runtime.Bool)
		if !ok {
			return nil, false
		}
		switch op {
		case token.AND:
			return &runtime.Bool{Value: lb.Value && rb.Value}, true
		case token.OR:
			return &runtime.Bool{Value: lb.Value || rb.Value}, true
		case token.EQ:
			return &runtime.Bool{Value: lb.Value == rb.Value}, true
		case token.NOT_EQ:
			return &runtime.Bool{Value: lb.Value != rb.Value}, true
		}
		return nil, false
	}

	return nil, false
}
