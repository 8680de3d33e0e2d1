package milp

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is an affine expression Σ coef·var + Constant.
type Expr struct {
	Terms    []Term
	Constant float64
}

// NewExpr starts an expression from the given terms.
func NewExpr(terms ...Term) Expr {
	return Expr{Terms: append([]Term(nil), terms...)}
}

// Plus returns e + coef·v.
func (e Expr) Plus(v Var, coef float64) Expr {
	terms := make([]Term, len(e.Terms), len(e.Terms)+1)
	copy(terms, e.Terms)
	return Expr{Terms: append(terms, Term{Var: v, Coef: coef}), Constant: e.Constant}
}

// PlusConst returns e + c.
func (e Expr) PlusConst(c float64) Expr {
	return Expr{Terms: e.Terms, Constant: e.Constant + c}
}

// Eval computes the expression for the given variable values.
func (e Expr) Eval(values []float64) float64 {
	s := e.Constant
	for _, t := range e.Terms {
		s += t.Coef * values[t.Var]
	}
	return s
}

// Coefficients accumulates terms by variable into a dense vector of length n.
func (e Expr) Coefficients(n int) []float64 {
	out := make([]float64, n)
	for _, t := range e.Terms {
		out[t.Var] += t.Coef
	}
	return out
}
