package qp

import (
	"fmt"
	"math"
	"time"

	"github.com/milosgajdos/go-lateral/matrix"
	mx "github.com/milosgajdos/matrix"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	rhoMin = 1e-6
	rhoMax = 1e6
	// rhoEqScale multiplies rho on equality constraints
	rhoEqScale = 1e3
	// rhoTol is the bound gap under which a constraint is treated as equality
	rhoTol = 1e-4
	// rhoAdaptTol is the step size ratio which triggers refactorization
	rhoAdaptTol = 5.0
	divTol      = 1e-30
)

// Problem is a convex quadratic program
//
//	minimize    1/2 x'Px + q'x
//	subject to  l <= Ax <= u
//
// Infinite bounds are expressed with math.Inf.
type Problem struct {
	// P is the positive semidefinite cost matrix
	P *mat.SymDense
	// Q is the linear cost vector
	Q []float64
	// A is the constraint matrix
	A *mat.Dense
	// L is the constraint lower bound
	L []float64
	// U is the constraint upper bound
	U []float64
}

// Result is the outcome of Solve
type Result struct {
	// Status is the solve status
	Status Status
	// X is the primal solution
	X []float64
	// Y is the dual solution
	Y []float64
	// Obj is the objective value at X
	Obj float64
	// Iter is the number of performed iterations
	Iter int
	// PrimRes is the primal residual at X
	PrimRes float64
	// DualRes is the dual residual at X
	DualRes float64
	// Elapsed is the wall clock time spent in Solve
	Elapsed time.Duration
}

// Solver solves Problem with the Alternating Direction Method of Multipliers.
// Problem data are equilibrated once and the KKT matrix is factorized only when
// the constraint matrix or step size change; vector updates are cheap.
type Solver struct {
	settings Settings
	n, m     int
	// original problem data
	p    *mat.SymDense
	q    []float64
	a    *mat.Dense
	l, u []float64
	// scaled problem data
	sc     *scaling
	ps, as *mat.Dense
	qs     *mat.VecDense
	ls, us []float64
	// step sizes
	rho    float64
	rhoVec []float64
	kkt    mat.Cholesky
	factor bool
	// warm start iterates in original coordinates
	xw, yw []float64
	w      *work
	log    *zap.Logger
}

// work holds buffers reused across iterations
type work struct {
	xu, zu, yu *mat.VecDense
	// m dimensional
	ax, r, dy, adx *mat.VecDense
	// n dimensional
	px, aty, rd, dx, pdx *mat.VecDense
}

func newWork(n, m int) *work {
	return &work{
		xu:  mat.NewVecDense(n, nil),
		zu:  mat.NewVecDense(m, nil),
		yu:  mat.NewVecDense(m, nil),
		ax:  mat.NewVecDense(m, nil),
		r:   mat.NewVecDense(m, nil),
		dy:  mat.NewVecDense(m, nil),
		adx: mat.NewVecDense(m, nil),
		px:  mat.NewVecDense(n, nil),
		aty: mat.NewVecDense(n, nil),
		rd:  mat.NewVecDense(n, nil),
		dx:  mat.NewVecDense(n, nil),
		pdx: mat.NewVecDense(n, nil),
	}
}

// New creates new Solver for problem p and returns it.
// It returns error if either of the following conditions is met:
//   - invalid settings are given
//   - problem dimensions are inconsistent
//   - any lower bound exceeds its upper bound
func New(p Problem, s Settings) (*Solver, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	if p.P == nil || p.A == nil {
		return nil, fmt.Errorf("invalid problem: nil cost or constraint matrix")
	}

	n := p.P.SymmetricDim()
	m, cols := p.A.Dims()
	if n == 0 || cols != n {
		return nil, fmt.Errorf("invalid constraint matrix dimensions: [%d x %d], expected %d columns", m, cols, n)
	}

	q := p.Q
	if q == nil {
		q = make([]float64, n)
	}

	if len(q) != n {
		return nil, fmt.Errorf("invalid cost vector length: %d != %d", len(q), n)
	}

	if len(p.L) != m || len(p.U) != m {
		return nil, fmt.Errorf("invalid bounds length: [%d, %d] != %d", len(p.L), len(p.U), m)
	}

	s2 := &Solver{
		settings: s,
		n:        n,
		m:        m,
		p:        mat.NewSymDense(n, nil),
		q:        make([]float64, n),
		a:        mat.DenseCopyOf(p.A),
		l:        make([]float64, m),
		u:        make([]float64, m),
		rhoVec:   make([]float64, m),
		xw:       make([]float64, n),
		yw:       make([]float64, m),
		w:        newWork(n, m),
		log:      zap.NewNop(),
	}
	s2.p.CopySym(p.P)
	copy(s2.q, q)

	if err := s2.setBounds(p.L, p.U); err != nil {
		return nil, err
	}

	s2.setup()

	return s2, nil
}

// SetLogger sets the logger used in verbose mode
func (s *Solver) SetLogger(l *zap.Logger) {
	if l != nil {
		s.log = l
	}
}

// Dims returns the number of variables n and constraints m
func (s *Solver) Dims() (n, m int) {
	return s.n, s.m
}

// Settings returns solver settings
func (s *Solver) Settings() Settings {
	return s.settings
}

// UpdateSettings replaces solver settings.
// Changing step size or scaling settings triggers new equilibration and factorization.
func (s *Solver) UpdateSettings(set Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}

	rebuild := set.Rho != s.settings.Rho || set.Sigma != s.settings.Sigma || set.ScalingIter != s.settings.ScalingIter
	s.settings = set
	if rebuild {
		s.setup()
	}

	return nil
}

// UpdateVectors updates linear cost q and bounds l and u. Nil arguments are left unchanged.
// It returns error if the lengths do not match the problem or if l > u for any constraint.
func (s *Solver) UpdateVectors(q, l, u []float64) error {
	if q != nil {
		if len(q) != s.n {
			return fmt.Errorf("invalid cost vector length: %d != %d", len(q), s.n)
		}
		copy(s.q, q)
	}

	if l == nil {
		l = s.l
	}
	if u == nil {
		u = s.u
	}
	if err := s.setBounds(l, u); err != nil {
		return err
	}

	s.scaleVectors()
	s.updateRho(s.rho, false)

	return nil
}

// UpdateConstraintMatrix replaces constraint matrix with a.
// Sparsity is not tracked so any entry may change. The existing equilibration
// and step sizes are kept: a is scaled with the current factors and the KKT
// matrix is refactorized once.
func (s *Solver) UpdateConstraintMatrix(a mat.Matrix) error {
	r, c := a.Dims()
	if r != s.m || c != s.n {
		return fmt.Errorf("invalid constraint matrix dimensions: [%d x %d] != [%d x %d]", r, c, s.m, s.n)
	}
	s.a.Copy(a)
	s.as.Copy(s.a)
	scaleRowsCols(s.as, s.sc.e, s.sc.d)
	s.updateRho(s.rho, true)

	return nil
}

// Rho returns the current ADMM step size
func (s *Solver) Rho() float64 {
	return s.rho
}

// WarmStart sets the initial primal guess x and dual guess y.
// Nil y resets the dual guess to zero.
func (s *Solver) WarmStart(x, y []float64) error {
	if len(x) != s.n {
		return fmt.Errorf("invalid primal guess length: %d != %d", len(x), s.n)
	}
	if y != nil && len(y) != s.m {
		return fmt.Errorf("invalid dual guess length: %d != %d", len(y), s.m)
	}

	copy(s.xw, x)
	if y == nil {
		zero(s.yw)
	} else {
		copy(s.yw, y)
	}

	return nil
}

// ColdStart resets primal and dual guesses to zero
func (s *Solver) ColdStart() {
	zero(s.xw)
	zero(s.yw)
}

func (s *Solver) setBounds(l, u []float64) error {
	if len(l) != s.m || len(u) != s.m {
		return fmt.Errorf("invalid bounds length: [%d, %d] != %d", len(l), len(u), s.m)
	}
	for i := range l {
		if l[i] > u[i] {
			return fmt.Errorf("invalid bounds of constraint %d: %v > %v", i, l[i], u[i])
		}
	}
	copy(s.l, l)
	copy(s.u, u)

	return nil
}

// setup equilibrates the problem and factorizes the KKT matrix
func (s *Solver) setup() {
	s.sc, s.ps, s.as = equilibrate(s.p, s.a, s.q, s.settings.ScalingIter)
	s.scaleVectors()
	s.updateRho(s.settings.Rho, true)
}

func (s *Solver) scaleVectors() {
	qs := make([]float64, s.n)
	for j := range qs {
		qs[j] = s.sc.c * s.sc.d[j] * s.q[j]
	}
	s.qs = mat.NewVecDense(s.n, qs)

	s.ls = make([]float64, s.m)
	s.us = make([]float64, s.m)
	for i := 0; i < s.m; i++ {
		s.ls[i] = s.sc.e[i] * s.l[i]
		s.us[i] = s.sc.e[i] * s.u[i]
	}
}

// updateRho sets step size per constraint type.
// The KKT matrix is refactorized if force is true or any step size changed.
func (s *Solver) updateRho(rho float64, force bool) {
	changed := rho != s.rho
	s.rho = rho
	for i := range s.rhoVec {
		var r float64
		switch {
		case math.IsInf(s.ls[i], -1) && math.IsInf(s.us[i], 1):
			r = rhoMin
		case s.us[i]-s.ls[i] < rhoTol:
			r = rhoEqScale * rho
		default:
			r = rho
		}
		if r != s.rhoVec[i] {
			changed = true
		}
		s.rhoVec[i] = r
	}

	if force || changed {
		s.factorize()
	}
}

// factorize computes Cholesky factorization of P + sigma*I + A'*diag(rho)*A
func (s *Solver) factorize() {
	ra := mat.DenseCopyOf(s.as)
	scaleRowsCols(ra, s.rhoVec, ones(s.n))

	k := &mat.Dense{}
	k.Mul(s.as.T(), ra)
	k.Add(k, s.ps)

	sym := mat.NewSymDense(s.n, nil)
	for i := 0; i < s.n; i++ {
		for j := i; j < s.n; j++ {
			v := 0.5 * (k.At(i, j) + k.At(j, i))
			if i == j {
				v += s.settings.Sigma
			}
			sym.SetSym(i, j, v)
		}
	}

	s.factor = s.kkt.Factorize(sym)
}

// Solve runs ADMM iterations from the current warm start until convergence,
// infeasibility detection or budget exhaustion.
// Termination is checked every CheckInterval iterations and at the last one.
func (s *Solver) Solve() *Result {
	start := time.Now()
	set := s.settings
	res := &Result{Status: Unsolved}

	if !s.factor {
		res.Status = NumericalError
		res.Elapsed = time.Since(start)
		return res
	}

	n, m := s.n, s.m
	d, e, c := s.sc.d, s.sc.e, s.sc.c

	x := mat.NewVecDense(n, nil)
	for j := 0; j < n; j++ {
		x.SetVec(j, s.xw[j]/d[j])
	}
	y := mat.NewVecDense(m, nil)
	for i := 0; i < m; i++ {
		y.SetVec(i, c*s.yw[i]/e[i])
	}
	z := mat.NewVecDense(m, nil)
	z.MulVec(s.as, x)
	s.project(z)

	xt := mat.NewVecDense(n, nil)
	zt := mat.NewVecDense(m, nil)
	rhs := mat.NewVecDense(n, nil)
	w := mat.NewVecDense(m, nil)
	xPrev := mat.NewVecDense(n, nil)
	yPrev := mat.NewVecDense(m, nil)

	res.Status = MaxIterReached
	for iter := 1; iter <= set.MaxIter; iter++ {
		check := iter%set.CheckInterval == 0 || iter == set.MaxIter
		if check {
			xPrev.CopyVec(x)
			yPrev.CopyVec(y)
		}

		// rhs = sigma*x - q + A'(rho.*z - y)
		for i := 0; i < m; i++ {
			w.SetVec(i, s.rhoVec[i]*z.AtVec(i)-y.AtVec(i))
		}
		rhs.MulVec(s.as.T(), w)
		rhs.AddScaledVec(rhs, set.Sigma, x)
		rhs.SubVec(rhs, s.qs)

		if err := s.kkt.SolveVecTo(xt, rhs); err != nil {
			res.Status = NumericalError
			break
		}
		zt.MulVec(s.as, xt)

		// relaxed updates
		x.ScaleVec(1-set.Alpha, x)
		x.AddScaledVec(x, set.Alpha, xt)
		for i := 0; i < m; i++ {
			zr := set.Alpha*zt.AtVec(i) + (1-set.Alpha)*z.AtVec(i)
			zn := clamp(zr+y.AtVec(i)/s.rhoVec[i], s.ls[i], s.us[i])
			y.SetVec(i, y.AtVec(i)+s.rhoVec[i]*(zr-zn))
			z.SetVec(i, zn)
		}
		res.Iter = iter

		if check {
			if hasNaN(x) || hasNaN(y) {
				res.Status = NumericalError
				break
			}

			s.unscaleTo(s.w.xu, s.w.zu, s.w.yu, x, z, y)
			converged, pr, dr := s.converged(s.w.xu, s.w.zu, s.w.yu)
			res.PrimRes, res.DualRes = pr, dr
			if converged {
				res.Status = Solved
				break
			}

			if s.primalInfeasible(y, yPrev) {
				res.Status = PrimalInfeasible
				break
			}

			if s.dualInfeasible(x, xPrev) {
				res.Status = DualInfeasible
				break
			}
		}

		if set.AdaptiveRho && iter%set.AdaptiveRhoInterval == 0 {
			s.adaptRho(x, z, y)
			if !s.factor {
				res.Status = NumericalError
				break
			}
		}

		if set.TimeLimit > 0 && time.Since(start) > set.TimeLimit {
			res.Status = TimeLimitReached
			break
		}
	}

	xu, zu, yu := mat.NewVecDense(n, nil), mat.NewVecDense(m, nil), mat.NewVecDense(m, nil)
	s.unscaleTo(xu, zu, yu, x, z, y)
	res.X = xu.RawVector().Data
	res.Y = yu.RawVector().Data
	res.Obj = s.objective(xu)
	res.Elapsed = time.Since(start)
	copy(s.xw, res.X)
	copy(s.yw, res.Y)

	if set.Verbose {
		s.log.Info("qp solve",
			zap.Stringer("status", res.Status),
			zap.Int("iter", res.Iter),
			zap.Float64("obj", res.Obj),
			zap.Float64("prim_res", res.PrimRes),
			zap.Float64("dual_res", res.DualRes),
			zap.Duration("elapsed", res.Elapsed),
			zap.String("x", fmt.Sprintf("%v", mx.Format(xu.T()))),
		)
	}

	return res
}

// unscaleTo stores x, z and y in original problem coordinates into xu, zu and yu
func (s *Solver) unscaleTo(xu, zu, yu, x, z, y *mat.VecDense) {
	for j := 0; j < s.n; j++ {
		xu.SetVec(j, s.sc.d[j]*x.AtVec(j))
	}
	for i := 0; i < s.m; i++ {
		zu.SetVec(i, z.AtVec(i)/s.sc.e[i])
		yu.SetVec(i, s.sc.e[i]*y.AtVec(i)/s.sc.c)
	}
}

// converged checks primal and dual residuals against tolerances in original coordinates
func (s *Solver) converged(x, z, y *mat.VecDense) (bool, float64, float64) {
	w := s.w

	w.ax.MulVec(s.a, x)
	w.r.SubVec(w.ax, z)
	prim := matrix.VecInfNorm(w.r)
	epsPrim := s.settings.EpsAbs + s.settings.EpsRel*math.Max(matrix.VecInfNorm(w.ax), matrix.VecInfNorm(z))

	w.px.MulVec(s.p, x)
	w.aty.MulVec(s.a.T(), y)
	qNorm := floats.Norm(s.q, math.Inf(1))
	w.rd.AddVec(w.px, w.aty)
	for j := 0; j < s.n; j++ {
		w.rd.SetVec(j, w.rd.AtVec(j)+s.q[j])
	}
	dual := matrix.VecInfNorm(w.rd)
	epsDual := s.settings.EpsAbs + s.settings.EpsRel*math.Max(matrix.VecInfNorm(w.px), math.Max(matrix.VecInfNorm(w.aty), qNorm))

	return prim <= epsPrim && dual <= epsDual, prim, dual
}

// primalInfeasible checks whether the dual iterate difference certifies primal infeasibility
func (s *Solver) primalInfeasible(y, yPrev *mat.VecDense) bool {
	dy := s.w.dy
	for i := 0; i < s.m; i++ {
		v := s.sc.e[i] * (y.AtVec(i) - yPrev.AtVec(i)) / s.sc.c
		// project on the normal cone of infinite bounds
		if math.IsInf(s.u[i], 1) {
			v = math.Min(v, 0)
		}
		if math.IsInf(s.l[i], -1) {
			v = math.Max(v, 0)
		}
		dy.SetVec(i, v)
	}

	norm := matrix.VecInfNorm(dy)
	if norm < divTol {
		return false
	}

	support := 0.0
	for i := 0; i < s.m; i++ {
		v := dy.AtVec(i)
		switch {
		case v > 0:
			support += s.u[i] * v
		case v < 0:
			support += s.l[i] * v
		}
	}
	if support >= -s.settings.EpsPrimInf*norm {
		return false
	}

	s.w.aty.MulVec(s.a.T(), dy)

	return matrix.VecInfNorm(s.w.aty) < s.settings.EpsPrimInf*norm
}

// dualInfeasible checks whether the primal iterate difference certifies dual infeasibility
func (s *Solver) dualInfeasible(x, xPrev *mat.VecDense) bool {
	dx := s.w.dx
	for j := 0; j < s.n; j++ {
		dx.SetVec(j, s.sc.d[j]*(x.AtVec(j)-xPrev.AtVec(j)))
	}

	norm := matrix.VecInfNorm(dx)
	if norm < divTol {
		return false
	}
	eps := s.settings.EpsDualInf * norm

	if floats.Dot(s.q, dx.RawVector().Data) >= -eps {
		return false
	}

	s.w.pdx.MulVec(s.p, dx)
	if matrix.VecInfNorm(s.w.pdx) >= eps {
		return false
	}

	adx := s.w.adx
	adx.MulVec(s.a, dx)
	for i := 0; i < s.m; i++ {
		v := adx.AtVec(i)
		lInf, uInf := math.IsInf(s.l[i], -1), math.IsInf(s.u[i], 1)
		switch {
		case lInf && uInf:
		case uInf:
			if v < -eps {
				return false
			}
		case lInf:
			if v > eps {
				return false
			}
		default:
			if math.Abs(v) > eps {
				return false
			}
		}
	}

	return true
}

// adaptRho rebalances primal and dual residuals in scaled coordinates
func (s *Solver) adaptRho(x, z, y *mat.VecDense) {
	w := s.w

	w.ax.MulVec(s.as, x)
	w.r.SubVec(w.ax, z)
	prim := matrix.VecInfNorm(w.r) / (math.Max(matrix.VecInfNorm(w.ax), matrix.VecInfNorm(z)) + divTol)

	w.px.MulVec(s.ps, x)
	w.aty.MulVec(s.as.T(), y)
	w.rd.AddVec(w.px, w.aty)
	w.rd.AddVec(w.rd, s.qs)
	dualNorm := math.Max(matrix.VecInfNorm(w.px), math.Max(matrix.VecInfNorm(w.aty), matrix.VecInfNorm(s.qs)))
	dual := matrix.VecInfNorm(w.rd) / (dualNorm + divTol)

	rho := s.rho * math.Sqrt(prim/(dual+divTol))
	rho = math.Min(math.Max(rho, rhoMin), rhoMax)
	if rho > rhoAdaptTol*s.rho || rho < s.rho/rhoAdaptTol {
		s.updateRho(rho, false)
	}
}

func (s *Solver) objective(x *mat.VecDense) float64 {
	return 0.5*mat.Inner(x, s.p, x) + floats.Dot(s.q, x.RawVector().Data)
}

func (s *Solver) project(z *mat.VecDense) {
	for i := 0; i < s.m; i++ {
		z.SetVec(i, clamp(z.AtVec(i), s.ls[i], s.us[i]))
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func hasNaN(v *mat.VecDense) bool {
	return floats.HasNaN(v.RawVector().Data)
}

func ones(n int) []float64 {
	o := make([]float64, n)
	for i := range o {
		o[i] = 1.0
	}
	return o
}

func zero(v []float64) {
	for i := range v {
		v[i] = 0
	}
}
