package hologram

import (
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// weightedGram returns Gᴴ·diag(w)·G, an n×n Hermitian matrix.
func weightedGram(G [][]complex128, w []float64) [][]complex128 {
	n := 0
	if len(G) > 0 {
		n = len(G[0])
	}
	H := make([][]complex128, n)
	for j := range H {
		H[j] = make([]complex128, n)
	}
	for i, row := range G {
		wi := complex(w[i], 0)
		for j := 0; j < n; j++ {
			cj := cmplx.Conj(row[j]) * wi
			for l := j; l < n; l++ {
				H[j][l] += cj * row[l]
			}
		}
	}
	for j := 0; j < n; j++ {
		H[j][j] = complex(real(H[j][j]), 0)
		for l := j + 1; l < n; l++ {
			H[l][j] = cmplx.Conj(H[j][l])
		}
	}
	return H
}

// focalGram returns G·Gᴴ, the m×m coupling of every pair of foci through the sources.
func focalGram(G [][]complex128) [][]complex128 {
	m := len(G)
	C := make([][]complex128, m)
	for i := range C {
		C[i] = make([]complex128, m)
	}
	for i, gi := range G {
		for l := i; l < m; l++ {
			var sum complex128
			for j, g := range G[l] {
				sum += gi[j] * cmplx.Conj(g)
			}
			C[i][l] = sum
			C[l][i] = cmplx.Conj(sum)
		}
		C[i][i] = complex(real(C[i][i]), 0)
	}
	return C
}

// quadForm returns Re(xᴴ·H·x).
func quadForm(H [][]complex128, x []complex128) float64 {
	var sum complex128
	for j, row := range H {
		var s complex128
		for l, h := range row {
			s += h * x[l]
		}
		sum += cmplx.Conj(x[j]) * s
	}
	return real(sum)
}

// embedHermitian maps the n×n Hermitian H = A + iB onto the 2n×2n real
// symmetric matrix [[A, −B], [B, A]]. Each eigenvalue of H appears twice in
// the embedding, and an eigenvector (u; v) of the embedding gives the
// eigenvector u + iv of H.
func embedHermitian(H [][]complex128) *mat.SymDense {
	n := len(H)
	S := mat.NewSymDense(2*n, nil)
	for j := 0; j < n; j++ {
		for l := j; l < n; l++ {
			a, b := real(H[j][l]), imag(H[j][l])
			S.SetSym(j, l, a)
			S.SetSym(n+j, n+l, a)
			S.SetSym(j, n+l, -b)
			S.SetSym(l, n+j, b)
		}
	}
	return S
}

// dominantEigen returns the largest eigenvalue of the Hermitian matrix H and
// an associated unit eigenvector. ok is false if the decomposition failed.
func dominantEigen(H [][]complex128) (value float64, vec []complex128, ok bool) {
	n := len(H)
	var es mat.EigenSym
	if !es.Factorize(embedHermitian(H), true) {
		return 0, nil, false
	}
	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)

	top := len(values) - 1
	vec = make([]complex128, n)
	for j := 0; j < n; j++ {
		vec[j] = complex(vectors.At(j, top), vectors.At(n+j, top))
	}
	return values[top], vec, true
}

// solveDamped solves (A + λ·I)·x = b for a symmetric positive semi-definite A.
// ok is false when the damped matrix is not positive definite.
func solveDamped(A *mat.SymDense, lambda float64, b []float64) (x []float64, ok bool) {
	n := A.SymmetricDim()
	D := mat.NewSymDense(n, nil)
	D.CopySym(A)
	for i := 0; i < n; i++ {
		D.SetSym(i, i, D.At(i, i)+lambda)
	}
	var ch mat.Cholesky
	if !ch.Factorize(D) {
		return nil, false
	}
	var dst mat.VecDense
	if err := ch.SolveVecTo(&dst, mat.NewVecDense(n, b)); err != nil {
		return nil, false
	}
	return dst.RawVector().Data, true
}

// hermitianSolver solves H·z = b for a Hermitian positive definite H through
// the Cholesky factor of its real embedding.
type hermitianSolver struct {
	n  int
	ch mat.Cholesky
}

func newHermitianSolver(H [][]complex128) (*hermitianSolver, bool) {
	s := &hermitianSolver{n: len(H)}
	if !s.ch.Factorize(embedHermitian(H)) {
		return nil, false
	}
	return s, true
}

func (s *hermitianSolver) solve(b []complex128) ([]complex128, bool) {
	rhs := make([]float64, 2*s.n)
	for j, v := range b {
		rhs[j], rhs[s.n+j] = real(v), imag(v)
	}
	var dst mat.VecDense
	if err := s.ch.SolveVecTo(&dst, mat.NewVecDense(2*s.n, rhs)); err != nil {
		return nil, false
	}
	z := make([]complex128, s.n)
	for j := range z {
		z[j] = complex(dst.AtVec(j), dst.AtVec(s.n+j))
	}
	return z, true
}

// tikhonovInverse returns W = (G·Gᴴ + α²·I)⁻¹. The regularised pseudo-inverse
// of G is then G⁺ = Gᴴ·W, and I − G·G⁺ = α²·W.
func tikhonovInverse(G [][]complex128, alpha float64) ([][]complex128, bool) {
	C := focalGram(G)
	for i := range C {
		C[i][i] += complex(alpha*alpha, 0)
	}
	s, ok := newHermitianSolver(C)
	if !ok {
		return nil, false
	}
	m := len(C)
	W := make([][]complex128, m)
	for i := range W {
		W[i] = make([]complex128, m)
	}
	e := make([]complex128, m)
	for k := 0; k < m; k++ {
		e[k] = 1
		col, ok := s.solve(e)
		if !ok {
			return nil, false
		}
		e[k] = 0
		for i, v := range col {
			W[i][k] = v
		}
	}
	// symmetrise rounding
	for i := 0; i < m; i++ {
		W[i][i] = complex(real(W[i][i]), 0)
		for l := i + 1; l < m; l++ {
			v := (W[i][l] + cmplx.Conj(W[l][i])) / 2
			W[i][l], W[l][i] = v, cmplx.Conj(v)
		}
	}
	return W, true
}

// backProject returns Gᴴ·v.
func backProject(G [][]complex128, v []complex128) []complex128 {
	q := make([]complex128, len(G[0]))
	for i, row := range G {
		for j, g := range row {
			q[j] += cmplx.Conj(g) * v[i]
		}
	}
	return q
}
