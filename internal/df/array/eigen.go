package array

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Covariance computes the sample covariance of the stacked IQ matrix.
// Rows are antenna elements, columns are snapshots. Rows are demeaned and
// the result is normalized by the number of snapshots minus one, matching
// the usual unbiased estimator.
func Covariance(rows [][]complex128) [][]complex128 {
	n := len(rows)
	m := len(rows[0])

	centered := make([][]complex128, n)
	for i, row := range rows {
		var mean complex128
		for _, v := range row {
			mean += v
		}
		mean /= complex(float64(m), 0)

		c := make([]complex128, m)
		for j, v := range row {
			c[j] = v - mean
		}
		centered[i] = c
	}

	cov := make([][]complex128, n)
	for i := range cov {
		cov[i] = make([]complex128, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			var sum complex128
			for t := 0; t < m; t++ {
				sum += centered[i][t] * cmplx.Conj(centered[j][t])
			}
			sum /= complex(float64(m-1), 0)
			cov[i][j] = sum
			cov[j][i] = cmplx.Conj(sum)
		}
	}
	return cov
}

// EigenHermitian decomposes a Hermitian matrix into eigenvalues and
// eigenvectors sorted by descending eigenvalue.
//
// Gonum has no complex Hermitian eigensolver, so H = A + iB is embedded
// into the real symmetric matrix [[A, -B], [B, A]], whose spectrum is
// that of H with every eigenvalue doubled. Each real eigenvector [x; y]
// converts back to the complex eigenvector x + iy. The returned slices
// therefore have length 2n with eigenvalues in duplicate pairs; callers
// that project onto subspaces (as MUSIC does) can use the converted
// vectors directly because the doubled frame spans each subspace with a
// constant factor of two, which Projection accounts for.
func EigenHermitian(h [][]complex128) (values []float64, vectors [][]complex128, err error) {
	n := len(h)
	sym := mat.NewSymDense(2*n, nil)

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			re := real(h[i][j])
			im := imag(h[i][j])
			sym.SetSym(i, j, re)
			sym.SetSym(n+i, n+j, re)
			// Upper-right block is -B; SetSym mirrors it into the
			// lower-left block, which holds B because B is antisymmetric.
			sym.SetSym(i, n+j, -im)
			if i != j {
				sym.SetSym(j, n+i, im)
			}
		}
	}

	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, nil, fmt.Errorf("eigen decomposition failed for %dx%d matrix", n, n)
	}

	raw := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// EigenSym returns ascending order; reverse into descending.
	values = make([]float64, 2*n)
	vectors = make([][]complex128, 2*n)
	for k := 0; k < 2*n; k++ {
		src := 2*n - 1 - k
		values[k] = raw[src]

		v := make([]complex128, n)
		for i := 0; i < n; i++ {
			v[i] = complex(vecs.At(i, src), vecs.At(n+i, src))
		}
		vectors[k] = v
	}

	return values, vectors, nil
}

// Projection computes |Pᴴa|² where P is the subspace spanned by the given
// converted eigenvectors. The factor of two introduced by the real
// embedding (each complex direction appears twice in the frame) is
// divided back out.
func Projection(vectors [][]complex128, a []complex128) float64 {
	var sum float64
	for _, v := range vectors {
		var dot complex128
		for i := range a {
			dot += cmplx.Conj(v[i]) * a[i]
		}
		sum += real(dot)*real(dot) + imag(dot)*imag(dot)
	}
	return sum / 2
}
