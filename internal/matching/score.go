package matching

import (
	"errors"
	"fmt"
	"math"
)

const normEpsilon = 1e-9

var (
	ErrEmptyMatrix       = errors.New("no vectors to stack")
	ErrDimensionMismatch = errors.New("inconsistent vector dimensions")
)

// Matrix is a dense row-major float32 matrix.
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// Stack copies vectors into a matrix. All vectors must share one non-zero dimension.
func Stack(vectors [][]float32) (Matrix, error) {
	if len(vectors) == 0 {
		return Matrix{}, ErrEmptyMatrix
	}

	cols := len(vectors[0])
	if cols == 0 {
		return Matrix{}, fmt.Errorf("%w: row 0 is empty", ErrDimensionMismatch)
	}

	data := make([]float32, 0, len(vectors)*cols)
	for i, v := range vectors {
		if len(v) != cols {
			return Matrix{}, fmt.Errorf("%w: row %d has %d values, expected %d", ErrDimensionMismatch, i, len(v), cols)
		}
		data = append(data, v...)
	}

	return Matrix{Rows: len(vectors), Cols: cols, Data: data}, nil
}

func (m Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// RowNorms returns the L2 norm of every row.
func (m Matrix) RowNorms() []float32 {
	norms := make([]float32, m.Rows)
	for i := range norms {
		var sum float32
		for _, v := range m.Row(i) {
			sum += v * v
		}
		norms[i] = float32(math.Sqrt(float64(sum)))
	}
	return norms
}

// CosineMatrix returns S[i][j] = cos(cv_i, jd_j) in row-major order. Pairs
// whose norm product is not above 1e-9 score 0.
func CosineMatrix(cv, jd Matrix) []float32 {
	if cv.Cols != jd.Cols {
		return nil
	}

	cvNorms := cv.RowNorms()
	jdNorms := jd.RowNorms()

	sim := make([]float32, cv.Rows*jd.Rows)
	for i := 0; i < cv.Rows; i++ {
		a := cv.Row(i)
		for j := 0; j < jd.Rows; j++ {
			denom := cvNorms[i] * jdNorms[j]
			if denom <= normEpsilon {
				continue
			}

			b := jd.Row(j)
			var dot float32
			for k := range a {
				dot += a[k] * b[k]
			}
			sim[i*jd.Rows+j] = dot / denom
		}
	}

	return sim
}

// CosineMean is the mean of the cosine matrix between cv and jd, or 0 when
// either side has no rows or the dimensions differ.
func CosineMean(cv, jd Matrix) float32 {
	if cv.Rows == 0 || jd.Rows == 0 || cv.Cols != jd.Cols {
		return 0
	}

	var total float32
	for _, s := range CosineMatrix(cv, jd) {
		total += s
	}

	return total / float32(cv.Rows*jd.Rows)
}

// MeanPool averages equally sized vectors.
func MeanPool(vectors [][]float32) ([]float32, error) {
	m, err := Stack(vectors)
	if err != nil {
		return nil, err
	}

	mean := make([]float32, m.Cols)
	for i := 0; i < m.Rows; i++ {
		for k, v := range m.Row(i) {
			mean[k] += v
		}
	}
	for k := range mean {
		mean[k] /= float32(m.Rows)
	}

	return mean, nil
}
