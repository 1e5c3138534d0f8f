package features

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/voxprep/algorithms/common"
)

// FeatureMatrix is a row-major time x feature matrix
type FeatureMatrix struct {
	Rows int       `msgpack:"rows"`
	Cols int       `msgpack:"cols"`
	Data []float64 `msgpack:"data"`
}

// FromRows packs equally sized rows into a FeatureMatrix
func FromRows(rows [][]float64) (FeatureMatrix, error) {
	if len(rows) == 0 {
		return FeatureMatrix{}, nil
	}

	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return FeatureMatrix{}, fmt.Errorf("row %d has %d values, expected %d", i, len(row), cols)
		}
		data = append(data, row...)
	}

	return FeatureMatrix{Rows: len(rows), Cols: cols, Data: data}, nil
}

// Empty reports whether the matrix holds no values
func (m FeatureMatrix) Empty() bool {
	return m.Rows == 0 || m.Cols == 0 || len(m.Data) == 0
}

// Row returns row i without copying
func (m FeatureMatrix) Row(i int) []float64 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Dense returns the matrix as a gonum Dense sharing the same backing data,
// or nil for an empty matrix
func (m FeatureMatrix) Dense() *mat.Dense {
	if m.Empty() {
		return nil
	}
	return mat.NewDense(m.Rows, m.Cols, m.Data)
}

// Mean returns the mean over every value
func (m FeatureMatrix) Mean() float64 {
	return common.Mean(m.Data)
}

// PopStdDev returns the population standard deviation over every value
func (m FeatureMatrix) PopStdDev() float64 {
	return common.PopStdDev(m.Data)
}

// Normalize returns (m - mean) / std as a new matrix
func (m FeatureMatrix) Normalize(mean, std float64) FeatureMatrix {
	out := FeatureMatrix{Rows: m.Rows, Cols: m.Cols, Data: make([]float64, len(m.Data))}
	for i, v := range m.Data {
		out.Data[i] = (v - mean) / std
	}
	return out
}
