package sim

import (
	"testing"

	lateral "github.com/milosgajdos/go-lateral"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestNewTrackingPlot(t *testing.T) {
	assert := assert.New(t)

	ref := lateral.Trajectory{
		lateral.NewPoint(0, 0, 0, 1),
		lateral.NewPoint(1, 0, 0, 1),
		lateral.NewPoint(2, 0, 0, 1),
	}
	driven := mat.NewDense(3, 2, []float64{
		0, 1,
		1, 0.5,
		2, 0.1,
	})

	plt, err := NewTrackingPlot(ref, driven)
	assert.NotNil(plt)
	assert.NoError(err)

	plt, err = NewTrackingPlot(nil, nil)
	assert.Nil(plt)
	assert.Error(err)

	plt, err = NewTrackingPlot(ref, mat.NewDense(3, 1, nil))
	assert.Nil(plt)
	assert.Error(err)
}

func TestNewSteeringPlot(t *testing.T) {
	assert := assert.New(t)

	steer := mat.NewDense(3, 3, []float64{
		0.00, 0.1, 0.00,
		0.05, 0.2, 0.02,
		0.10, 0.2, 0.06,
	})

	plt, err := NewSteeringPlot(steer)
	assert.NotNil(plt)
	assert.NoError(err)

	plt, err = NewSteeringPlot(nil)
	assert.Nil(plt)
	assert.Error(err)

	plt, err = NewSteeringPlot(mat.NewDense(3, 2, nil))
	assert.Nil(plt)
	assert.Error(err)
}
