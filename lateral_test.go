package lateral

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuaternionYaw(t *testing.T) {
	assert := assert.New(t)

	for _, yaw := range []float64{0, 0.3, -1.2, math.Pi / 2, 3.0, -3.0} {
		q := QuaternionFromYaw(yaw)
		assert.InDelta(yaw, q.Yaw(), 1e-9)
	}

	// identity quaternion
	assert.Equal(0.0, Quaternion{W: 1}.Yaw())
}

func TestNewPoint(t *testing.T) {
	assert := assert.New(t)

	p := NewPoint(1.0, -2.0, 0.5, 10.0)
	assert.Equal(1.0, p.X)
	assert.Equal(-2.0, p.Y)
	assert.Equal(10.0, p.Velocity)
	assert.InDelta(0.5, p.Yaw(), 1e-12)
}
