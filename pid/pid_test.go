package pid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	assert := assert.New(t)

	p, err := New(Config{Kp: 1, Ki: 0.1, Kd: 0.01, UMin: -3, UMax: 2})
	assert.NoError(err)
	assert.NotNil(p)

	p, err = New(Config{Kp: 1, UMin: 1, UMax: -1})
	assert.Nil(p)
	assert.Error(err)

	p, err = New(Config{Kp: math.NaN(), UMin: -1, UMax: 1})
	assert.Nil(p)
	assert.Error(err)
}

func TestAccel(t *testing.T) {
	assert := assert.New(t)

	p, err := New(Config{Kp: 1, Ki: 0.5, Kd: 0.1, UMin: -3, UMax: 2})
	assert.NoError(err)

	// first update: default time step, no derivative
	u := p.Accel(5, 4, 10)
	assert.InDelta(1*1+0.5*1*DefaultDT, u, 1e-12)
	assert.InDelta(DefaultDT, p.Integral(), 1e-12)

	// second update 0.1s later
	u = p.Accel(5, 4.5, 10.1)
	integral := DefaultDT + 0.5*0.1
	deriv := (0.5 - 1) / 0.1
	assert.InDelta(0.5+0.5*integral+0.1*deriv, u, 1e-9)

	// output is clamped
	assert.Equal(2.0, p.Accel(100, 0, 10.2))
	assert.Equal(-3.0, p.Accel(0, 100, 10.3))
}

func TestAccelSameTimestamp(t *testing.T) {
	assert := assert.New(t)

	p, err := New(Config{Kp: 0, Ki: 1, Kd: 0, UMin: -10, UMax: 10})
	assert.NoError(err)

	p.Accel(1, 0, 1)
	// repeated timestamp uses the minimum time step
	u := p.Accel(1, 0, 1)
	assert.InDelta(DefaultDT+MinDT, u, 1e-12)
	assert.False(math.IsInf(u, 0))
}

func TestReset(t *testing.T) {
	assert := assert.New(t)

	p, err := New(Config{Kp: 1, Ki: 1, Kd: 1, UMin: -10, UMax: 10})
	assert.NoError(err)

	first := p.Accel(2, 1, 0)
	p.Accel(2, 0, 0.5)
	assert.NotZero(p.Integral())

	p.Reset()
	assert.Zero(p.Integral())
	assert.Equal(first, p.Accel(2, 1, 100))
}
