package config

import (
	"errors"
	"testing"
	"time"

	"github.com/milosgajdos/go-lateral/qp"
	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	assert := assert.New(t)

	c, err := Load("testdata/controller.yaml")
	assert.NoError(err)
	assert.NotNil(c)

	assert.Equal(2.7, c.Vehicle.Wheelbase)
	assert.Equal(20, c.MPC.PredictionHorizon)
	assert.Equal(5, c.MPC.ControlHorizon)
	assert.Equal(0.1, c.MPC.SteerDelayTime)
	assert.Equal(-3.0, c.Longitudinal.UMin)

	// explicit solver options override defaults, the rest keep them
	def := qp.DefaultSettings()
	assert.Equal(4000, c.Solver.MaxIter)
	assert.Equal(15*time.Millisecond, c.Solver.TimeLimit)
	assert.Equal(def.EpsAbs, c.Solver.EpsAbs)
	assert.Equal(def.EpsRel, c.Solver.EpsRel)
	assert.False(c.Solver.Verbose)

	m := c.MPCConfig()
	assert.Equal(2.7, m.Wheelbase)
	assert.Equal(2, m.DelaySteps())
	assert.Equal(4000, m.Solver.MaxIter)
	assert.Equal(def.Rho, m.Solver.Rho)
	assert.NoError(m.Validate())

	p := c.PIDConfig()
	assert.Equal(1.0, p.Kp)
	assert.Equal(2.0, p.UMax)

	c, err = Load("testdata/missing.yaml")
	assert.Nil(c)
	assert.Error(err)
}

func TestParseUnknownField(t *testing.T) {
	assert := assert.New(t)

	c, err := Load("testdata/unknown.yaml")
	assert.Nil(c)
	assert.Error(err)
}

func TestParseInvalid(t *testing.T) {
	assert := assert.New(t)

	// empty document has no horizon
	c, err := Parse(nil)
	assert.Nil(c)
	assert.True(errors.Is(err, ErrInvalid))

	c, err = Parse([]byte("mpc_lateral: ["))
	assert.Nil(c)
	assert.Error(err)
	assert.False(errors.Is(err, ErrInvalid))
}

func TestValidate(t *testing.T) {
	assert := assert.New(t)

	valid, err := Load("testdata/controller.yaml")
	assert.NoError(err)
	assert.NoError(valid.Validate())

	invalid := []func(*Config){
		func(c *Config) { c.MPC.ControlHorizon = c.MPC.PredictionHorizon + 1 },
		func(c *Config) { c.MPC.DT = -0.1 },
		func(c *Config) { c.MPC.SteerDelayTime = 5 },
		func(c *Config) { c.Vehicle.Wheelbase = 0 },
		func(c *Config) { c.Solver.MaxIter = 0 },
		func(c *Config) { c.Solver.EpsAbs, c.Solver.EpsRel = 0, 0 },
		func(c *Config) { c.Longitudinal.UMin = 5 },
	}
	for _, f := range invalid {
		c := *valid
		f(&c)
		err := c.Validate()
		assert.Error(err)
		assert.True(errors.Is(err, ErrInvalid))
	}
}
