package pid

import (
	"fmt"
	"math"
)

const (
	// DefaultDT is the time step assumed on the first update [s]
	DefaultDT = 0.02
	// MinDT is the smallest time step used between updates [s]
	MinDT = 1e-6
)

// Config configures PID gains and output limits
type Config struct {
	// Kp is the proportional gain
	Kp float64
	// Ki is the integral gain
	Ki float64
	// Kd is the derivative gain
	Kd float64
	// UMin is the minimum output
	UMin float64
	// UMax is the maximum output
	UMax float64
}

// Validate returns error if c is invalid
func (c Config) Validate() error {
	gains := []float64{c.Kp, c.Ki, c.Kd}
	for _, g := range gains {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return fmt.Errorf("invalid gains: %v", gains)
		}
	}

	if c.UMin > c.UMax {
		return fmt.Errorf("invalid output limits: [%v, %v]", c.UMin, c.UMax)
	}

	return nil
}

// PID is a velocity tracking PID controller which computes its own time step
// from the timestamps passed to Accel
type PID struct {
	c        Config
	integral float64
	prevErr  float64
	prevT    float64
	started  bool
}

// New creates new PID and returns it.
// It returns error if c is invalid.
func New(c Config) (*PID, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &PID{c: c}, nil
}

// Accel returns acceleration command driving current velocity to target at time t [s].
// The output is clamped to the configured limits.
func (p *PID) Accel(target, current, t float64) float64 {
	e := target - current

	dt := DefaultDT
	if p.started {
		dt = math.Max(t-p.prevT, MinDT)
	}

	p.integral += e * dt

	d := 0.0
	if p.started {
		d = (e - p.prevErr) / dt
	}

	u := p.c.Kp*e + p.c.Ki*p.integral + p.c.Kd*d

	p.prevErr = e
	p.prevT = t
	p.started = true

	return math.Max(p.c.UMin, math.Min(u, p.c.UMax))
}

// Integral returns the accumulated velocity error
func (p *PID) Integral() float64 {
	return p.integral
}

// Reset clears the controller state
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.prevT = 0
	p.started = false
}
