package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ActuatorConfig configures the steering actuator
type ActuatorConfig struct {
	// Gain is the static gain
	Gain float64
	// Zeta is the damping ratio
	Zeta float64
	// OmegaN is the natural frequency [rad/s]
	OmegaN float64
	// DelayTime is the dead time [s]
	DelayTime float64
	// MaxAngle is the tire angle limit [rad]; 0 disables it
	MaxAngle float64
	// MaxRate is the tire angle rate limit [rad/s]; 0 disables it
	MaxRate float64
}

// Actuator is a second order steering actuator with dead time:
//
//	delta'' = omega_n^2*(gain*u(t - delay) - delta) - 2*zeta*omega_n*delta'
//
// The continuous model is discretized with zero order hold.
type Actuator struct {
	c     ActuatorConfig
	sys   *Discrete
	x     mat.Vector
	queue []float64
}

// NewActuator creates new Actuator advanced by time step dt and returns it.
// It returns error if the configuration is invalid.
func NewActuator(c ActuatorConfig, dt float64) (*Actuator, error) {
	if !(dt > 0) {
		return nil, fmt.Errorf("invalid time step: %v", dt)
	}

	if !(c.OmegaN > 0) || c.Zeta < 0 || c.DelayTime < 0 || c.MaxAngle < 0 || c.MaxRate < 0 {
		return nil, fmt.Errorf("invalid actuator configuration: %+v", c)
	}

	wn2 := c.OmegaN * c.OmegaN
	A := mat.NewDense(2, 2, []float64{
		0, 1,
		-wn2, -2 * c.Zeta * c.OmegaN,
	})
	B := mat.NewDense(2, 1, []float64{0, wn2 * c.Gain})
	C := mat.NewDense(1, 2, []float64{1, 0})

	ct, err := NewContinuous(A, B, C, nil)
	if err != nil {
		return nil, err
	}

	sys, err := ct.ToDiscrete(dt)
	if err != nil {
		return nil, err
	}

	return &Actuator{
		c:     c,
		sys:   sys,
		x:     mat.NewVecDense(2, nil),
		queue: make([]float64, int(math.RoundToEven(c.DelayTime/dt))),
	}, nil
}

// Reset sets the actuator state and fills the dead time queue with angle
func (a *Actuator) Reset(angle, rate float64) {
	a.x = mat.NewVecDense(2, []float64{angle, rate})
	for i := range a.queue {
		a.queue[i] = angle
	}
}

// State returns the tire angle and tire angle rate
func (a *Actuator) State() (angle, rate float64) {
	return a.x.AtVec(0), a.x.AtVec(1)
}

// Step advances the actuator by one time step given command cmd
// and returns the new tire angle and rate.
func (a *Actuator) Step(cmd float64) (angle, rate float64) {
	u := cmd
	if len(a.queue) > 0 {
		u = a.queue[0]
		copy(a.queue, a.queue[1:])
		a.queue[len(a.queue)-1] = cmd
	}

	x, err := a.sys.Propagate(a.x, mat.NewVecDense(1, []float64{u}))
	if err != nil {
		// dimensions are fixed at construction
		panic(err)
	}

	angle, rate = x.AtVec(0), x.AtVec(1)
	if a.c.MaxRate > 0 {
		rate = math.Max(-a.c.MaxRate, math.Min(rate, a.c.MaxRate))
	}
	if a.c.MaxAngle > 0 && math.Abs(angle) > a.c.MaxAngle {
		angle = math.Copysign(a.c.MaxAngle, angle)
		rate = 0
	}
	a.x = mat.NewVecDense(2, []float64{angle, rate})

	return angle, rate
}
