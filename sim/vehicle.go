package sim

import (
	"fmt"
	"math"
)

// Vehicle is a kinematic bicycle model referenced at the rear axle
type Vehicle struct {
	// X is the position on x axis [m]
	X float64
	// Y is the position on y axis [m]
	Y float64
	// Yaw is the heading [rad]
	Yaw float64
	// Velocity is the longitudinal velocity [m/s]
	Velocity float64
	// Wheelbase is the distance between axles [m]
	Wheelbase float64
}

// NewVehicle creates new Vehicle and returns it.
// It returns error if the wheelbase is not positive.
func NewVehicle(x, y, yaw, v, wheelbase float64) (*Vehicle, error) {
	if !(wheelbase > 0) {
		return nil, fmt.Errorf("invalid wheelbase: %v", wheelbase)
	}

	return &Vehicle{X: x, Y: y, Yaw: yaw, Velocity: v, Wheelbase: wheelbase}, nil
}

// Step advances the vehicle by dt given tire angle steer and acceleration accel.
// Velocity does not drop below zero.
func (v *Vehicle) Step(steer, accel, dt float64) {
	v.X += v.Velocity * math.Cos(v.Yaw) * dt
	v.Y += v.Velocity * math.Sin(v.Yaw) * dt
	v.Yaw += v.Velocity / v.Wheelbase * math.Tan(steer) * dt
	v.Velocity = math.Max(0, v.Velocity+accel*dt)
}
