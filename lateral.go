package lateral

import "math"

// MinVelocity is the floor applied to prediction velocities [m/s]
const MinVelocity = 0.1

// Quaternion is an orientation quaternion
type Quaternion struct {
	X, Y, Z, W float64
}

// QuaternionFromYaw returns a quaternion which rotates by yaw around the z axis
func QuaternionFromYaw(yaw float64) Quaternion {
	return Quaternion{Z: math.Sin(yaw / 2), W: math.Cos(yaw / 2)}
}

// Yaw returns the rotation of q around the z axis in radians
func (q Quaternion) Yaw() float64 {
	return math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
}

// Point is a reference trajectory point
type Point struct {
	// X is the point position on x axis [m]
	X float64
	// Y is the point position on y axis [m]
	Y float64
	// Orientation is the path orientation at the point
	Orientation Quaternion
	// Velocity is the target longitudinal velocity [m/s]
	Velocity float64
}

// NewPoint creates a reference point from 2D position, yaw and target velocity
func NewPoint(x, y, yaw, v float64) Point {
	return Point{X: x, Y: y, Orientation: QuaternionFromYaw(yaw), Velocity: v}
}

// Yaw returns the path heading at p
func (p Point) Yaw() float64 {
	return p.Orientation.Yaw()
}

// Trajectory is an ordered sequence of reference points
type Trajectory []Point

// VehicleState is the measured state of the controlled vehicle
type VehicleState struct {
	// X is the vehicle position on x axis [m]
	X float64
	// Y is the vehicle position on y axis [m]
	Y float64
	// Yaw is the vehicle heading [rad]
	Yaw float64
	// Velocity is the longitudinal velocity [m/s]
	Velocity float64
	// Steering is the measured tire angle [rad]
	Steering float64
	// SteeringRate is the measured tire angle rate [rad/s]
	SteeringRate float64
	// Time is the measurement timestamp [s]
	Time float64
}

// Command is a vehicle control command
type Command struct {
	// Steering is the tire angle command [rad]
	Steering float64
	// Acceleration is the longitudinal acceleration command [m/s^2]
	Acceleration float64
	// Time is the timestamp the command was computed for [s]
	Time float64
}

// Controller computes vehicle commands from a reference trajectory
type Controller interface {
	// Control computes the command for the current tick
	Control(Trajectory, VehicleState) Command
}

// Longitudinal computes acceleration commands from a velocity error
type Longitudinal interface {
	// Accel returns acceleration for target and current velocity at time t
	Accel(target, current, t float64) float64
	// Reset clears controller internal state
	Reset()
}
