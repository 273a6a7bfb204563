// Package control provides the feedback controllers that drive the
// simulated gantry.
//
//   - [PID]: position loop for one axis, damped on measured velocity
//   - [Servo]: one PID per axis with per-axis engage state
//
// # Usage
//
//	servo := control.NewServo(6, control.DefaultGains())
//	servo.SetTargets(x.Positions())
//	servo.SetTarget(2, 150)
//	s := sim.New(gantry, integ, servo)
//
// [PID] and [Servo] implement [dynamo.Configurable] for live tuning.
package control
