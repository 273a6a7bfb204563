// Package dynamo provides the numeric primitives behind the simulated
// gantry: state vectors, systems of ODEs, integrators and feedback
// controllers.
//
// A gantry with n axes is modelled as a State of length 2n laid out as
// positions followed by velocities:
//
//	x = [p0 ... pn-1, v0 ... vn-1]
//
// Control vectors carry one motor force per axis.
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper
//   - [Controller]: feedback controller
//   - [Metric], [Observer]: hooks called once per step
//
// # Thread Safety
//
// None of the types here are safe for concurrent use. Each simulated
// backend owns its own system, integrator and controller.
package dynamo
