// Package physics provides the motion model of the simulated gantry.
//
// [Gantry] treats every axis as an independent carriage of mass m
// dragged by viscous friction and pushed by a motor force:
//
//	m * a = F - c * v
//
// Forces are clipped to the motor limit before they are applied. The
// model implements [dynamo.System], [dynamo.Hamiltonian] (kinetic energy)
// and [dynamo.Configurable].
package physics
