// Package bridge exposes an asynchronous facade as a blocking API that any
// goroutine may call.
//
// A facade is any value whose methods follow the loop package's contract:
// a method taking a loop.Co as its first parameter is an asynchronous
// operation, every other method and every exported field is synchronous.
// When a facade is bound, the bridge builds a binding table for its type
// once, recording for each member whether it is asynchronous and how to
// invoke it. Lookups afterwards are map reads.
//
// Asynchronous members are submitted to the bridge's loop and the caller
// blocks until they complete. Results and errors come back unchanged.
// Synchronous members are used directly on the caller's goroutine.
//
//	b, err := bridge.Build(ctx, func() (*hardware.API, error) {
//		return hardware.BuildSimulator(hardware.SimulatorOptions{})
//	})
//	if err != nil {
//		return err
//	}
//	defer b.Join()
//
//	_, err = b.Call(ctx, "home")
//	name, _ := b.Attr("Name")
//
// Members resolve by Go name or by their snake_case and lowerCamel
// aliases, so "DisengageAxes", "disengage_axes" and "disengageAxes" name
// the same method. Names missing from the facade fall back to the facade's
// Forwarder target, then to the bridge's own methods.
//
// The bridge takes no lock of its own. Concurrent calls are serialized only
// by the loop, and calls from different goroutines run in no particular
// order.
package bridge
