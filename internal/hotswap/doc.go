// Package hotswap holds the robot's hardware API behind one stable handle.
//
// An Adapter starts out holding a simulator. Connect replaces it with a
// controller-backed API once that API has read its instruments, and
// Disconnect falls back to a fresh simulator. Each swap is a single atomic
// pointer store; the API being replaced is retired, never modified, so
// calls already running against it finish normally.
//
// The Adapter is a bridge.Facade and a bridge.Forwarder: members it does
// not define itself are looked up on whichever API it holds at call time.
package hotswap
