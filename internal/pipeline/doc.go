// Package pipeline models a transform chain as an explicit ordered list of steps.
//
// A step maps a batch of in-memory assets to a new batch. Optional optimizations
// are expressed with AddIf/When: when the condition is false the step is replaced
// by the identity bridge (Noop), so the chain's length and step names never depend
// on the build mode.
package pipeline
