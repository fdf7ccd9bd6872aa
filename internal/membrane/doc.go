/*
Package membrane implements a bidirectional proxy membrane between two
goja runtimes: a trusted outer realm and a sandboxed inner realm.

# Overview

The membrane lets each realm use a controlled view of the other's
object graph while guaranteeing that no live, unmediated reference ever
crosses the boundary. Values cross lazily:

  - Primitives (numbers, strings, booleans, null, undefined, symbols,
    bigints) cross by value, unchanged.
  - Objects and functions cross as revocable proxies backed by a
    placeholder shadow in the receiving realm. The shadow materializes
    its shape (prototype, own descriptors, extensibility/seal/freeze
    state) from a one-time snapshot on first use.

# Identity

The Environment owns one identity map per direction. A value crossing
the same direction twice always yields the same proxy, so === and
instanceof stay coherent inside either realm. A proxy travelling back
to its home realm unwraps to the original.

# Distortions

An identity-keyed substitution table replaces specific outer values
with stand-ins the moment they would cross into the inner realm. The
substitution is per-reference: a capability captured before
registration keeps its original behavior.

# Errors

A call that throws across the boundary never hands the receiving realm
a foreign exception. The thrown value is unwrapped when it originated
on the receiving side, reconstructed against the receiving realm's own
error hierarchy otherwise, with the original stack deliberately
dropped.

# Usage

	env, err := membrane.NewEnvironment(outer, inner,
		membrane.WithDistortions(d))
	if err != nil { ... }
	if err := env.RemapGlobals(nil); err != nil { ... }
	// inner code now resolves outer globals through proxies
*/
package membrane
