/*
Package sandbox provides membrane-isolated JavaScript evaluation.

# Overview

Each sandbox owns two goja runtimes: a trusted outer realm and an
isolated inner realm, joined by the membrane environment from
internal/membrane. At construction the outer global's own descriptors
(plus any endowments) are remapped onto the inner global through the
membrane, so unqualified identifiers inside evaluated source resolve
to proxies rather than direct outer references.

# Layers

 1. Runtimes: two goja VMs, one per realm
 2. Membrane: identity-preserving proxy layer between them
 3. Console: host-provided endowment capturing output as log entries
 4. Limits: evaluation timeout via interrupt, call stack ceiling

# Security Model

Sandboxed code cannot:
  - Obtain a live reference to any outer object or function
  - Mutate outer object shape (writes land on this realm's shadow)
  - Observe outer error identity or stack traces
  - Call capabilities replaced through the distortion table

Resource quotas (CPU, memory) are host-level concerns; the sandbox
provides a wall-clock timeout and a call stack ceiling only.

# Usage Example

	sb, err := sandbox.New(sandbox.DefaultConfig(),
		sandbox.WithOuterRuntime(outer),
		sandbox.WithDistortions(d))
	if err != nil { ... }
	defer sb.Close()

	result, err := sb.Evaluate(ctx, src)

# Pooling

Pool pre-creates sandboxes and rebuilds them on release; membrane
state is never shared between tenants.
*/
package sandbox
