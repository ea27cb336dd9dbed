// Package foundry models Go types as ordered attribute schemas and compiles
// fast deconstruction and construction routines against them.
//
// A schema is derived once per type, either from struct storage (Structural)
// or from accessor method pairs (Exposed), and paired with a construction
// strategy: zero value plus setters, positional all-args assembly, a custom
// factory, or name-based resolution for fixed-instance domains. Compiled
// accessors move attribute values through flat per-kind container channels;
// flatteners expose the same data as tagged field lists, and visitor handlers
// dispatch those fields to the most specific registered handler.
package foundry
