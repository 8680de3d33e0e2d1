// Package milp describes mixed-integer linear programs and the contract a
// solver backend must satisfy. Backends live outside the core (see
// infra/solver) and register themselves by name.
package milp
