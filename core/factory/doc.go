// Package factory provides a small generic registry used to instantiate
// pluggable modules (solver backends, metrics sinks) from configuration.
// Modules are defined by a type string and a map of raw settings decoded
// into typed structs by the module's factory.
//
//	reg := factory.NewRegistry[milp.Solver]()
//	_ = reg.Register("gonum", func(conf map[string]any) (milp.Solver, error) {
//	    var c struct{ MaxNodes int `json:"max_nodes"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newSolver(c.MaxNodes), nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "gonum"})
package factory
