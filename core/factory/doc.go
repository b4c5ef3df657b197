// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[coupling.TrafficSource]()
//	reg.MustRegister("synthetic", func(conf map[string]any) (coupling.TrafficSource, error) {
//	    var c simulator.Config
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return simulator.NewSource(c)
//	})
//	src, err := reg.Create(factory.ModuleConfig{Type: "synthetic", Conf: map[string]any{"vehicles": 400}})
package factory
