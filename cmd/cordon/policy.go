package main

import (
	"fmt"
	"os"

	"github.com/dop251/goja"
	"github.com/goccy/go-yaml"

	"github.com/cordonlabs/cordon/internal/membrane"
)

// Policy declares what an evaluated script may see. Denied globals are
// swapped for stubs that throw on use. Endowments appear as extra
// globals inside the sandbox.
type Policy struct {
	Deny  []string               `yaml:"deny"`
	Endow map[string]interface{} `yaml:"endow"`
}

func loadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	return &p, nil
}

// distortionsFor builds identity-keyed substitutions on the outer
// runtime for every denied global that resolves to an object. Denied
// names that are absent or primitive are ignored.
func (p *Policy) distortionsFor(outer *goja.Runtime) (*membrane.Distortions, error) {
	d := membrane.NewDistortions()
	for _, name := range p.Deny {
		orig := outer.Get(name)
		if orig == nil {
			continue
		}
		if _, ok := orig.(*goja.Object); !ok {
			continue
		}
		if err := d.Replace(orig, deniedStub(outer, name)); err != nil {
			return nil, fmt.Errorf("deny %q: %w", name, err)
		}
	}
	return d, nil
}

func deniedStub(rt *goja.Runtime, name string) goja.Value {
	return rt.ToValue(func(goja.FunctionCall) goja.Value {
		panic(rt.NewTypeError("%s is disabled by policy", name))
	})
}

func (p *Policy) endowments(outer *goja.Runtime) map[string]goja.Value {
	if len(p.Endow) == 0 {
		return nil
	}
	out := make(map[string]goja.Value, len(p.Endow))
	for name, v := range p.Endow {
		out[name] = outer.ToValue(v)
	}
	return out
}
