package api

import "beacon/internal/registry"

// FromInstance converts a registry instance into its wire form.
func FromInstance(inst registry.Instance) Instance {
	return Instance{
		ID:       inst.ID,
		Name:     inst.Name,
		Host:     inst.Host,
		Port:     inst.Port,
		PID:      inst.PID,
		Meta:     inst.Meta,
		LastSeen: inst.LastSeen,
	}
}

// FromInstances converts a registry snapshot into its wire form.
func FromInstances(services map[string][]registry.Instance) map[string][]Instance {
	out := make(map[string][]Instance, len(services))
	for name, instances := range services {
		converted := make([]Instance, 0, len(instances))
		for _, inst := range instances {
			converted = append(converted, FromInstance(inst))
		}
		out[name] = converted
	}
	return out
}

// ToRegistration converts a register request into registry input.
func (r RegisterRequest) ToRegistration() registry.Registration {
	return registry.Registration{
		Name: r.Name,
		Host: r.Host,
		Port: r.Port,
		PID:  r.PID,
		ID:   r.ID,
		Meta: r.Meta,
	}
}
