package backend

// Registry is a name-keyed lookup of configured backend adapters,
// built once at startup from config.Config.Backends and handed to the
// outbox worker and webhook router.
type Registry map[string]Capability

func (r Registry) Get(name string) (Capability, bool) {
	c, ok := r[name]
	return c, ok
}
