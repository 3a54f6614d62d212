package authz

// Registry maps entity kinds to their permission handlers. It is
// populated once at startup and read-only afterwards, so lookups need no
// synchronization. Construct it explicitly and inject it; there is no
// package-level instance.
type Registry struct {
	handlers map[EntityKind]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[EntityKind]Handler)}
}

// Register binds a handler to an entity kind. Re-registering the same
// kind overwrites the previous handler, which lets tests swap in doubles.
func (r *Registry) Register(kind EntityKind, h Handler) {
	r.handlers[kind] = h
}

// Lookup returns the handler for a kind, if one is registered.
func (r *Registry) Lookup(kind EntityKind) (Handler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}
