package strategy

// Defaults returns the built-in strategies in registration order.
func Defaults() []Strategy {
	return []Strategy{
		Conjunction,
		IdentityRemoval,
		RangeByIsCount,
		LabeledEnd,
		MarkerVerification,
	}
}

// DefaultRegistry returns a registry holding the built-in strategies.
func DefaultRegistry(opts ...RegistryOption) *Registry {
	r := NewRegistry(opts...)
	if err := r.Register(Defaults()...); err != nil {
		// The built-in set is static; a failure here is a programming error.
		panic(err)
	}
	return r
}
