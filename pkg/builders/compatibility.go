package builders

// NewBuilder is a shorthand for NewStateMachineBuilder with string state ids
func NewBuilder() *StateMachineBuilder[string] {
	return NewStateMachineBuilder[string]()
}
