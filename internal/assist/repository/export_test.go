package repository

// SetPlanFaultHook installs fn to run after each todo a plan transaction
// creates and returns a func that removes it.
func SetPlanFaultHook(fn func(index int) error) func() {
	afterPlanTodoCreated = fn
	return func() { afterPlanTodoCreated = nil }
}
