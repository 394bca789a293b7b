// Package commandtest provides a scripted Runner for exercising the pipeline
// without the platform tools installed.
package commandtest

import "strings"

// Call records one tool invocation.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// String renders the call the way it would appear on a shell command line.
func (c Call) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// FakeRunner records every invocation and delegates behavior to Handler.
// With a nil Handler every call succeeds with empty output.
type FakeRunner struct {
	Calls   []Call
	Handler func(call Call) ([]byte, error)
}

func (r *FakeRunner) Run(name string, args ...string) ([]byte, error) {
	return r.run(Call{Name: name, Args: args})
}

func (r *FakeRunner) RunIn(dir, name string, args ...string) ([]byte, error) {
	return r.run(Call{Dir: dir, Name: name, Args: args})
}

func (r *FakeRunner) run(call Call) ([]byte, error) {
	r.Calls = append(r.Calls, call)
	if r.Handler == nil {
		return nil, nil
	}
	return r.Handler(call)
}

// CallsTo returns the recorded calls whose first argument matches verb.
func (r *FakeRunner) CallsTo(name, verb string) []Call {
	var matched []Call
	for _, call := range r.Calls {
		if call.Name == name && len(call.Args) > 0 && call.Args[0] == verb {
			matched = append(matched, call)
		}
	}
	return matched
}
