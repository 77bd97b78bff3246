package transform

import "github.com/buildbuildio/quilt/normalized"

// Step is a transform applied to a field together with its state.
type Step struct {
	Transform Transform
	State     State
}

// Visit is one transformation of an overall field. A field is visited more
// than once when a transform places its children under several underlying
// fields.
type Visit struct {
	Field *normalized.Field
	Steps []*Step
	// Produced are the underlying fields created for Field, the new field
	// first.
	Produced []*normalized.Field
}

// UnderlyingParent returns the underlying field the results of the visit
// hang off, nil for the root. Valid once parents are linked.
func (v *Visit) UnderlyingParent() *normalized.Field {
	if len(v.Produced) == 0 {
		return nil
	}
	return v.Produced[0].Parent
}

// ExecutionPlan records the steps applied to every overall field of one
// service execution, in the order fields were visited.
type ExecutionPlan struct {
	steps  map[*normalized.Field][]*Step
	visits []*Visit
}

func NewExecutionPlan() *ExecutionPlan {
	return &ExecutionPlan{steps: make(map[*normalized.Field][]*Step)}
}

func (p *ExecutionPlan) add(visit *Visit) {
	if _, ok := p.steps[visit.Field]; !ok {
		p.steps[visit.Field] = visit.Steps
	}
	p.visits = append(p.visits, visit)
}

// Steps returns the steps applied to field.
func (p *ExecutionPlan) Steps(field *normalized.Field) []*Step {
	return p.steps[field]
}

// Visits returns the visits having at least one step.
func (p *ExecutionPlan) Visits() []*Visit {
	return p.visits
}
