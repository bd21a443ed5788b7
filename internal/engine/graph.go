// Package engine drives workflow threads through the step graph. It owns
// routing, the human-review barrier, per-thread single-flight leases and the
// commit of each step's update to the checkpoint store.
package engine

import (
	"fmt"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/steps"
)

// transition is the routing result for a committed step. critique, when set,
// replaces the critique in the committed snapshot.
type transition struct {
	pending  domain.PendingStep
	critique *string
}

// Graph is the fixed step topology:
//
//	Plan -> RouteResearch -> Research -> MergeResearch -> Write -> Review
//	Review  -(APPROVE)->   HumanGate
//	Review  -(RESEARCH)->  RouteResearch, or Write once the research cap is hit
//	Review  -(REVISE)->    Write
//	HumanGate -(reject)->  Write
//	HumanGate -(approve)-> Terminal
//
// HumanGate is a barrier: routing into it parks the thread.
type Graph struct {
	funcs             map[domain.StepName]steps.Func
	edges             map[domain.StepName]domain.StepName
	barriers          map[domain.StepName]bool
	maxResearchRounds int
}

// NewGraph builds the graph over the given step bodies. Every routable step
// except the barrier must have a body.
func NewGraph(funcs map[domain.StepName]steps.Func, maxResearchRounds int) (*Graph, error) {
	g := &Graph{
		funcs: funcs,
		edges: map[domain.StepName]domain.StepName{
			domain.StepPlan:          domain.StepRouteResearch,
			domain.StepRouteResearch: domain.StepResearch,
			domain.StepResearch:      domain.StepMergeResearch,
			domain.StepMergeResearch: domain.StepWrite,
			domain.StepWrite:         domain.StepReview,
		},
		barriers:          map[domain.StepName]bool{domain.StepHumanGate: true},
		maxResearchRounds: maxResearchRounds,
	}

	for _, name := range []domain.StepName{
		domain.StepPlan, domain.StepRouteResearch, domain.StepResearch,
		domain.StepMergeResearch, domain.StepWrite, domain.StepReview,
	} {
		if funcs[name] == nil {
			return nil, fmt.Errorf("graph: no body for step %s", name)
		}
	}
	return g, nil
}

// Entry is the first step of every thread.
func (g *Graph) Entry() domain.StepName {
	return domain.StepPlan
}

// Func returns the body of step.
func (g *Graph) Func(step domain.StepName) (steps.Func, bool) {
	fn, ok := g.funcs[step]
	return fn, ok
}

// next routes from a committed step given the merged state.
func (g *Graph) next(step domain.StepName, state domain.StepContext) transition {
	if to, ok := g.edges[step]; ok {
		return g.enter(to)
	}

	switch step {
	case domain.StepReview:
		v := domain.ParseCritique(state.Critique)
		switch v.Kind {
		case domain.VerdictApprove:
			return g.enter(domain.StepHumanGate)
		case domain.VerdictResearch:
			if state.ResearchRounds < g.maxResearchRounds {
				return g.enter(domain.StepRouteResearch)
			}
			critique := domain.ReviseWith(v.Text).String()
			t := g.enter(domain.StepWrite)
			t.critique = &critique
			return t
		default:
			return g.enter(domain.StepWrite)
		}
	case domain.StepHumanGate:
		if state.HumanAction == domain.HumanActionReject {
			return g.enter(domain.StepWrite)
		}
		return transition{pending: domain.PendingFinished}
	}

	return transition{pending: domain.PendingFinished}
}

// enter schedules step, parking the thread if step is a barrier.
func (g *Graph) enter(step domain.StepName) transition {
	if g.barriers[step] {
		return transition{pending: domain.PendingAwaitingHuman}
	}
	return transition{pending: domain.PendingOn(step)}
}
