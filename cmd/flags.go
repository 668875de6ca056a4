package cmd

import (
	"fmt"
	"strings"

	"ncats/chp/internal/reasoner"
)

// parseAssignments turns "Component=State" flags into a map. A later
// assignment to the same component is an error.
func parseAssignments(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		comp, state, ok := strings.Cut(v, "=")
		comp, state = strings.TrimSpace(comp), strings.TrimSpace(state)
		if !ok || comp == "" || state == "" {
			return nil, fmt.Errorf("expected Component=State, got %q", v)
		}
		if prev, dup := out[comp]; dup && prev != state {
			return nil, fmt.Errorf("component %s given twice (%s, %s)", comp, prev, state)
		}
		out[comp] = state
	}
	return out, nil
}

// parseTargets turns "Component=State" flags into target references
func parseTargets(values []string) ([]reasoner.TargetRef, error) {
	var out []reasoner.TargetRef
	for _, v := range values {
		comp, state, ok := strings.Cut(v, "=")
		comp, state = strings.TrimSpace(comp), strings.TrimSpace(state)
		if !ok || comp == "" || state == "" {
			return nil, fmt.Errorf("expected Component=State, got %q", v)
		}
		out = append(out, reasoner.TargetRef{Component: comp, State: state})
	}
	return out, nil
}

func parseMeta(values []string) ([]reasoner.MetaConstraint, error) {
	var out []reasoner.MetaConstraint
	for _, v := range values {
		m, err := reasoner.ParseMetaConstraint(v)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// geneEvidence maps gene symbols to mut_<symbol>=True
func geneEvidence(symbols []string, into map[string]string, component func(string) string, state string) {
	for _, s := range symbols {
		if s = strings.TrimSpace(s); s != "" {
			into[component(s)] = state
		}
	}
}
