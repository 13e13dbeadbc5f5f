package concepts

import (
	"fmt"
	"strings"

	"github.com/abhisek/mathprogress/internal/store"
)

// Validate performs all structural checks on a concept set and returns a
// combined error describing every problem found, or nil if it is valid.
func Validate(concepts []store.Concept) error {
	var errs []string

	idSet := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		if c.ID == "" {
			errs = append(errs, "concept with empty ID")
			continue
		}
		if idSet[c.ID] {
			errs = append(errs, fmt.Sprintf("duplicate concept ID: %q", c.ID))
		}
		idSet[c.ID] = true
	}

	for _, c := range concepts {
		for _, prereqID := range c.Prerequisites {
			switch {
			case prereqID == c.ID:
				errs = append(errs, fmt.Sprintf("concept %q lists itself as a prerequisite", c.ID))
			case !idSet[prereqID]:
				errs = append(errs, fmt.Sprintf("concept %q references nonexistent prerequisite %q", c.ID, prereqID))
			}
		}
	}

	if _, cyclic := topoSort(concepts); len(cyclic) > 0 {
		errs = append(errs, fmt.Sprintf("cycle detected involving concepts: %s", strings.Join(cyclic, ", ")))
	}

	if len(concepts) > 0 {
		hasRoot := false
		for _, c := range concepts {
			if len(c.Prerequisites) == 0 {
				hasRoot = true
				break
			}
		}
		if !hasRoot {
			errs = append(errs, "no root concepts found (at least one concept must have no prerequisites)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("concept graph validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
