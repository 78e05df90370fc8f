package tracker

import (
	"github.com/trackarr/trackarr/app/models"
)

// validTransitions is the lifecycle graph as the request service reports it.
// Processing can fall back to Approved (a download restart), Partially
// Available can resume Processing. Available admits nothing.
var validTransitions = map[int][]int{
	models.StatusPendingApproval:    {models.StatusApproved, models.StatusProcessing, models.StatusAvailable},
	models.StatusApproved:           {models.StatusProcessing, models.StatusPartiallyAvailable, models.StatusAvailable},
	models.StatusProcessing:         {models.StatusApproved, models.StatusPartiallyAvailable, models.StatusAvailable},
	models.StatusPartiallyAvailable: {models.StatusProcessing, models.StatusAvailable},
	models.StatusAvailable:          {},
}

// ValidTransition reports whether the graph contains the edge from -> to.
// The engine does not reject invalid edges, it logs them as anomalies; the
// request service owns the status domain.
func ValidTransition(from, to int) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}
