// Package classify derives the categorical arrival status from an extraction
// result. The rule order below is fixed; first match wins and every input maps
// to exactly one status.
package classify

import "respondr/internal/domain"

// Controlled cue tokens emitted by the extraction engine.
const (
	CueCancelled     = "cancelled"
	CueNotResponding = "not_responding"
	CueAvailable     = "available"
	CueInformational = "informational"
)

// Input carries everything the classifier looks at: the extracted vehicle,
// whether the ETA survived normalization, and the extraction engine's cues.
type Input struct {
	Vehicle     string
	ETAResolved bool
	Cues        []string
}

func hasCue(cues []string, cue string) bool {
	for _, c := range cues {
		if c == cue {
			return true
		}
	}
	return false
}

// Classify is total: the trailing return covers everything the earlier rules
// do not, so no extraction result can reach storage without a status.
func Classify(in Input) domain.ArrivalStatus {
	switch {
	case hasCue(in.Cues, CueCancelled):
		return domain.StatusCancelled
	case hasCue(in.Cues, CueNotResponding) || in.Vehicle == domain.VehicleNotResponding:
		return domain.StatusNotResponding
	case hasCue(in.Cues, CueAvailable):
		return domain.StatusAvailable
	case in.Vehicle != domain.VehicleUnknown && in.ETAResolved:
		return domain.StatusResponding
	case hasCue(in.Cues, CueInformational):
		return domain.StatusInformational
	}
	return domain.StatusUnknown
}
