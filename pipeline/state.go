package pipeline

// State is a step of a conversion run.
type State int

const (
	StateResolvingRange State = iota
	StateFetchingListing
	StateResolvingChapters
	StateProofreading
	StateProcessingImages
	StateAssembling
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateResolvingRange:    "ResolvingRange",
	StateFetchingListing:   "FetchingListing",
	StateResolvingChapters: "ResolvingChapters",
	StateProofreading:      "Proofreading",
	StateProcessingImages:  "ProcessingImages",
	StateAssembling:        "Assembling",
	StateDone:              "Done",
	StateFailed:            "Failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
