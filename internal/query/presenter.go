package query

// StatusPresentation is the display tuple for one overall status.
type StatusPresentation struct {
	Label   string
	Color   string // color token, interpreted by the UI layer
	Animate bool
}

var presentations = map[Status]StatusPresentation{
	StatusDiscovering: {Label: "Discovering relays", Color: "cyan", Animate: true},
	StatusConnecting:  {Label: "Connecting", Color: "yellow", Animate: true},
	StatusLoading:     {Label: "Loading", Color: "blue", Animate: true},
	StatusLive:        {Label: "Live", Color: "green", Animate: true},
	StatusPartial:     {Label: "Partial", Color: "orange", Animate: true},
	StatusOffline:     {Label: "Offline", Color: "gray", Animate: false},
	StatusClosed:      {Label: "Closed", Color: "green", Animate: false},
	StatusFailed:      {Label: "Failed", Color: "red", Animate: false},
}

// Present maps a status to its label/color/animate tuple, one-to-one with
// the eight statuses.
func Present(s Status) StatusPresentation {
	if p, ok := presentations[s]; ok {
		return p
	}
	return StatusPresentation{Label: string(s), Color: "gray", Animate: false}
}
