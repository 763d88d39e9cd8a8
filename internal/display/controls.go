package display

// controls holds the keyboard toggles. Pause stops capture and keeps the
// last frame on screen; hide stops capture and blanks the view.
type controls struct {
	paused bool
	hidden bool
}

func (c *controls) togglePause() { c.paused = !c.paused }

func (c *controls) toggleHide() { c.hidden = !c.hidden }

// capturing reports whether OnTick should run
func (c controls) capturing() bool {
	return !c.paused && !c.hidden
}

// label prefixes the status line
func (c controls) label() string {
	switch {
	case c.hidden:
		return "HIDDEN  "
	case c.paused:
		return "PAUSED  "
	}
	return ""
}
