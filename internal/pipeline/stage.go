package pipeline

import (
	"fmt"
)

// MediaKind is the kind of data flowing over a link between two stages
type MediaKind int

const (
	// KindNone marks the outer side of a source or sink
	KindNone MediaKind = iota
	// KindRawVideo is uncompressed video (video/x-raw)
	KindRawVideo
	// KindH264 is an H.264 elementary stream (video/x-h264)
	KindH264
	// KindRTP is RTP packets (application/x-rtp)
	KindRTP
)

// String returns a human-readable kind name
func (k MediaKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRawVideo:
		return "video/x-raw"
	case KindH264:
		return "video/x-h264"
	case KindRTP:
		return "application/x-rtp"
	default:
		return "unknown"
	}
}

// Prop is one element property assignment
type Prop struct {
	Name  string
	Value interface{}
}

// Arg is a property assigned from its string form. Enum and flags
// properties go here: GStreamer resolves the nick ("zerolatency", "time")
// against the property's own type, which a Go integer cannot name.
type Arg struct {
	Name  string
	Value string
}

// Stage describes one element of a linear pipeline before it exists.
//
// In and Out declare what the stage consumes and produces; Validate checks
// that adjacent stages agree so an impossible graph is rejected before any
// GStreamer object is created.
type Stage struct {
	// Name is the element name, unique within a plan
	Name string
	// Factory is the GStreamer element factory
	Factory string
	In      MediaKind
	Out     MediaKind
	// Props are applied in order after creation
	Props []Prop
	// Args are applied after Props
	Args []Arg
	// Caps, when set, is parsed and assigned to the element's "caps" property
	Caps string
}

// Plan is an ordered list of stages linked source to sink
type Plan []Stage

// Validate checks the plan's shape: a source first, a sink last, unique
// names, and matching media kinds on every link. The returned error is a
// *BuildError naming the offending stage.
func (p Plan) Validate() error {
	if len(p) < 2 {
		return &BuildError{Cause: fmt.Errorf("plan needs at least a source and a sink, got %d stages", len(p))}
	}

	seen := make(map[string]bool, len(p))
	for i, st := range p {
		if st.Name == "" || st.Factory == "" {
			return &BuildError{Stage: st.Name, Factory: st.Factory, Cause: fmt.Errorf("stage %d has no name or factory", i)}
		}
		if seen[st.Name] {
			return &BuildError{Stage: st.Name, Factory: st.Factory, Cause: fmt.Errorf("duplicate stage name")}
		}
		seen[st.Name] = true
	}

	if first := p[0]; first.In != KindNone || first.Out == KindNone {
		return &BuildError{Stage: first.Name, Factory: first.Factory, Cause: fmt.Errorf("first stage must be a source")}
	}
	if last := p[len(p)-1]; last.Out != KindNone || last.In == KindNone {
		return &BuildError{Stage: last.Name, Factory: last.Factory, Cause: fmt.Errorf("last stage must be a sink")}
	}

	for i := 1; i < len(p); i++ {
		up, down := p[i-1], p[i]
		if up.Out != down.In {
			return &BuildError{
				Stage:   down.Name,
				Factory: down.Factory,
				Cause:   fmt.Errorf("%w: %s produces %s, %s expects %s", ErrIncompatibleLink, up.Name, up.Out, down.Name, down.In),
			}
		}
	}
	return nil
}

// Names returns the stage names in order, for logs
func (p Plan) Names() []string {
	names := make([]string, len(p))
	for i, st := range p {
		names[i] = st.Name
	}
	return names
}

// Arg returns the string value of the named arg
func (st Stage) Arg(name string) (string, bool) {
	for _, a := range st.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Stage returns the stage with the given name
func (p Plan) Stage(name string) (Stage, bool) {
	for _, st := range p {
		if st.Name == name {
			return st, true
		}
	}
	return Stage{}, false
}
