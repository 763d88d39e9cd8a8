package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Graph is a built GStreamer pipeline and its elements by stage name
type Graph struct {
	Pipeline *gst.Pipeline
	plan     Plan
	elements map[string]*gst.Element
}

// Build validates plan, creates every element, applies properties and caps,
// and links the stages in order. The pipeline is left in the NULL state.
//
// Any failure is a *BuildError naming the first stage that could not be
// created, configured or linked; partially built pipelines are released.
func Build(name string, plan Plan) (*Graph, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	pipeline, err := gst.NewPipeline(name)
	if err != nil {
		return nil, &BuildError{Cause: fmt.Errorf("failed to create pipeline: %w", err)}
	}

	g := &Graph{
		Pipeline: pipeline,
		plan:     plan,
		elements: make(map[string]*gst.Element, len(plan)),
	}

	for _, st := range plan {
		elem, err := newStageElement(st)
		if err != nil {
			g.release()
			return nil, err
		}
		if err := pipeline.Add(elem); err != nil {
			g.release()
			return nil, &BuildError{Stage: st.Name, Factory: st.Factory, Cause: fmt.Errorf("failed to add to pipeline: %w", err)}
		}
		g.elements[st.Name] = elem
	}

	for i := 1; i < len(plan); i++ {
		up, down := plan[i-1], plan[i]
		if err := g.elements[up.Name].Link(g.elements[down.Name]); err != nil {
			g.release()
			return nil, &BuildError{
				Stage:   down.Name,
				Factory: down.Factory,
				Cause:   fmt.Errorf("failed to link %s -> %s: %w", up.Name, down.Name, err),
			}
		}
	}

	slog.Debug("pipeline: graph built", "name", name, "stages", plan.Names())
	return g, nil
}

func newStageElement(st Stage) (*gst.Element, error) {
	elem, err := gst.NewElementWithName(st.Factory, st.Name)
	if err != nil {
		return nil, &BuildError{Stage: st.Name, Factory: st.Factory, Cause: fmt.Errorf("failed to create element (plugin missing?): %w", err)}
	}

	for _, p := range st.Props {
		if err := elem.SetProperty(p.Name, p.Value); err != nil {
			return nil, &BuildError{Stage: st.Name, Factory: st.Factory, Cause: fmt.Errorf("failed to set %s=%v: %w", p.Name, p.Value, err)}
		}
	}
	for _, a := range st.Args {
		elem.SetArg(a.Name, a.Value)
	}

	if st.Caps != "" {
		caps := gst.NewCapsFromString(st.Caps)
		if caps == nil {
			return nil, &BuildError{Stage: st.Name, Factory: st.Factory, Cause: fmt.Errorf("invalid caps %q", st.Caps)}
		}
		if err := elem.SetProperty("caps", caps); err != nil {
			return nil, &BuildError{Stage: st.Name, Factory: st.Factory, Cause: fmt.Errorf("failed to set caps: %w", err)}
		}
	}

	return elem, nil
}

// CheckAvailable verifies that GStreamer is installed and that every factory
// the plan needs can be instantiated. It runs at construction time, so a
// missing codec plugin is reported before any pipeline is started.
func CheckAvailable(plan Plan) error {
	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	checked := make(map[string]bool, len(plan))
	for _, st := range plan {
		if checked[st.Factory] {
			continue
		}
		checked[st.Factory] = true

		elem, err := gst.NewElement(st.Factory)
		if err != nil {
			return &BuildError{Stage: st.Name, Factory: st.Factory, Cause: fmt.Errorf("element not available (plugin missing?): %w", err)}
		}
		elem.SetState(gst.StateNull)
	}
	return nil
}

// Element returns the element built for a stage, or nil
func (g *Graph) Element(stage string) *gst.Element {
	return g.elements[stage]
}

// AppSink returns the appsink stage wrapped for callbacks
func (g *Graph) AppSink(stage string) (*app.Sink, error) {
	elem := g.elements[stage]
	if elem == nil {
		return nil, fmt.Errorf("pipeline: no stage %q", stage)
	}
	return app.SinkFromElement(elem), nil
}

// AppSrc returns the appsrc stage wrapped for pushing buffers
func (g *Graph) AppSrc(stage string) (*app.Source, error) {
	elem := g.elements[stage]
	if elem == nil {
		return nil, fmt.Errorf("pipeline: no stage %q", stage)
	}
	return app.SrcFromElement(elem), nil
}

// Plan returns the plan the graph was built from
func (g *Graph) Plan() Plan {
	return g.plan
}

// release sets the pipeline to NULL, freeing sockets, encoder state and buffers.
// Safe to call more than once.
func (g *Graph) release() error {
	if g == nil || g.Pipeline == nil {
		return nil
	}
	if err := g.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}
