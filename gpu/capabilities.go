package gpu

import "github.com/launchdarkly/go-jsonstream/v3/jwriter"

// Capabilities are the optional device features the renderer can take advantage of. They are
// resolved once when the Device is created and never change afterward.
type Capabilities struct {
	// MultiDrawIndirect allows a single indirect draw to consume more than one command
	MultiDrawIndirect bool
	// MaxDrawIndirectCount is the largest drawCount accepted by an indirect draw
	MaxDrawIndirectCount int
	// MultiViewport allows more than one viewport to be bound at a time
	MultiViewport bool
	// BatchedBind is set when all bindings of a batch are submitted in a single driver call
	BatchedBind bool
}

// IndirectDrawLimit returns the number of indirect commands a single indirect draw may consume
func (c Capabilities) IndirectDrawLimit() int {
	if !c.MultiDrawIndirect {
		return 1
	}
	if c.MaxDrawIndirectCount < 1 {
		return 1
	}
	return c.MaxDrawIndirectCount
}

func (c Capabilities) PrintJSON(json *jwriter.ObjectState) {
	json.Name("MultiDrawIndirect").Bool(c.MultiDrawIndirect)
	json.Name("MaxDrawIndirectCount").Int(c.MaxDrawIndirectCount)
	json.Name("MultiViewport").Bool(c.MultiViewport)
	json.Name("BatchedBind").Bool(c.BatchedBind)
}
