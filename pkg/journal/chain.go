package journal

import (
	"github.com/downfa11-org/go-journal/pkg/disk"
	"github.com/downfa11-org/go-journal/pkg/types"
	"github.com/downfa11-org/go-journal/util"
)

// chain is the journal's segment stack. Only the top segment is open; superseded
// segments are closed and remembered by their metadata.
type chain struct {
	history []types.SegmentInfo
	active  *disk.Segment
}

func (c *chain) top() *disk.Segment {
	return c.active
}

// push closes the current top and makes s the append target.
func (c *chain) push(s *disk.Segment) {
	c.retire()
	c.active = s
}

// pop detaches the top without recording it in the history.
func (c *chain) pop() *disk.Segment {
	s := c.active
	c.active = nil
	return s
}

// retire closes the top and moves it into the history.
func (c *chain) retire() {
	if c.active == nil {
		return
	}
	if err := c.active.Close(); err != nil {
		util.Error("failed to close segment %s: %v", c.active.Path(), err)
	}
	c.history = append(c.history, c.active.Info())
	c.active = nil
}

func (c *chain) remember(info types.SegmentInfo) {
	c.history = append(c.history, info)
}

func (c *chain) infos() []types.SegmentInfo {
	out := make([]types.SegmentInfo, 0, len(c.history)+1)
	out = append(out, c.history...)
	if c.active != nil {
		out = append(out, c.active.Info())
	}
	return out
}
