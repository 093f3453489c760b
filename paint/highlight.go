package paint

import (
	"github.com/vkngwrapper/tilerender/devmem"
	"golang.org/x/exp/slog"
)

// HighlightPainter draws a colored overlay on individual map tiles. Instances are in tile
// coordinates: the vertex shader scales them by the tile size.
type HighlightPainter struct {
	*batcher[HighlightInstance]
}

func NewHighlightPainter(logger *slog.Logger, allocator *devmem.Allocator, options Options) (*HighlightPainter, error) {
	b, err := newBatcher[HighlightInstance](logger, allocator, "highlights", highlightRecordSize, options, drawQuads)
	if err != nil {
		return nil, err
	}
	return &HighlightPainter{batcher: b}, nil
}

func (p *HighlightPainter) Paint(highlight HighlightInstance) error {
	return p.paint(highlight)
}
