package paint

import (
	"github.com/vkngwrapper/tilerender/devmem"
	"golang.org/x/exp/slog"
)

// CirclePainter draws rings on the ground plane, such as selection and range markers
type CirclePainter struct {
	*batcher[CircleInstance]
}

func NewCirclePainter(logger *slog.Logger, allocator *devmem.Allocator, options Options) (*CirclePainter, error) {
	b, err := newBatcher[CircleInstance](logger, allocator, "circles", circleRecordSize, options, drawQuads)
	if err != nil {
		return nil, err
	}
	return &CirclePainter{batcher: b}, nil
}

func (p *CirclePainter) Paint(circle CircleInstance) error {
	return p.paint(circle)
}
