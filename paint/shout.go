package paint

import (
	"github.com/vkngwrapper/tilerender/devmem"
	"golang.org/x/exp/slog"
)

// ShoutPainter draws the expanding rings of shouts
type ShoutPainter struct {
	*batcher[ShoutInstance]
}

func NewShoutPainter(logger *slog.Logger, allocator *devmem.Allocator, options Options) (*ShoutPainter, error) {
	b, err := newBatcher[ShoutInstance](logger, allocator, "shouts", shoutRecordSize, options, drawQuads)
	if err != nil {
		return nil, err
	}
	return &ShoutPainter{batcher: b}, nil
}

// Paint draws one shout. Shouts that have fully faded are skipped.
func (p *ShoutPainter) Paint(shout ShoutInstance) error {
	if shout.Age >= 1 || shout.Radius <= 0 {
		return nil
	}
	return p.paint(shout)
}
