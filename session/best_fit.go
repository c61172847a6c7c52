package session

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/rgbd/videomode"
)

// StartBestFit picks, independently for each stream, the mode closest to target and starts the
// session with them. It returns the chosen indices.
func StartBestFit(ctx context.Context, s *Session, target videomode.Target) (depthIdx, colorIdx int, err error) {
	depthCatalog, err := s.DepthCatalog()
	if err != nil {
		return 0, 0, err
	}
	colorCatalog, err := s.ColorCatalog()
	if err != nil {
		return 0, 0, err
	}
	depthIdx, err = videomode.BestFit(depthCatalog, target.Width, target.Height, target.DepthFormat)
	if err != nil {
		return 0, 0, errors.Wrap(err, "depth")
	}
	colorIdx, err = videomode.BestFit(colorCatalog, target.Width, target.Height, target.ColorFormat)
	if err != nil {
		return 0, 0, errors.Wrap(err, "color")
	}
	if err := s.Start(ctx, depthIdx, colorIdx); err != nil {
		return 0, 0, err
	}
	return depthIdx, colorIdx, nil
}
