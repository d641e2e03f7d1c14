package gallery

import (
	"context"
	"errors"
	"fmt"

	"github.com/arawak/scenes/internal/media"
)

var ErrNotComposite = errors.New("group is not composite")

// Region is one asset's rectangle inside a composite group rendering: the
// group's members flattened into a single horizontal strip with an
// interactive region per member.
type Region struct {
	AssetID      int64  `json:"asset_id"`
	MembershipID int64  `json:"membership_id"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Filename     string `json:"filename"`
}

// CompositeMap lays the group's image members out side by side, in group
// order, and returns the resulting region map. Members whose files cannot be
// decoded as images are skipped with a log line rather than failing the map.
func (s *Service) CompositeMap(ctx context.Context, groupID int64) ([]Region, error) {
	_, composite, err := s.store.GroupDisplayMode(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !composite {
		return nil, fmt.Errorf("%w: %d", ErrNotComposite, groupID)
	}

	assets, err := s.store.GroupAssets(ctx, groupID)
	if err != nil {
		return nil, err
	}

	regions := make([]Region, 0, len(assets))
	x := 0
	for _, a := range assets {
		w, h, err := media.Dimensions(a.Filepath)
		if err != nil {
			s.logger.Warn("skipping non-image group member in composite map",
				"asset_id", a.Asset.ID, "error", err)
			continue
		}
		regions = append(regions, Region{
			AssetID:      a.Asset.ID,
			MembershipID: a.MembershipID,
			X:            x,
			Y:            0,
			Width:        w,
			Height:       h,
			Filename:     a.Filename,
		})
		x += w
	}
	return regions, nil
}
