package gallery

import (
	"testing"

	"github.com/arawak/scenes/internal/store"
)

func ptr[T any](v T) *T { return &v }

func row(assetID, membershipID int64, groupID *int64, groupName *string) store.CollectionAsset {
	r := store.CollectionAsset{
		MembershipID: membershipID,
		GroupID:      groupID,
		GroupName:    groupName,
	}
	r.Asset.ID = assetID
	return r
}

func TestPartitionAssetsEveryRowLandsOnce(t *testing.T) {
	g1 := ptr(int64(10))
	g2 := ptr(int64(20))
	rows := []store.CollectionAsset{
		row(1, 100, nil, nil),
		row(2, 101, g1, ptr("first")),
		row(3, 102, g1, ptr("first")),
		row(4, 103, g2, ptr("second")),
		row(5, 104, nil, nil),
	}

	groups, ungrouped := PartitionAssets(rows)

	total := len(ungrouped)
	for _, g := range groups {
		total += len(g.Assets)
	}
	if total != len(rows) {
		t.Fatalf("partition dropped or duplicated rows: got %d, want %d", total, len(rows))
	}
	if len(ungrouped) != 2 {
		t.Fatalf("ungrouped count: got %d, want 2", len(ungrouped))
	}
	if len(groups) != 2 {
		t.Fatalf("group count: got %d, want 2", len(groups))
	}
}

func TestPartitionAssetsGroupOrderAndMembers(t *testing.T) {
	g1 := ptr(int64(7))
	g2 := ptr(int64(3))
	rows := []store.CollectionAsset{
		row(1, 100, g1, ptr("alpha")),
		row(2, 101, g2, ptr("beta")),
		row(3, 102, g1, ptr("alpha")),
	}

	groups, _ := PartitionAssets(rows)
	if len(groups) != 2 {
		t.Fatalf("group count: got %d, want 2", len(groups))
	}
	// first-seen order, not id order
	if groups[0].ID != 7 || groups[1].ID != 3 {
		t.Fatalf("group order: got [%d %d], want [7 3]", groups[0].ID, groups[1].ID)
	}
	if len(groups[0].Assets) != 2 {
		t.Fatalf("alpha members: got %d, want 2", len(groups[0].Assets))
	}
	if groups[0].Assets[0].Asset.ID != 1 || groups[0].Assets[1].Asset.ID != 3 {
		t.Fatalf("alpha member order: got [%d %d], want [1 3]",
			groups[0].Assets[0].Asset.ID, groups[0].Assets[1].Asset.ID)
	}
	if groups[0].Name == nil || *groups[0].Name != "alpha" {
		t.Fatalf("group name not carried over")
	}
}

func TestPartitionAssetsEmpty(t *testing.T) {
	groups, ungrouped := PartitionAssets(nil)
	if len(groups) != 0 || len(ungrouped) != 0 {
		t.Fatalf("empty input should partition to empty buckets")
	}
}
