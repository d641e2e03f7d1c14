package gallery

import (
	"context"

	"github.com/arawak/scenes/internal/store"
)

// Node is one collection in the rendered hierarchy. A protected collection
// the caller is not authorized for is truncated to a leaf stub: its identity
// stays visible, its children do not.
type Node struct {
	ID        int64   `json:"id"`
	Slug      string  `json:"slug"`
	Name      string  `json:"name"`
	Title     *string `json:"title,omitempty"`
	Protected bool    `json:"protected"`
	URL       string  `json:"url"`
	Children  []*Node `json:"children,omitempty"`
}

// collectionSource is the slice of the store the hierarchy walk needs.
type collectionSource interface {
	GetCollection(ctx context.Context, id int64) (*store.Collection, error)
	GetChildren(ctx context.Context, id int64) ([]store.CollectionChild, error)
}

// Hierarchy builds the full tree from the root collection.
func (s *Service) Hierarchy(ctx context.Context, authorized bool) (*Node, error) {
	root, err := s.store.RootCollection(ctx)
	if err != nil {
		return nil, err
	}
	return buildHierarchy(ctx, s.store, root.ID, authorized, map[int64]bool{})
}

// HierarchyFrom builds the tree rooted at an arbitrary collection.
func (s *Service) HierarchyFrom(ctx context.Context, collectionID int64, authorized bool) (*Node, error) {
	return buildHierarchy(ctx, s.store, collectionID, authorized, map[int64]bool{})
}

// buildHierarchy walks children depth-first. The relationship graph is a DAG
// by convention only, so the set of ids on the current path stops the walk
// from recursing through a cycle. A collection under several parents still
// appears under each of them; only an ancestor repeated on its own path is
// dropped.
func buildHierarchy(ctx context.Context, src collectionSource, id int64, authorized bool, visited map[int64]bool) (*Node, error) {
	if visited[id] {
		return nil, nil
	}
	visited[id] = true
	defer delete(visited, id)

	c, err := src.GetCollection(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	node := &Node{
		ID:        c.ID,
		Slug:      c.Slug,
		Name:      c.Name,
		Protected: c.Protected,
		URL:       "/api/collections/" + c.Slug,
	}

	if c.Protected && !authorized {
		return node, nil
	}
	node.Title = c.Title

	children, err := src.GetChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		childNode, err := buildHierarchy(ctx, src, child.Collection.ID, authorized, visited)
		if err != nil {
			return nil, err
		}
		if childNode != nil {
			node.Children = append(node.Children, childNode)
		}
	}
	return node, nil
}
