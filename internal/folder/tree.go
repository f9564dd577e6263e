package folder

import (
	"context"
	"errors"

	"github.com/abduss/treedrive/internal/metrics"
	"github.com/google/uuid"
)

type listingReader interface {
	Listing(ctx context.Context, id uuid.UUID) (Listing, error)
}

// collectSubtree walks the folder rootID and all of its descendants depth-first.
// The first node is rootID itself; an unknown rootID yields an empty result.
// Each folder costs one Listing call. A folder discovered twice means the
// parent links loop, and the walk stops with a CorruptTreeError.
func collectSubtree(ctx context.Context, store listingReader, rootID uuid.UUID) ([]Node, error) {
	root, err := store.Listing(ctx, rootID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("list folder", rootID, uuid.Nil, err)
	}

	nodes := []Node{{Folder: root.Folder, Files: root.Files}}
	visited := map[uuid.UUID]struct{}{rootID: {}}

	stack, err := discover(nil, visited, root.Children)
	if err != nil {
		return nil, err
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, storageErr("walk subtree", rootID, uuid.Nil, err)
		}

		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		listing, err := store.Listing(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// deleted since its parent was listed
			continue
		}
		if err != nil {
			return nil, storageErr("list folder", id, uuid.Nil, err)
		}

		nodes = append(nodes, Node{Folder: listing.Folder, Files: listing.Files})

		stack, err = discover(stack, visited, listing.Children)
		if err != nil {
			return nil, err
		}
	}

	return nodes, nil
}

// discover pushes children onto stack, keeping their listed order when popped.
func discover(stack []uuid.UUID, visited map[uuid.UUID]struct{}, children []Folder) ([]uuid.UUID, error) {
	for i := len(children) - 1; i >= 0; i-- {
		id := children[i].ID
		if _, seen := visited[id]; seen {
			metrics.TreeCorruption.Inc()
			return nil, &CorruptTreeError{FolderID: id}
		}
		visited[id] = struct{}{}
		stack = append(stack, id)
	}
	return stack, nil
}

// subtreeIDs returns the set of folder ids in nodes.
func subtreeIDs(nodes []Node) map[uuid.UUID]struct{} {
	ids := make(map[uuid.UUID]struct{}, len(nodes))
	for _, n := range nodes {
		ids[n.Folder.ID] = struct{}{}
	}
	return ids
}
