package folder

import (
	"context"
	"errors"
	"testing"

	"github.com/abduss/treedrive/internal/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveFolderRejections(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	root := store.addRoot(owner)
	a := store.addFolder(root, "a")
	b := store.addFolder(a, "b")

	strangerRoot := store.addRoot(uuid.New())
	foreign := store.addFolder(strangerRoot, "foreign")

	svc := newTestService(t, store)
	ctx := context.Background()

	cases := []struct {
		name   string
		folder Folder
		target Folder
		want   error
	}{
		{"foreign folder", foreign, root, ErrNotFound},
		{"root", root, a, ErrCannotMoveRoot},
		{"foreign target", a, foreign, ErrTargetNotFound},
		{"current parent", b, a, ErrAlreadyInTarget},
		{"into itself", a, a, ErrCyclicMove},
		{"into descendant", a, b, ErrCyclicMove},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.MoveFolder(ctx, owner, tc.folder, tc.target)
			require.ErrorIs(t, err, tc.want)

			rej, ok := AsRejection(err)
			require.True(t, ok)
			assert.Equal(t, tc.want.(*RejectedError).Reason, rej.Reason)
		})
	}

	assert.Equal(t, a.ID, *store.folders[b.ID].ParentID, "rejected moves leave the tree unchanged")
	assert.Equal(t, root.ID, *store.folders[a.ID].ParentID)
}

func TestMoveChain(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	root := store.addRoot(owner)
	a := store.addFolder(root, "A")
	b := store.addFolder(a, "B")
	c := store.addFolder(b, "C")

	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.MoveFolder(ctx, owner, a, c)
	require.ErrorIs(t, err, ErrCyclicMove)

	moved, err := svc.MoveFolder(ctx, owner, c, a)
	require.NoError(t, err)
	require.NotNil(t, moved.ParentID)
	assert.Equal(t, a.ID, *moved.ParentID)
	assert.Equal(t, a.ID, *store.folders[c.ID].ParentID)
	assert.Equal(t, 1, store.commits)
}

func TestMoveByID(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	root := store.addRoot(owner)
	a := store.addFolder(root, "a")
	b := store.addFolder(root, "b")

	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.Move(ctx, owner, uuid.New(), b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Move(ctx, owner, a.ID, uuid.New())
	assert.ErrorIs(t, err, ErrTargetNotFound)

	_, err = svc.Move(ctx, owner, root.ID, b.ID)
	assert.ErrorIs(t, err, ErrCannotMoveRoot)

	_, err = svc.Move(ctx, uuid.New(), a.ID, b.ID)
	assert.ErrorIs(t, err, ErrNotFound, "another owner's folder looks absent")

	moved, err := svc.Move(ctx, owner, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, *moved.ParentID)
}

func TestMoveFolderNameClashRollsBack(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	root := store.addRoot(owner)
	a := store.addFolder(root, "a")
	docs := store.addFolder(a, "docs")
	store.addFolder(root, "docs")

	svc := newTestService(t, store)

	_, err := svc.MoveFolder(context.Background(), owner, docs, root)
	require.ErrorIs(t, err, ErrNameTaken)

	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonNameTaken, rej.Reason)
	assert.Equal(t, a.ID, *store.folders[docs.ID].ParentID)
	assert.Equal(t, 1, store.rollbacks)
	assert.Zero(t, store.commits)
}

func TestStructuralChangesLockOwnerTree(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	root := store.addRoot(owner)
	a := store.addFolder(root, "a")
	b := store.addFolder(root, "b")

	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.MoveFolder(ctx, owner, a, b)
	require.NoError(t, err)
	_, err = svc.DeleteFolderCascade(ctx, owner, store.folders[b.ID])
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{owner, owner}, store.treeLocks)
}

func TestMoveFolderSeesMoveCommittedBeforeLock(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	root := store.addRoot(owner)
	a := store.addFolder(root, "a")
	b := store.addFolder(root, "b")

	// b moved into a by another request while we waited for the lock
	store.onLock = func() {
		moved := store.folders[b.ID]
		moved.ParentID = &a.ID
		store.folders[b.ID] = moved
	}

	svc := newTestService(t, store)

	_, err := svc.MoveFolder(context.Background(), owner, a, b)
	require.ErrorIs(t, err, ErrCyclicMove)
	assert.Equal(t, root.ID, *store.folders[a.ID].ParentID)
}

func TestDeleteFolderCascadeRemovesSubtree(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	root := store.addRoot(owner)
	docs := store.addFolder(root, "docs")
	y2024 := store.addFolder(docs, "2024")
	report := store.addFile(y2024, "report.pdf")
	notes := store.addFile(docs, "notes.txt")
	keep := store.addFile(root, "keep.txt")

	svc := newTestService(t, store)
	ctx := context.Background()

	result, err := svc.DeleteFolderCascade(ctx, owner, docs)
	require.NoError(t, err)
	assert.Equal(t, CascadeResult{FoldersDeleted: 2, FilesDeleted: 2}, result)

	assert.NotContains(t, store.folders, docs.ID)
	assert.NotContains(t, store.folders, y2024.ID)
	assert.Contains(t, store.folders, root.ID)

	assert.NotContains(t, store.files, report.ID)
	assert.NotContains(t, store.files, notes.ID)
	assert.NotContains(t, store.blobs, report.ObjectKey)
	assert.NotContains(t, store.blobs, notes.ObjectKey)
	assert.Contains(t, store.files, keep.ID)
	assert.Contains(t, store.blobs, keep.ObjectKey)

	nodes, err := svc.CollectSubtree(ctx, docs.ID)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestDeleteFolderCascadeTwiceIsIdempotent(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	root := store.addRoot(owner)
	docs := store.addFolder(root, "docs")
	store.addFile(docs, "a.txt")

	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.DeleteFolderCascade(ctx, owner, docs)
	require.NoError(t, err)

	result, err := svc.DeleteFolderCascade(ctx, owner, docs)
	require.NoError(t, err)
	assert.Equal(t, CascadeResult{}, result)
}

func TestDeleteFolderCascadeRejections(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	root := store.addRoot(owner)
	docs := store.addFolder(root, "docs")

	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.DeleteFolderCascade(ctx, owner, root)
	assert.ErrorIs(t, err, ErrCannotDeleteRoot)

	_, err = svc.DeleteFolderCascade(ctx, uuid.New(), docs)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Delete(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Contains(t, store.folders, docs.ID)
}

func TestDeleteFolderCascadeRollsBackOnFailure(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	root := store.addRoot(owner)
	docs := store.addFolder(root, "docs")
	sub := store.addFolder(docs, "sub")
	first := store.addFile(sub, "a.txt")
	broken := store.addFile(docs, "b.txt")
	store.failFileID = broken.ID

	svc := newTestService(t, store)

	_, err := svc.DeleteFolderCascade(context.Background(), owner, docs)

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, broken.ID, storageErr.FileID)
	assert.Equal(t, docs.ID, storageErr.FolderID)

	assert.Equal(t, 1, store.rollbacks)
	assert.Contains(t, store.folders, sub.ID)
	assert.Contains(t, store.files, first.ID)
	assert.Contains(t, store.blobs, first.ObjectKey, "blobs are only removed after commit")
}

func TestDeleteFolderCascadeToleratesBlobFailure(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	root := store.addRoot(owner)
	docs := store.addFolder(root, "docs")
	f := store.addFile(docs, "a.txt")
	store.failBlobDelete = errors.New("object store unavailable")

	svc := newTestService(t, store)
	before := testutil.ToFloat64(metrics.BlobDeleteFailures)

	result, err := svc.Delete(context.Background(), owner, docs.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesDeleted)
	assert.NotContains(t, store.files, f.ID)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.BlobDeleteFailures))
}

func TestCreateFolder(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	root := store.addRoot(owner)
	store.addFolder(root, "docs")
	foreignRoot := store.addRoot(uuid.New())

	svc := newTestService(t, store)
	ctx := context.Background()

	created, err := svc.CreateFolder(ctx, owner, "  photos ", root.ID)
	require.NoError(t, err)
	assert.Equal(t, "photos", created.Name)
	assert.Equal(t, root.ID, *created.ParentID)

	_, err = svc.CreateFolder(ctx, owner, "docs", root.ID)
	assert.ErrorIs(t, err, ErrNameTaken)

	_, err = svc.CreateFolder(ctx, owner, "new", foreignRoot.ID)
	assert.ErrorIs(t, err, ErrParentNotFound)

	for _, bad := range []string{"", "root", "ROOT", "a/b", `a\b`, ".."} {
		_, err = svc.CreateFolder(ctx, owner, bad, root.ID)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", bad)
	}
}

func TestEnsureRootCreatesOnce(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	first, err := svc.EnsureRoot(ctx, owner)
	require.NoError(t, err)
	assert.True(t, first.IsRoot())

	id, err := svc.RootFolderID(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, first.ID, id)
	assert.Len(t, store.folders, 1)
}

func TestGetFolderHidesOtherOwners(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	root := store.addRoot(owner)
	docs := store.addFolder(root, "docs")
	store.addFile(root, "readme.md")

	svc := newTestService(t, store)
	ctx := context.Background()

	listing, err := svc.GetRoot(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, root.ID, listing.Folder.ID)
	require.Len(t, listing.Children, 1)
	assert.Equal(t, docs.ID, listing.Children[0].ID)
	assert.Len(t, listing.Files, 1)

	_, err = svc.GetFolder(ctx, uuid.New(), docs.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Subtree(ctx, uuid.New(), docs.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCorruptTreeSurfacesFromMove(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	root := store.addRoot(owner)
	a := store.addFolder(root, "a")
	b := store.addFolder(a, "b")
	target := store.addFolder(root, "target")
	store.extraChildren[b.ID] = []uuid.UUID{a.ID}

	svc := newTestService(t, store)

	_, err := svc.MoveFolder(context.Background(), owner, a, target)

	var corrupt *CorruptTreeError
	require.ErrorAs(t, err, &corrupt)
	_, rejected := AsRejection(err)
	assert.False(t, rejected)
	assert.Equal(t, root.ID, *store.folders[a.ID].ParentID)
}
