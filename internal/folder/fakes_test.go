package folder

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

type memFile struct {
	ref      FileRef
	folderID uuid.UUID
}

// memStore keeps folders and files in maps and snapshots them per transaction.
type memStore struct {
	folders map[uuid.UUID]Folder
	files   map[uuid.UUID]memFile

	listings      int
	failListing   map[uuid.UUID]error
	failFileID    uuid.UUID
	extraChildren map[uuid.UUID][]uuid.UUID

	blobs          map[string]bool
	failBlobDelete error

	inTx      bool
	treeLocks []uuid.UUID
	// onLock runs once the tree lock is held, standing in for a writer that
	// committed just before we got it.
	onLock func()

	commits   int
	rollbacks int
}

func newMemStore() *memStore {
	return &memStore{
		folders:       map[uuid.UUID]Folder{},
		files:         map[uuid.UUID]memFile{},
		failListing:   map[uuid.UUID]error{},
		extraChildren: map[uuid.UUID][]uuid.UUID{},
		blobs:         map[string]bool{},
	}
}

func (m *memStore) addRoot(owner uuid.UUID) Folder {
	f := Folder{ID: uuid.New(), OwnerID: owner, Name: RootName, CreatedAt: time.Now()}
	m.folders[f.ID] = f
	return f
}

func (m *memStore) addFolder(parent Folder, name string) Folder {
	pid := parent.ID
	f := Folder{ID: uuid.New(), OwnerID: parent.OwnerID, ParentID: &pid, Name: name, CreatedAt: time.Now()}
	m.folders[f.ID] = f
	return f
}

func (m *memStore) addFile(folder Folder, name string) FileRef {
	ref := FileRef{ID: uuid.New(), Name: name, SizeBytes: 10, ContentType: "application/octet-stream"}
	ref.ObjectKey = ref.ID.String() + ".bin"
	m.files[ref.ID] = memFile{ref: ref, folderID: folder.ID}
	m.blobs[ref.ObjectKey] = true
	return ref
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (Folder, error) {
	f, ok := m.folders[id]
	if !ok {
		return Folder{}, ErrNotFound
	}
	return f, nil
}

func (m *memStore) Listing(_ context.Context, id uuid.UUID) (Listing, error) {
	m.listings++
	if err := m.failListing[id]; err != nil {
		return Listing{}, err
	}
	f, ok := m.folders[id]
	if !ok {
		return Listing{}, ErrNotFound
	}

	listing := Listing{Folder: f}
	for _, child := range m.folders {
		if child.ParentID != nil && *child.ParentID == id {
			listing.Children = append(listing.Children, child)
		}
	}
	for _, extra := range m.extraChildren[id] {
		listing.Children = append(listing.Children, m.folders[extra])
	}
	sort.SliceStable(listing.Children, func(i, j int) bool { return listing.Children[i].Name < listing.Children[j].Name })

	for _, file := range m.files {
		if file.folderID == id {
			listing.Files = append(listing.Files, file.ref)
		}
	}
	sort.Slice(listing.Files, func(i, j int) bool { return listing.Files[i].Name < listing.Files[j].Name })
	return listing, nil
}

func (m *memStore) FindRoot(_ context.Context, owner uuid.UUID) (Folder, error) {
	for _, f := range m.folders {
		if f.OwnerID == owner && f.ParentID == nil {
			return f, nil
		}
	}
	return Folder{}, ErrNotFound
}

func (m *memStore) FindByNameAndParent(_ context.Context, owner uuid.UUID, name string, parentID uuid.UUID) (Folder, error) {
	for _, f := range m.folders {
		if f.OwnerID == owner && f.ParentID != nil && *f.ParentID == parentID && f.Name == name {
			return f, nil
		}
	}
	return Folder{}, ErrNotFound
}

func (m *memStore) Create(_ context.Context, owner uuid.UUID, name string, parentID *uuid.UUID) (Folder, error) {
	f := Folder{ID: uuid.New(), OwnerID: owner, ParentID: parentID, Name: name, CreatedAt: time.Now()}
	m.folders[f.ID] = f
	return f, nil
}

func (m *memStore) UpdateParent(_ context.Context, id, parentID uuid.UUID) error {
	f, ok := m.folders[id]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m.folders[parentID]; !ok {
		return ErrTargetNotFound
	}
	// mirrors folders_unique_sibling_name
	for _, other := range m.folders {
		if other.ID != id && other.ParentID != nil && *other.ParentID == parentID && other.Name == f.Name {
			return ErrNameTaken
		}
	}
	pid := parentID
	f.ParentID = &pid
	m.folders[id] = f
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	for _, file := range m.files {
		if file.folderID == id {
			return errors.New("foreign key violation: folder still has files")
		}
	}
	for _, f := range m.folders {
		if f.ParentID != nil && *f.ParentID == id {
			return errors.New("foreign key violation: folder still has children")
		}
	}
	delete(m.folders, id)
	return nil
}

func (m *memStore) LockTree(_ context.Context, ownerID uuid.UUID) error {
	if !m.inTx {
		return errors.New("FOR UPDATE outside a transaction")
	}
	m.treeLocks = append(m.treeLocks, ownerID)
	if m.onLock != nil {
		m.onLock()
		m.onLock = nil
	}
	return nil
}

func (m *memStore) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	folders := make(map[uuid.UUID]Folder, len(m.folders))
	for k, v := range m.folders {
		folders[k] = v
	}
	files := make(map[uuid.UUID]memFile, len(m.files))
	for k, v := range m.files {
		files[k] = v
	}

	m.inTx = true
	err := fn(ctx)
	m.inTx = false
	if err != nil {
		m.folders, m.files = folders, files
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

// memFiles exposes the file side of memStore as a fileRecords.
type memFiles struct{ m *memStore }

func (f memFiles) Delete(_ context.Context, id uuid.UUID) error {
	if id == f.m.failFileID {
		return errors.New("connection reset")
	}
	delete(f.m.files, id)
	return nil
}

// memBlobs exposes the blob side of memStore as a blobRemover.
type memBlobs struct{ m *memStore }

func (b memBlobs) Delete(_ context.Context, key string) error {
	if b.m.failBlobDelete != nil {
		return b.m.failBlobDelete
	}
	delete(b.m.blobs, key)
	return nil
}

func newTestService(t *testing.T, store *memStore) *Service {
	t.Helper()
	return NewService(store, memFiles{store}, memBlobs{store}, store, zaptest.NewLogger(t))
}
