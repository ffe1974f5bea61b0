package testsupport

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// ArchiveFolder is a folder recorded by MemoryArchive.
type ArchiveFolder struct {
	ID       string
	ParentID string
	Name     string
}

// ArchiveObject is an uploaded file recorded by MemoryArchive.
type ArchiveObject struct {
	ID       string
	ParentID string
	Name     string
	MimeType string
	Data     []byte
	Public   bool
}

// MemoryArchive is an in-memory remote store. Set the Fail* fields to inject
// errors for the matching operation.
type MemoryArchive struct {
	mu      sync.Mutex
	seq     int
	Folders []ArchiveFolder
	Objects []ArchiveObject
	Lookups int

	FailFind   error
	FailCreate error
	FailUpload error
	FailGrant  error
	// FailCreateAfter fails CreateFolder once this many folders exist.
	FailCreateAfter int
}

// NewMemoryArchive returns an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{FailCreateAfter: -1}
}

func (m *MemoryArchive) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *MemoryArchive) FindFolder(_ context.Context, parentID, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups++
	if m.FailFind != nil {
		return "", false, m.FailFind
	}
	for _, f := range m.Folders {
		if f.ParentID == parentID && f.Name == name {
			return f.ID, true, nil
		}
	}
	return "", false, nil
}

func (m *MemoryArchive) CreateFolder(_ context.Context, parentID, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreate != nil {
		return "", m.FailCreate
	}
	if m.FailCreateAfter >= 0 && len(m.Folders) >= m.FailCreateAfter {
		return "", fmt.Errorf("quota exceeded")
	}
	id := m.nextID("folder")
	m.Folders = append(m.Folders, ArchiveFolder{ID: id, ParentID: parentID, Name: name})
	return id, nil
}

func (m *MemoryArchive) UploadFile(_ context.Context, parentID, name, mimeType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpload != nil {
		return "", m.FailUpload
	}
	id := m.nextID("file")
	m.Objects = append(m.Objects, ArchiveObject{ID: id, ParentID: parentID, Name: name, MimeType: mimeType, Data: data})
	return id, nil
}

func (m *MemoryArchive) GrantPublicRead(_ context.Context, objectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGrant != nil {
		return m.FailGrant
	}
	for i := range m.Objects {
		if m.Objects[i].ID == objectID {
			m.Objects[i].Public = true
			return nil
		}
	}
	return fmt.Errorf("object %s not found", objectID)
}

func (m *MemoryArchive) DownloadURL(objectID string) string {
	return "https://files.example/" + objectID
}

// Path returns the folder names from the root down to folderID.
func (m *MemoryArchive) Path(folderID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for folderID != "" {
		found := false
		for _, f := range m.Folders {
			if f.ID == folderID {
				names = append([]string{f.Name}, names...)
				folderID = f.ParentID
				found = true
				break
			}
		}
		if !found {
			break
		}
	}
	return names
}
