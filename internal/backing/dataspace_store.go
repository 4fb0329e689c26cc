package backing

import (
	"context"
	"sync"

	"github.com/energistics/etp/internal/handler/dataspace"
)

// DataspaceStore is an in-memory dataspace.Backing.
type DataspaceStore struct {
	mu         sync.Mutex
	dataspaces map[string]dataspace.Dataspace
}

// NewDataspaceStore constructs an empty in-memory dataspace store.
func NewDataspaceStore() *DataspaceStore {
	return &DataspaceStore{dataspaces: make(map[string]dataspace.Dataspace)}
}

func (s *DataspaceStore) Put(_ context.Context, dataspaces []dataspace.Dataspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range dataspaces {
		s.dataspaces[d.URI] = d
	}
	return nil
}

func (s *DataspaceStore) List(_ context.Context, lastWriteFilter int64, hasFilter bool) ([]dataspace.Dataspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]dataspace.Dataspace, 0, len(s.dataspaces))
	for _, d := range s.dataspaces {
		if hasFilter && d.HasLastWrite && d.StoreLastWrite < lastWriteFilter {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *DataspaceStore) Delete(_ context.Context, uris []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, uri := range uris {
		delete(s.dataspaces, uri)
	}
	return nil
}
