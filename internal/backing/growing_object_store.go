package backing

import (
	"context"
	"sort"
	"sync"

	"github.com/energistics/etp/internal/handler/growingobject"
)

type goPart struct {
	index growingobject.IndexValue
	data  []byte
	uom   string
	hasUOM bool
	datum string
	hasDatum bool
}

// GrowingObjectStore is an in-memory growingobject.Backing keyed by the
// growing object's uri, holding an index-ordered slice of parts.
type GrowingObjectStore struct {
	mu    sync.Mutex
	parts map[string][]goPart
}

// NewGrowingObjectStore constructs an empty in-memory growing object store.
func NewGrowingObjectStore() *GrowingObjectStore {
	return &GrowingObjectStore{parts: make(map[string][]goPart)}
}

// indexLess orders IndexValue the same way regardless of whether the index
// is discrete (Long) or continuous (Double); a nil index sorts first.
func indexLess(a, b growingobject.IndexValue) bool {
	af, aok := indexFloat(a)
	bf, bok := indexFloat(b)
	if !aok {
		return bok
	}
	if !bok {
		return false
	}
	return af < bf
}

func indexFloat(v growingobject.IndexValue) (float64, bool) {
	switch {
	case v.Long != nil:
		return float64(*v.Long), true
	case v.Double != nil:
		return *v.Double, true
	default:
		return 0, false
	}
}

func inRange(v, start, end growingobject.IndexValue) bool {
	if f, ok := indexFloat(start); ok {
		if vf, vok := indexFloat(v); !vok || vf < f {
			return false
		}
	}
	if f, ok := indexFloat(end); ok {
		if vf, vok := indexFloat(v); !vok || vf > f {
			return false
		}
	}
	return true
}

func (s *GrowingObjectStore) GetRange(_ context.Context, r growingobject.Range) ([]growingobject.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []growingobject.Part
	for _, p := range s.parts[r.URI] {
		if !inRange(p.index, r.Start, r.End) {
			continue
		}
		out = append(out, growingobject.Part{URI: r.URI, Data: p.data, Index: p.index})
	}
	return out, nil
}

func (s *GrowingObjectStore) DeleteRange(_ context.Context, r growingobject.Range) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.parts[r.URI]
	kept := existing[:0]
	for _, p := range existing {
		if inRange(p.index, r.Start, r.End) {
			continue
		}
		kept = append(kept, p)
	}
	s.parts[r.URI] = kept
	return nil
}

func (s *GrowingObjectStore) PutPart(_ context.Context, uri string, index growingobject.IndexValue, data []byte, uom string, hasUOM bool, depthDatum string, hasDatum bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	entry := goPart{index: index, data: cp, uom: uom, hasUOM: hasUOM, datum: depthDatum, hasDatum: hasDatum}

	existing := s.parts[uri]
	for i, p := range existing {
		if sameIndex(p.index, index) {
			existing[i] = entry
			s.parts[uri] = existing
			return nil
		}
	}

	existing = append(existing, entry)
	sort.Slice(existing, func(i, j int) bool { return indexLess(existing[i].index, existing[j].index) })
	s.parts[uri] = existing
	return nil
}

func (s *GrowingObjectStore) DeletePart(_ context.Context, uri string, index growingobject.IndexValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.parts[uri]
	kept := existing[:0]
	for _, p := range existing {
		if sameIndex(p.index, index) {
			continue
		}
		kept = append(kept, p)
	}
	s.parts[uri] = kept
	return nil
}

func (s *GrowingObjectStore) ReplacePartsByRange(_ context.Context, r growingobject.Range, newParts []growingobject.Part) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.parts[r.URI]
	kept := existing[:0]
	for _, p := range existing {
		if inRange(p.index, r.Start, r.End) {
			continue
		}
		kept = append(kept, p)
	}
	for _, np := range newParts {
		cp := make([]byte, len(np.Data))
		copy(cp, np.Data)
		kept = append(kept, goPart{index: np.Index, data: cp})
	}
	sort.Slice(kept, func(i, j int) bool { return indexLess(kept[i].index, kept[j].index) })
	s.parts[r.URI] = kept
	return nil
}

func sameIndex(a, b growingobject.IndexValue) bool {
	af, aok := indexFloat(a)
	bf, bok := indexFloat(b)
	return aok == bok && af == bf
}
