package backing

import (
	"context"
	"strings"

	"github.com/energistics/etp/internal/handler/discovery"
)

// ResourceLister implements discovery.Lister over an ObjectStore and a
// DataspaceStore: GetResources(uri) returns the dataspaces directly under
// uri, or the objects whose uri is directly under it when uri names a
// dataspace.
type ResourceLister struct {
	objects    *ObjectStore
	dataspaces *DataspaceStore
}

// NewResourceLister builds a Lister over the given backing stores.
func NewResourceLister(objects *ObjectStore, dataspaces *DataspaceStore) *ResourceLister {
	return &ResourceLister{objects: objects, dataspaces: dataspaces}
}

func (l *ResourceLister) ListResources(_ context.Context, uri string) ([]discovery.Resource, error) {
	var out []discovery.Resource

	l.dataspaces.mu.Lock()
	for duri, d := range l.dataspaces.dataspaces {
		if duri == uri {
			continue
		}
		if uri == "" || strings.HasPrefix(duri, uri) {
			out = append(out, discovery.Resource{URI: duri, Name: d.Path, ResourceType: "dataspace"})
		}
	}
	l.dataspaces.mu.Unlock()

	l.objects.mu.RLock()
	for ouri := range l.objects.objects {
		if ouri == uri {
			continue
		}
		if uri == "" || strings.HasPrefix(ouri, uri) {
			out = append(out, discovery.Resource{URI: ouri, Name: ouri, ResourceType: "object"})
		}
	}
	l.objects.mu.RUnlock()

	return out, nil
}
