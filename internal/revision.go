package internal

import (
	"cmp"
	"crypto/sha1"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/stevedore-dev/stevedore/internal/git"
)

// Revisions is the server-side history of a release. Every apply appends a
// revision; rollback only moves ActiveIndex.
type Revisions struct {
	Release     string     `json:"release"`
	History     []Revision `json:"history"`
	ActiveIndex int        `json:"activeIndex"`
}

type Revision struct {
	ID        int                          `json:"id"`
	Source    Source                       `json:"source"`
	CreatedAt time.Time                    `json:"createdAt"`
	Resources []*unstructured.Unstructured `json:"resources"`
}

type Source struct {
	Ref      string `json:"ref"`
	Checksum string `json:"checksum"`
}

// SourceFrom records where a descriptor came from. Git refs are kept verbatim,
// including scp-style ones whose "//" path separator must survive; bare paths
// are normalized to file:// refs so history entries remain unambiguous.
func SourceFrom(ref string, raw []byte) (src Source) {
	if len(raw) > 0 {
		src.Checksum = fmt.Sprintf("%x", sha1.Sum(raw))
	}

	switch u, _ := url.Parse(ref); {
	case ref == "":
	case git.IsURL(ref):
		src.Ref = ref
	case u != nil && u.Scheme != "":
		src.Ref = u.String()
	default:
		src.Ref = "file://" + path.Clean(ref)
	}

	return
}

func (revisions Revisions) Active() *Revision {
	if revisions.ActiveIndex < 0 || revisions.ActiveIndex >= len(revisions.History) {
		return nil
	}
	return &revisions.History[revisions.ActiveIndex]
}

func (revisions Revisions) CurrentResources() []*unstructured.Unstructured {
	active := revisions.Active()
	if active == nil {
		return nil
	}
	return active.Resources
}

func (revisions *Revisions) Add(resources []*unstructured.Unstructured, source Source) {
	var id int
	for _, revision := range revisions.History {
		id = max(id, revision.ID)
	}

	revisions.History = append(revisions.History, Revision{
		ID:        id + 1,
		Source:    source,
		CreatedAt: time.Now().UTC(),
		Resources: resources,
	})
	revisions.ActiveIndex = len(revisions.History) - 1
}

// AddManagedMetadata tags resources so that live state can be traced back to
// the release that owns it.
func AddManagedMetadata(resources []*unstructured.Unstructured, release string) {
	for _, resource := range resources {
		labels := resource.GetLabels()
		if labels == nil {
			labels = make(map[string]string)
		}
		labels["app.kubernetes.io/managed-by"] = "stevedore"
		labels["app.kubernetes.io/stevedore-release"] = release
		resource.SetLabels(labels)
	}
}

func Canonical(resource *unstructured.Unstructured) string {
	gvk := resource.GetObjectKind().GroupVersionKind()

	return strings.ToLower(strings.Join(
		[]string{
			Namespace(resource),
			cmp.Or(gvk.Group, "core"),
			gvk.Version,
			resource.GetKind(),
			resource.GetName(),
		},
		".",
	))
}

func Namespace(resource *unstructured.Unstructured) string {
	return cmp.Or(resource.GetNamespace(), "_")
}

func CanonicalNameList(resources []*unstructured.Unstructured) []string {
	result := make([]string, len(resources))
	for i, resource := range resources {
		result[i] = Canonical(resource)
	}
	return result
}

func CanonicalObjectMap(resources []*unstructured.Unstructured) map[string]any {
	result := make(map[string]any, len(resources))
	for _, resource := range resources {
		result[Canonical(resource)] = resource.Object
	}
	return result
}

const LabelKind = "internal.stevedore/kind"
