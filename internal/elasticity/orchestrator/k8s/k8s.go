// Package k8s backs internal/elasticity/orchestrator.Orchestrator with
// a real Kubernetes custom resource via client-go's dynamic client —
// grounded in the pack's client-go/apimachinery usage
// (tiffanny29631-kpt-config-sync, the karpenter disruption-controller
// files under _examples/other_examples/). It treats the addressed
// object generically (group/version/plural-resource/namespace/name)
// since spec.md never names a concrete CRD schema beyond
// spec.size/spec.minSize/spec.maxSize.
package k8s

import (
	"context"
	"encoding/json"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"

	"ensemble/internal/elasticity/orchestrator"
	"ensemble/pkg/apperror"
)

// Orchestrator patches a cluster custom resource's spec.size field.
type Orchestrator struct {
	client           dynamic.Interface
	defaultNamespace string
}

// New constructs a Kubernetes-backed orchestrator. defaultNamespace is
// used whenever a Ref doesn't specify one — cmd/ensemble-server reads
// it from the mounted service-account file when --kubernetes is set,
// falling back to "default" (spec.md §6).
func New(client dynamic.Interface, defaultNamespace string) *Orchestrator {
	if defaultNamespace == "" {
		defaultNamespace = "default"
	}
	return &Orchestrator{client: client, defaultNamespace: defaultNamespace}
}

func (o *Orchestrator) resource(ref orchestrator.Ref) dynamic.ResourceInterface {
	gvr := schema.GroupVersionResource{Group: ref.Group, Version: ref.Version, Resource: ref.Member}
	ns := ref.Namespace
	if ns == "" {
		ns = o.defaultNamespace
	}
	return o.client.Resource(gvr).Namespace(ns)
}

// Get fetches the addressed object and reads its spec.size/minSize/
// maxSize fields.
func (o *Orchestrator) Get(ctx context.Context, ref orchestrator.Ref) (orchestrator.Pool, error) {
	obj, err := o.resource(ref).Get(ctx, ref.Name, metav1.GetOptions{})
	if err != nil {
		return orchestrator.Pool{}, apperror.Wrap(err, apperror.CodeUnknownGroup, fmt.Sprintf("fetch compute pool %s/%s", ref.Member, ref.Name))
	}

	size, _, _ := unstructured.NestedInt64(obj.Object, "spec", "size")
	minSize, _, _ := unstructured.NestedInt64(obj.Object, "spec", "minSize")
	maxSize, _, _ := unstructured.NestedInt64(obj.Object, "spec", "maxSize")

	return orchestrator.Pool{
		Size:    int(size),
		MinSize: int(minSize),
		MaxSize: int(maxSize),
	}, nil
}

// Patch issues a merge-patch setting spec.size to newSize.
func (o *Orchestrator) Patch(ctx context.Context, ref orchestrator.Ref, newSize int) error {
	patch := map[string]any{
		"spec": map[string]any{"size": newSize},
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "marshal resize patch")
	}

	_, err = o.resource(ref).Patch(ctx, ref.Name, types.MergePatchType, data, metav1.PatchOptions{})
	if err != nil {
		return apperror.Wrap(err, apperror.CodeResizeRejected, fmt.Sprintf("patch compute pool %s/%s to size %d", ref.Member, ref.Name, newSize))
	}
	return nil
}
