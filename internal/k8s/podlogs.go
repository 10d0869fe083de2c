package k8s

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Scheme prefixes pod log locations.
const Scheme = "k8s://"

// defaultContainerAnnotation is honored by kubectl when no container is named.
const defaultContainerAnnotation = "kubectl.kubernetes.io/default-container"

// Target identifies the container whose log is read.
//
//	k8s://[<namespace>/]<pod>[/<container>][?tail=N&previous=true]
//
// Without a namespace the client's namespace is used.
type Target struct {
	Namespace string
	Pod       string
	Container string
	TailLines int64 // 0 reads the whole log
	Previous  bool  // log of the previous container instance
}

// IsTarget reports whether raw uses the k8s:// scheme.
func IsTarget(raw string) bool {
	return strings.HasPrefix(raw, Scheme)
}

// ParseTarget parses a k8s:// location.
func ParseTarget(raw string) (Target, error) {
	if !IsTarget(raw) {
		return Target{}, fmt.Errorf("not a %s location: %q", Scheme, raw)
	}
	rest := strings.TrimPrefix(raw, Scheme)
	rest, query, _ := strings.Cut(rest, "?")

	parts := strings.Split(strings.TrimRight(rest, "/"), "/")
	if len(parts) > 3 || slices.Contains(parts, "") {
		return Target{}, fmt.Errorf("invalid pod location %q: want %s[namespace/]pod[/container]", raw, Scheme)
	}
	var t Target
	switch len(parts) {
	case 1:
		t.Pod = parts[0]
	case 2:
		t.Namespace, t.Pod = parts[0], parts[1]
	default:
		t.Namespace, t.Pod, t.Container = parts[0], parts[1], parts[2]
	}

	if query != "" {
		q, err := url.ParseQuery(query)
		if err != nil {
			return Target{}, fmt.Errorf("invalid query in %q: %w", raw, err)
		}
		if v := q.Get("tail"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return Target{}, fmt.Errorf("invalid tail %q", v)
			}
			t.TailLines = n
		}
		if v := q.Get("previous"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return Target{}, fmt.Errorf("invalid previous %q", v)
			}
			t.Previous = b
		}
	}
	return t, nil
}

// String renders the target in k8s:// form without query options.
func (t Target) String() string {
	s := Scheme + t.Pod
	if t.Namespace != "" {
		s = Scheme + t.Namespace + "/" + t.Pod
	}
	if t.Container != "" {
		s += "/" + t.Container
	}
	return s
}

// ResolveContainer picks the container to read when the target names none:
// the kubectl default-container annotation, or the only container in the pod.
func ResolveContainer(ctx context.Context, c *Client, t Target) (string, error) {
	pod, err := c.CS.CoreV1().Pods(t.Namespace).Get(ctx, t.Pod, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("get pod %s/%s: %w", t.Namespace, t.Pod, err)
	}

	names := make([]string, 0, len(pod.Spec.Containers))
	for _, ct := range pod.Spec.Containers {
		names = append(names, ct.Name)
	}

	if t.Container != "" {
		for _, n := range names {
			if n == t.Container {
				return n, nil
			}
		}
		return "", fmt.Errorf("pod %s/%s has no container %q (have %s)", t.Namespace, t.Pod, t.Container, strings.Join(names, ", "))
	}
	if def := pod.Annotations[defaultContainerAnnotation]; def != "" {
		return def, nil
	}
	switch len(names) {
	case 0:
		return "", fmt.Errorf("pod %s/%s has no containers", t.Namespace, t.Pod)
	case 1:
		return names[0], nil
	default:
		return "", fmt.Errorf("pod %s/%s has %d containers, choose one of: %s", t.Namespace, t.Pod, len(names), strings.Join(names, ", "))
	}
}

// OpenLogs streams the container log for t. The caller closes the reader.
func OpenLogs(ctx context.Context, c *Client, t Target) (io.ReadCloser, error) {
	if t.Namespace == "" {
		t.Namespace = c.NS
	}
	container, err := ResolveContainer(ctx, c, t)
	if err != nil {
		return nil, err
	}

	opts := &corev1.PodLogOptions{Container: container, Previous: t.Previous}
	if t.TailLines > 0 {
		tail := t.TailLines
		opts.TailLines = &tail
	}
	rc, err := c.CS.CoreV1().Pods(t.Namespace).GetLogs(t.Pod, opts).Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream logs %s/%s/%s: %w", t.Namespace, t.Pod, container, err)
	}
	return rc, nil
}
