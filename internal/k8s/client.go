// Package k8s reads TBox logs straight from Kubernetes pods.
package k8s

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// DefaultNamespace is read when neither the location nor the kubeconfig
// context names a namespace.
const DefaultNamespace = "default"

// userAgent identifies log reads in the API server audit log.
const userAgent = "logvars"

// Client streams pod logs. NS is the namespace for pod locations that do
// not name one.
type Client struct {
	CS kubernetes.Interface
	NS string
}

// NewClient connects using KUBECONFIG or ~/.kube/config, or the in-cluster
// service account when no kubeconfig exists, which covers a runner pod
// reading its siblings. A non-empty namespace overrides the context's.
func NewClient(namespace string) (*Client, error) {
	cfg := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		clientcmd.NewDefaultClientConfigLoadingRules(),
		&clientcmd.ConfigOverrides{Context: clientcmdapi.Context{Namespace: namespace}},
	)

	restConfig, err := cfg.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w", err)
	}
	restConfig.UserAgent = userAgent

	cs, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}
	return &Client{CS: cs, NS: resolveNamespace(namespace, cfg)}, nil
}

// NewClientFromInterface wraps an existing clientset, mainly the fake one in
// tests.
func NewClientFromInterface(cs kubernetes.Interface, ns string) *Client {
	if ns == "" {
		ns = DefaultNamespace
	}
	return &Client{CS: cs, NS: ns}
}

// resolveNamespace picks the explicit namespace, then the one from the
// kubeconfig context or service account, then DefaultNamespace.
func resolveNamespace(explicit string, cfg clientcmd.ClientConfig) string {
	if explicit != "" {
		return explicit
	}
	if ns, _, err := cfg.Namespace(); err == nil && ns != "" {
		return ns
	}
	return DefaultNamespace
}
