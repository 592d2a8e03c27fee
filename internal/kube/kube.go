// Package kube provides optional pre-launch validation of forwarding targets
// against the Kubernetes API. The control plane runs fine without it; the
// executor reports its own failures, validation just makes them faster and
// clearer.
package kube

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

type Client struct {
	clientset kubernetes.Interface
	inCluster bool
}

// NewClient builds a client from the in-cluster service account, falling back
// to the default kubeconfig when running outside a cluster.
func NewClient() (*Client, error) {
	cfg, err := rest.InClusterConfig()
	inCluster := err == nil
	if err != nil {
		kubeconfig := clientcmd.NewDefaultClientConfigLoadingRules().GetDefaultFilename()
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("kubernetes config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("kubernetes clientset: %w", err)
	}

	return &Client{clientset: clientset, inCluster: inCluster}, nil
}

// InCluster reports whether the client uses the in-cluster service account.
func (c *Client) InCluster() bool {
	return c.inCluster
}

// ValidateTarget verifies that the pod exists and is running before an
// executor is launched at it.
func (c *Client) ValidateTarget(ctx context.Context, namespace, pod string) error {
	p, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, pod, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return fmt.Errorf("pod %s/%s not found", namespace, pod)
		}
		return fmt.Errorf("look up pod %s/%s: %w", namespace, pod, err)
	}

	if p.Status.Phase != corev1.PodRunning {
		return fmt.Errorf("pod %s/%s is %s, not running", namespace, pod, p.Status.Phase)
	}
	return nil
}
