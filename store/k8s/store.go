package k8s

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/xraph/jobhost/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

const (
	defaultAnnotationPrefix = "jobhost.xraph.com/"
	managedByLabel          = "app.kubernetes.io/managed-by"
	managedByValue          = "jobhost"
)

// Store implements store.Store on coordination/v1 Leases in one namespace.
type Store struct {
	client           kubernetes.Interface
	namespace        string
	annotationPrefix string
	labels           map[string]string
	logger           *slog.Logger
}

// New creates a Kubernetes lease store. The clientset and namespace are
// required.
func New(client kubernetes.Interface, namespace string, opts ...Option) *Store {
	s := &Store{
		client:           client,
		namespace:        namespace,
		annotationPrefix: defaultAnnotationPrefix,
		labels:           map[string]string{managedByLabel: managedByValue},
		logger:           slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Connect builds a clientset from kubeconfig, or from the in-cluster
// service account when kubeconfig is empty.
func Connect(kubeconfig, namespace string, opts ...Option) (*Store, error) {
	var (
		cfg *rest.Config
		err error
	)
	if kubeconfig != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	} else {
		cfg, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("jobhost/k8s: load config: %w", err)
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("jobhost/k8s: create clientset: %w", err)
	}
	return New(client, namespace, opts...), nil
}

// Migrate is a no-op; the Lease API is built into every cluster.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks that the namespace's Leases can be listed.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.CoordinationV1().Leases(s.namespace).List(ctx, metav1.ListOptions{Limit: 1})
	if err != nil {
		return fmt.Errorf("jobhost/k8s: ping: %w", err)
	}
	return nil
}

// Close is a no-op; the clientset holds no connections that need closing.
func (s *Store) Close() error { return nil }

// objectName maps a lease name to a valid Kubernetes object name.
func objectName(name string) string {
	n := strings.ToLower(name)
	n = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '-'
		}
	}, n)
	return strings.Trim(n, "-.")
}

func (s *Store) payloadKey() string { return s.annotationPrefix + "payload" }
