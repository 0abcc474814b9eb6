package k8s_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	coordinationv1 "k8s.io/api/coordination/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/xraph/jobhost/lease"
	"github.com/xraph/jobhost/store/k8s"
	"github.com/xraph/jobhost/store/storetest"
)

const testNS = "default"

var leaseResource = coordinationv1.SchemeGroupVersion.WithResource("leases").GroupResource()

// leaseServer serves Lease get/create/update for a fake clientset and
// rejects updates whose resourceVersion is stale, as the API server does.
type leaseServer struct {
	mu      sync.Mutex
	version int
	leases  map[string]*coordinationv1.Lease
}

func newFakeClient() *fake.Clientset {
	cs := fake.NewClientset()
	srv := &leaseServer{leases: make(map[string]*coordinationv1.Lease)}
	cs.PrependReactor("get", "leases", srv.get)
	cs.PrependReactor("create", "leases", srv.create)
	cs.PrependReactor("update", "leases", srv.update)
	return cs
}

func (s *leaseServer) get(action k8stesting.Action) (bool, runtime.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := action.(k8stesting.GetAction).GetName()
	l, ok := s.leases[name]
	if !ok {
		return true, nil, apierrors.NewNotFound(leaseResource, name)
	}
	return true, l.DeepCopy(), nil
}

func (s *leaseServer) create(action k8stesting.Action) (bool, runtime.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := action.(k8stesting.CreateAction).GetObject().(*coordinationv1.Lease).DeepCopy()
	if _, ok := s.leases[l.Name]; ok {
		return true, nil, apierrors.NewAlreadyExists(leaseResource, l.Name)
	}
	s.version++
	l.ResourceVersion = strconv.Itoa(s.version)
	s.leases[l.Name] = l
	return true, l.DeepCopy(), nil
}

func (s *leaseServer) update(action k8stesting.Action) (bool, runtime.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := action.(k8stesting.UpdateAction).GetObject().(*coordinationv1.Lease).DeepCopy()
	cur, ok := s.leases[l.Name]
	if !ok {
		return true, nil, apierrors.NewNotFound(leaseResource, l.Name)
	}
	if cur.ResourceVersion != l.ResourceVersion {
		return true, nil, apierrors.NewConflict(leaseResource, l.Name, errors.New("object has been modified"))
	}
	s.version++
	l.ResourceVersion = strconv.Itoa(s.version)
	s.leases[l.Name] = l
	return true, l.DeepCopy(), nil
}

// Lease durations are whole seconds.
func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) lease.Store {
		return k8s.New(newFakeClient(), testNS)
	}, storetest.Config{LockDuration: 2 * time.Second})
}

func TestLeaseObjectFields(t *testing.T) {
	cs := newFakeClient()
	s := k8s.New(cs, testNS, k8s.WithLabels(map[string]string{"team": "billing"}))
	ctx := context.Background()

	if err := s.CreateIfAbsent(ctx, "Invoice_Sync", []byte(`{"cursor":"p1"}`)); err != nil {
		t.Fatalf("CreateIfAbsent: %v", err)
	}
	token, err := s.AcquireLock(ctx, "Invoice_Sync", 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}

	l, err := cs.CoordinationV1().Leases(testNS).Get(ctx, "invoice-sync", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get lease object: %v", err)
	}
	if l.Spec.HolderIdentity == nil || *l.Spec.HolderIdentity != token {
		t.Errorf("holderIdentity = %v, want %q", l.Spec.HolderIdentity, token)
	}
	if l.Spec.LeaseDurationSeconds == nil || *l.Spec.LeaseDurationSeconds != 2 {
		t.Errorf("leaseDurationSeconds = %v, want 2", l.Spec.LeaseDurationSeconds)
	}
	if got := l.Labels["app.kubernetes.io/managed-by"]; got != "jobhost" {
		t.Errorf("managed-by label = %q", got)
	}
	if got := l.Labels["team"]; got != "billing" {
		t.Errorf("team label = %q", got)
	}
	if got := l.Annotations["jobhost.xraph.com/payload"]; got == "" {
		t.Error("payload annotation missing")
	}

	if err := s.ReleaseLock(ctx, "Invoice_Sync", token); err != nil {
		t.Fatalf("ReleaseLock: %v", err)
	}
	l, err = cs.CoordinationV1().Leases(testNS).Get(ctx, "invoice-sync", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get lease object: %v", err)
	}
	if l.Spec.HolderIdentity != nil {
		t.Errorf("holderIdentity after release = %q, want nil", *l.Spec.HolderIdentity)
	}
}

func TestAcquireMissingObject(t *testing.T) {
	s := k8s.New(newFakeClient(), testNS)
	if _, err := s.AcquireLock(context.Background(), "absent", time.Second); !errors.Is(err, lease.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestPing(t *testing.T) {
	s := k8s.New(newFakeClient(), testNS)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
