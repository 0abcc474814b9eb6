// Package k8s implements store.Store on Kubernetes coordination/v1 Lease
// objects.
//
// Each lease name maps to one Lease in the configured namespace. The lock
// token is the Lease's holderIdentity and the lock is valid until
// renewTime + leaseDurationSeconds. The payload is kept base64-encoded in
// an annotation on the same object. Every conditional write is an Update
// guarded by the object's resourceVersion, so two processes racing for the
// lock cannot both win.
//
// Example:
//
//	cfg, _ := rest.InClusterConfig()
//	client := kubernetes.NewForConfigOrDie(cfg)
//	s := k8s.New(client, "jobs")
//	mgr := lease.NewManager(s)
package k8s
