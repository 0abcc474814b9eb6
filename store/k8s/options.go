package k8s

import (
	"log/slog"
	"maps"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithAnnotationPrefix sets the prefix for the payload annotation.
// Default: "jobhost.xraph.com/".
func WithAnnotationPrefix(prefix string) Option {
	return func(s *Store) { s.annotationPrefix = prefix }
}

// WithLabels adds labels to every Lease the store creates.
func WithLabels(labels map[string]string) Option {
	return func(s *Store) { maps.Copy(s.labels, labels) }
}
