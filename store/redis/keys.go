package redis

// Redis key naming conventions for jobhost data.
// All keys are prefixed with "jobhost:" to avoid collisions.

const keyPrefix = "jobhost:"

// objectKey returns the payload key for a lease: jobhost:lease:{name}
func objectKey(name string) string { return keyPrefix + "lease:" + name }

// lockKey returns the lock key for a lease: jobhost:lease:{name}:lock
func lockKey(name string) string { return objectKey(name) + ":lock" }
