// Package awsexpect defines the core types and helpers shared by the expectation
// packages: the generic fixed-interval poll loop, the subset-match predicate,
// context-aware sleep, and the wait timeout error types. Concrete targets live in
// subpackages such as aws_s3 (S3 objects) and aws_dynamodb (DynamoDB items), each
// exposing an Expect factory bound to one remote resource.
// The subpackages share the common "wait until the condition holds or the deadline
// passes" contract implemented here, so new targets only need a read operation and
// a condition.
package awsexpect

// Timeout model
//
// A wait call is bounded by two timers:
//  1. The caller-provided context deadline/cancellation which propagates into every
//     remote read and each inter-poll sleep.
//  2. The wait's own timeout, converted once into an absolute deadline before the
//     first read and never extended mid-wait.
//
// The deadline arithmetic uses Now (time.Now by default) and time.Time differences,
// which Go computes on the monotonic clock, so wall-clock adjustments cannot skew a
// wait. A timed-out wait always surfaces as an error wrapping ErrWaitTimeout; every
// other failure from a remote read surfaces to the caller untouched, because only
// "not yet satisfied" is a legitimate reason to retry.
