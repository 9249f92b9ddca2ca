// Package retry provides exponential backoff retry logic for transient failures.
//
// The [Do] function retries an operation with configurable max attempts, base
// delay, and an error classifier. It is used for AWS API calls and other
// operations that may fail transiently.
package retry
