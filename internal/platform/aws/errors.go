package aws

import (
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/util/retry"
)

// errorCode extracts the provider error code, or "".
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// httpStatus extracts the HTTP status of a failed SDK call, or 0.
func httpStatus(err error) int {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}

// IsThrottle checks if an error indicates request throttling. Throttled calls
// are retryable.
func IsThrottle(err error) bool {
	switch errorCode(err) {
	case "Throttling", "ThrottlingException", "RequestLimitExceeded",
		"TooManyRequestsException", "RequestThrottled", "RequestThrottledException":
		return true
	}
	return httpStatus(err) == 429
}

// IsAccessDenied checks if an error indicates a missing permission. These are
// fatal; retrying cannot help.
func IsAccessDenied(err error) bool {
	switch errorCode(err) {
	case "UnauthorizedOperation", "AccessDenied", "AccessDeniedException":
		return true
	}
	return httpStatus(err) == 403
}

// IsNotFound checks if an error indicates the resource no longer exists.
// EC2 encodes these as Invalid<Type>.NotFound / Invalid<Type>ID.NotFound.
func IsNotFound(err error) bool {
	code := errorCode(err)
	return strings.HasSuffix(code, ".NotFound") || code == "ResourceNotFoundException"
}

var remediationOnce sync.Once

// Classify maps provider errors onto retry decisions: service faults (5xx)
// and throttling are transient; permission errors abort and are reported with
// remediation before propagating; everything else is not retried.
func Classify(err error) retry.Decision {
	if IsThrottle(err) || httpStatus(err) >= 500 {
		return retry.Retry
	}
	if IsAccessDenied(err) {
		remediationOnce.Do(func() {
			log.Printf("[AWS] Access denied (%s). The active credentials are missing a permission; "+
				"attach an IAM policy granting ec2:*, emr:ListClusters, emr:DescribeCluster and "+
				"emr:TerminateJobFlows to this principal and re-run.", errorCode(err))
		})
	}
	return retry.Abort
}

// retryOptions builds the standard retry options for provider calls.
func retryOptions(t *config.Timeouts) []retry.Option {
	return []retry.Option{
		retry.WithMaxAttempts(t.RetryMaxAttempts),
		retry.WithBaseDelay(t.RetryBaseDelay),
		retry.WithClassifier(Classify),
	}
}
