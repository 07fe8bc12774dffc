package provideradapter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rexlunae/agentgw/internal/retryengine"
)

// FailoverReason categorizes why a provider request failed. It is a superset
// of internal/retryengine.Reason: retryengine only needs to know transient
// vs. permanent to decide whether to retry the same provider, but a gateway
// juggling several providers also needs to decide whether to try a
// *different* provider/model entirely (billing, auth, model-not-found,
// content policy) — none of which retryengine has any business knowing
// about, since those never resolve by waiting and retrying.
type FailoverReason string

const (
	FailoverBilling          FailoverReason = "billing"
	FailoverRateLimit        FailoverReason = "rate_limit"
	FailoverAuth             FailoverReason = "auth"
	FailoverTimeout          FailoverReason = "timeout"
	FailoverServerError      FailoverReason = "server_error"
	FailoverInvalidRequest   FailoverReason = "invalid_request"
	FailoverModelUnavailable FailoverReason = "model_unavailable"
	FailoverContentFilter    FailoverReason = "content_filter"
	FailoverUnknown          FailoverReason = "unknown"
)

// IsRetryable reports whether retrying the same provider/model may succeed.
func (r FailoverReason) IsRetryable() bool {
	switch r {
	case FailoverRateLimit, FailoverTimeout, FailoverServerError:
		return true
	default:
		return false
	}
}

// ShouldFailover reports whether this error warrants trying a different
// provider or model rather than retrying the same one.
func (r FailoverReason) ShouldFailover() bool {
	switch r {
	case FailoverBilling, FailoverAuth, FailoverModelUnavailable:
		return true
	default:
		return false
	}
}

// ProviderError is a structured error from an LLM provider, carrying enough
// context for retry logic, failover decisions, and debugging.
type ProviderError struct {
	Reason    FailoverReason
	Provider  string
	Model     string
	Status    int
	Code      string
	Message   string
	RequestID string
	Cause     error
}

func (e *ProviderError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Reason))
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError wraps a raw error from a provider call, classifying it
// via ClassifyError.
func NewProviderError(provider, model string, cause error) *ProviderError {
	err := &ProviderError{Provider: provider, Model: model, Cause: cause, Reason: FailoverUnknown}
	if cause != nil {
		err.Message = cause.Error()
		err.Reason = ClassifyError(cause)
	}
	return err
}

// WithStatus adds an HTTP status and reclassifies from it.
func (e *ProviderError) WithStatus(status int) *ProviderError {
	e.Status = status
	e.Reason = classifyStatusCode(status)
	return e
}

// WithCode adds a provider-specific error code and reclassifies if the code
// is one we recognize.
func (e *ProviderError) WithCode(code string) *ProviderError {
	e.Code = code
	if reason := classifyErrorCode(code); reason != FailoverUnknown {
		e.Reason = reason
	}
	return e
}

func (e *ProviderError) WithRequestID(id string) *ProviderError {
	e.RequestID = id
	return e
}

func (e *ProviderError) WithMessage(msg string) *ProviderError {
	e.Message = msg
	return e
}

// retryReasonToFailover maps retryengine's narrower transient-vs-permanent
// classification onto the richer FailoverReason set, for the cases both
// systems agree are transient.
func retryReasonToFailover(r retryengine.Reason) FailoverReason {
	switch r {
	case retryengine.ReasonRateLimited:
		return FailoverRateLimit
	case retryengine.ReasonTimeout:
		return FailoverTimeout
	case retryengine.ReasonServerError, retryengine.ReasonConnectFailed,
		retryengine.ReasonTLSHandshake, retryengine.ReasonStreamStall:
		return FailoverServerError
	default:
		return FailoverUnknown
	}
}

// ClassifyError inspects a raw transport-level error. It first defers to
// retryengine.ClassifyError for the transient/permanent call (the single
// source of truth the retry driver itself uses), then — only for errors
// retryengine judged non-retryable — checks for the failover-specific
// categories retryengine doesn't model: billing, auth, content filters, and
// model availability.
func ClassifyError(err error) FailoverReason {
	if err == nil {
		return FailoverUnknown
	}

	if decision := retryengine.ClassifyError(err); decision.Retry {
		return retryReasonToFailover(decision.Reason)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "billing"), strings.Contains(msg, "payment"),
		strings.Contains(msg, "quota"), strings.Contains(msg, "insufficient"),
		strings.Contains(msg, "402"):
		return FailoverBilling
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "invalid_api_key"), strings.Contains(msg, "authentication"),
		strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return FailoverAuth
	case strings.Contains(msg, "content_filter"), strings.Contains(msg, "content policy"),
		strings.Contains(msg, "safety"), strings.Contains(msg, "blocked"):
		return FailoverContentFilter
	case strings.Contains(msg, "model not found"), strings.Contains(msg, "model_not_found"),
		strings.Contains(msg, "does not exist"), strings.Contains(msg, "unavailable"):
		return FailoverModelUnavailable
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "rate_limit"),
		strings.Contains(msg, "too many requests"), strings.Contains(msg, "429"):
		return FailoverRateLimit
	case strings.Contains(msg, "internal server"), strings.Contains(msg, "server error"),
		strings.Contains(msg, "500"), strings.Contains(msg, "502"),
		strings.Contains(msg, "503"), strings.Contains(msg, "504"):
		return FailoverServerError
	}

	return FailoverUnknown
}

// classifyStatusCode layers failover-specific HTTP statuses (401/402/403/400/404,
// none of which retryengine.ClassifyHTTPStatus distinguishes from one
// another since they're all non-retryable to it) on top of retryengine's
// transient/permanent split.
func classifyStatusCode(status int) FailoverReason {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return FailoverAuth
	case http.StatusPaymentRequired:
		return FailoverBilling
	case http.StatusBadRequest:
		return FailoverInvalidRequest
	case http.StatusNotFound:
		return FailoverModelUnavailable
	}

	if decision := retryengine.ClassifyHTTPStatus(status); decision.Retry {
		return retryReasonToFailover(decision.Reason)
	}
	if status >= 500 {
		return FailoverServerError
	}
	return FailoverUnknown
}

// classifyErrorCode maps known provider-specific error codes to a FailoverReason.
func classifyErrorCode(code string) FailoverReason {
	switch strings.ToLower(code) {
	case "rate_limit_error", "rate_limit_exceeded":
		return FailoverRateLimit
	case "authentication_error", "invalid_api_key":
		return FailoverAuth
	case "billing_error", "insufficient_quota":
		return FailoverBilling
	case "model_not_found", "model_not_available":
		return FailoverModelUnavailable
	case "content_policy_violation", "content_filter":
		return FailoverContentFilter
	case "server_error", "internal_error":
		return FailoverServerError
	case "invalid_request_error":
		return FailoverInvalidRequest
	default:
		return FailoverUnknown
	}
}

// IsProviderError reports whether err is (or wraps) a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// GetProviderError extracts a *ProviderError from err's chain, if present.
func GetProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable reports whether err should be retried against the same provider.
func IsRetryable(err error) bool {
	if pe, ok := GetProviderError(err); ok {
		return pe.Reason.IsRetryable()
	}
	return ClassifyError(err).IsRetryable()
}

// ShouldFailover reports whether err warrants trying a different provider.
func ShouldFailover(err error) bool {
	if pe, ok := GetProviderError(err); ok {
		return pe.Reason.ShouldFailover()
	}
	return ClassifyError(err).ShouldFailover()
}
