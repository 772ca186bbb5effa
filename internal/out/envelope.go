package out

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/model"
)

func NewRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// Success wraps data in a v1 envelope.
func Success(command string, data any, warnings []string, providers []model.ProviderStatus, now time.Time) model.Envelope {
	return model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: NewRequestID(),
			Timestamp: now.UTC(),
			Command:   command,
			Providers: providers,
		},
	}
}

// Failure wraps err in a v1 envelope. Upstream failures carry the provider's
// status and raw body.
func Failure(command string, err error, warnings []string, providers []model.ProviderStatus, now time.Time) model.Envelope {
	return model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  false,
		Data:     []any{},
		Error:    ErrorBody(err),
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: NewRequestID(),
			Timestamp: now.UTC(),
			Command:   command,
			Providers: providers,
		},
	}
}

func ErrorBody(err error) *model.ErrorBody {
	body := &model.ErrorBody{
		Code:    clierr.ExitCode(err),
		Type:    clierr.TypeOf(err),
		Message: err.Error(),
	}
	if cErr, ok := clierr.As(err); ok {
		body.Message = cErr.Message
		if cErr.Cause != nil {
			body.Message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
	}
	if up, ok := clierr.Upstream(err); ok {
		body.UpstreamStatus = up.Status
		body.UpstreamBody = up.Body
	}
	return body
}

// ProviderStatus reports the outcome of one provider call.
func ProviderStatus(name string, err error, latency time.Duration) model.ProviderStatus {
	return model.ProviderStatus{Name: name, Status: statusFromErr(err), LatencyMS: latency.Milliseconds()}
}

func statusFromErr(err error) string {
	if err == nil {
		return "ok"
	}
	cErr, ok := clierr.As(err)
	if !ok {
		return "error"
	}
	switch cErr.Code {
	case clierr.CodeConfiguration:
		return "auth_error"
	case clierr.CodeUnsupportedRoute:
		return "no_route"
	case clierr.CodeUpstream:
		return "unavailable"
	case clierr.CodeCancelled:
		return "cancelled"
	default:
		return "error"
	}
}
