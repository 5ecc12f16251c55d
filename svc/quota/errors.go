package quota

import "errors"

var (
	ErrQuotaExceeded          = errors.New("monthly report quota exceeded")
	ErrSubscriptionInactive   = errors.New("subscription does not allow submissions")
	ErrFeatureNotInPlan       = errors.New("feature is not included in the current plan")
	ErrAttachmentLimitReached = errors.New("attachment limit for the current plan reached")
	ErrFileTooLarge           = errors.New("file exceeds the plan's size limit")
)
