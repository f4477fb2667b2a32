package billing

import "context"

// NotificationSender delivers a post-authorization notification. Delivery is
// best effort: a failure is logged by the caller and never reverts the
// already-committed authorized outcome.
type NotificationSender interface {
	NotifyAuthorized(ctx context.Context, invoice *Invoice) error
}
