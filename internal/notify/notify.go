// Package notify delivers best-effort direct messages. Delivery failures
// and rate-limited sends are logged and dropped; they never fail the
// operation that requested the notification.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/TempVoice/internal/platform"
	logger "github.com/Gopher0727/TempVoice/middleware/log"
	"github.com/Gopher0727/TempVoice/utils/ratelimit"
)

const window = time.Minute

// Notifier sends rate-limited direct messages through the platform.
type Notifier struct {
	pf        platform.Client
	limiter   ratelimit.Limiter
	perMinute int
	log       *logger.Logger
}

func NewNotifier(pf platform.Client, limiter ratelimit.Limiter, perMinute int, log *logger.Logger) *Notifier {
	return &Notifier{
		pf:        pf,
		limiter:   limiter,
		perMinute: perMinute,
		log:       log,
	}
}

// Notify sends a direct message to the member, subject to the per-member
// rate limit.
func (n *Notifier) Notify(ctx context.Context, memberID, content string) {
	allowed, err := n.limiter.Allow(ctx, "notify:"+memberID, n.perMinute, window)
	if err != nil {
		n.log.WarnContext(ctx, "notification rate limit check failed",
			zap.String("member_id", memberID),
			zap.Error(err),
		)
		return
	}
	if !allowed {
		n.log.DebugContext(ctx, "notification dropped by rate limit",
			zap.String("member_id", memberID),
		)
		return
	}

	if err := n.pf.SendDirectMessage(ctx, memberID, content); err != nil {
		// DMs may be closed; that is the member's choice, not a fault.
		n.log.DebugContext(ctx, "direct message not delivered",
			zap.String("member_id", memberID),
			zap.Error(err),
		)
	}
}
