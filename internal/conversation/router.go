package conversation

import (
	"time"
)

// ChannelDecision is the router's pick, with the reason a channel was ruled
// out when none is usable.
type ChannelDecision struct {
	Channel Channel
	Reason  string
}

// Router chooses the outbound channel for a message. It has no side
// effects: it only reads the communication log and the compliance snapshot
// as they stood at the start of the turn.
type Router struct {
	dailySMSCap   int
	dailyEmailCap int
	quietHours    func(now time.Time) bool
}

// NewRouter builds a channel router. quietHours may be nil when no window is
// configured. Caps of zero fall back to the defaults (5 SMS, 3 email).
func NewRouter(dailySMSCap, dailyEmailCap int, quietHours func(now time.Time) bool) *Router {
	if dailySMSCap <= 0 {
		dailySMSCap = DefaultDailySMSCap
	}
	if dailyEmailCap <= 0 {
		dailyEmailCap = DefaultDailyEmailCap
	}
	return &Router{
		dailySMSCap:   dailySMSCap,
		dailyEmailCap: dailyEmailCap,
		quietHours:    quietHours,
	}
}

// CanUseSMS reports whether SMS is currently usable for the lead: a phone on
// file, no opt-out, outside quiet hours for proactive sends, no failure in
// the last 24h, and under the daily cap.
func (r *Router) CanUseSMS(st *State, now time.Time, isReply bool) (bool, string) {
	if st.Phone == "" {
		return false, "no_phone"
	}
	if st.Compliance.OptedOut {
		return false, "opted_out"
	}
	if !isReply && r.quietHours != nil && r.quietHours(now) {
		return false, "quiet_hours"
	}
	if st.FailedRecently(ChannelSMS, now) {
		return false, "sms_failed_recently"
	}
	if st.CountSentToday(ChannelSMS, now) >= r.dailySMSCap {
		return false, "sms_daily_cap"
	}
	return true, ""
}

// CanUseEmail reports whether email is currently usable for the lead: an
// email on file, no opt-out, no failure in the last 6h, and under the daily
// cap. Email is exempt from quiet hours.
func (r *Router) CanUseEmail(st *State, now time.Time) (bool, string) {
	if st.Email == "" {
		return false, "no_email"
	}
	if st.Compliance.OptedOut {
		return false, "opted_out"
	}
	if st.FailedRecently(ChannelEmail, now) {
		return false, "email_failed_recently"
	}
	if st.CountSentToday(ChannelEmail, now) >= r.dailyEmailCap {
		return false, "email_daily_cap"
	}
	return true, ""
}

// DecideChannel picks SMS first, email second, none when neither passes.
func (r *Router) DecideChannel(st *State, now time.Time, isReply bool) ChannelDecision {
	if ok, _ := r.CanUseSMS(st, now, isReply); ok {
		return ChannelDecision{Channel: ChannelSMS}
	}
	if ok, _ := r.CanUseEmail(st, now); ok {
		return ChannelDecision{Channel: ChannelEmail}
	}

	_, smsReason := r.CanUseSMS(st, now, isReply)
	_, emailReason := r.CanUseEmail(st, now)
	return ChannelDecision{
		Channel: ChannelNone,
		Reason:  smsReason + "," + emailReason,
	}
}

// Route is the router's node contract: it stamps the chosen channel onto the
// pending message or ends the turn with no_channels_available.
func (r *Router) Route(st *State, msg *OutboundMessage, now time.Time, isReply bool) Decision {
	decision := r.DecideChannel(st, now, isReply)
	patch := Patch{Handler: string(NodeRouter)}

	if decision.Channel == ChannelNone || msg == nil {
		patch.NextAction = actionPtr(ActionNoChannelsAvailable)
		if decision.Reason != "" {
			patch.LastError = stringPtr("no channels available: " + decision.Reason)
		}
		return Decision{Next: NodeEnd, Action: ActionNoChannelsAvailable, Patch: patch}
	}

	routed := *msg
	routed.Channel = decision.Channel
	switch decision.Channel {
	case ChannelSMS:
		routed.To = st.Phone
		patch.NextAction = actionPtr(ActionSendMessage)
		return Decision{Next: NodeSMS, Action: ActionSendMessage, Patch: patch, Message: &routed}
	default:
		routed.To = st.Email
		patch.NextAction = actionPtr(ActionSendMessage)
		return Decision{Next: NodeEmail, Action: ActionSendMessage, Patch: patch, Message: &routed}
	}
}
