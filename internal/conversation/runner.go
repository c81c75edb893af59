package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentestate/outreach/internal/leads"
	"github.com/agentestate/outreach/pkg/logging"
)

// maxHops bounds one turn through the graph. The longest legitimate path is
// supervisor, booking, router, sms, email; anything longer is a routing bug.
const maxHops = 8

// GraphRunner walks one turn through the conversation graph: it dispatches
// each decision to the named node, applies the patch between hops, and
// serializes turns per lead so concurrent webhook deliveries cannot
// interleave writes.
type GraphRunner struct {
	supervisor  *Supervisor
	specialists map[leads.PropertyType]*Specialist
	booking     *BookingAgent
	router      *Router
	smsAgent    *ChannelAgent
	emailAgent  *ChannelAgent
	logger      *logging.Logger
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGraphRunner wires the graph. All node handlers are required.
func NewGraphRunner(
	supervisor *Supervisor,
	specialists map[leads.PropertyType]*Specialist,
	booking *BookingAgent,
	router *Router,
	smsAgent, emailAgent *ChannelAgent,
	logger *logging.Logger,
) *GraphRunner {
	if supervisor == nil || booking == nil || router == nil {
		panic("conversation: graph runner requires supervisor, booking agent and router")
	}
	if smsAgent == nil || emailAgent == nil {
		panic("conversation: graph runner requires both channel agents")
	}
	if len(specialists) == 0 {
		panic("conversation: graph runner requires at least one specialist")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GraphRunner{
		supervisor:  supervisor,
		specialists: specialists,
		booking:     booking,
		router:      router,
		smsAgent:    smsAgent,
		emailAgent:  emailAgent,
		logger:      logger,
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
	}
}

// lockFor returns the per-lead mutex, creating it on first use. Lead count
// per process is bounded by campaign size, so entries are never evicted.
func (r *GraphRunner) lockFor(leadID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[leadID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[leadID] = l
	}
	return l
}

// Run executes one full turn for the lead: an inbound reply when text is
// non-empty, a proactive touch otherwise. The state is mutated in place via
// applied patches; the returned trace lists every decision in order.
func (r *GraphRunner) Run(ctx context.Context, st *State, inbound string) ([]Decision, error) {
	if st == nil {
		return nil, fmt.Errorf("conversation: nil state")
	}
	lock := r.lockFor(st.LeadID)
	lock.Lock()
	defer lock.Unlock()

	isReply := inbound != ""
	trace := make([]Decision, 0, 4)

	d := r.supervisor.Route(ctx, st, inbound)
	st.Apply(d.Patch)
	trace = append(trace, d)

	for hops := 0; d.Next != NodeEnd; hops++ {
		if hops >= maxHops {
			return trace, fmt.Errorf("conversation: graph exceeded %d hops for lead %s", maxHops, st.LeadID)
		}
		next, err := r.dispatch(ctx, st, d, inbound, isReply)
		if err != nil {
			return trace, err
		}
		d = next
		st.Apply(d.Patch)
		trace = append(trace, d)
	}

	if reason, ok := ShouldEscalate(st); ok && st.EscalationReason == "" {
		st.Apply(Patch{EscalationReason: stringPtr(reason)})
		r.logger.Info("conversation flagged for human attention", "lead_id", st.LeadID, "reason", reason)
	}
	return trace, nil
}

// dispatch invokes the node the previous decision named.
func (r *GraphRunner) dispatch(ctx context.Context, st *State, d Decision, inbound string, isReply bool) (Decision, error) {
	switch d.Next {
	case NodeSpecialist:
		spec, ok := r.specialists[st.PropertyType]
		if !ok {
			return Decision{}, fmt.Errorf("conversation: no specialist for property type %q", st.PropertyType)
		}
		return r.runSpecialist(ctx, spec, st, d.Action, inbound), nil
	case NodeBooking:
		if d.Action == ActionNotInterested {
			return r.booking.HandleDecline(st, r.specialists[st.PropertyType]), nil
		}
		return r.booking.Handle(ctx, st, inbound), nil
	case NodeRouter:
		return r.router.Route(st, d.Message, r.now().UTC(), isReply), nil
	case NodeSMS:
		return r.smsAgent.Send(ctx, st, d.Message), nil
	case NodeEmail:
		return r.emailAgent.Send(ctx, st, d.Message), nil
	}
	return Decision{}, fmt.Errorf("conversation: unknown graph node %q", d.Next)
}

// runSpecialist maps the supervisor's action onto the specialist operation.
func (r *GraphRunner) runSpecialist(ctx context.Context, spec *Specialist, st *State, action Action, inbound string) Decision {
	switch action {
	case ActionInitialOutreach:
		return Decision{
			Next:    NodeRouter,
			Action:  ActionInitialOutreach,
			Patch:   Patch{Handler: spec.handlerName(), NextAction: actionPtr(ActionInitialOutreach)},
			Message: spec.InitialOutreach(st),
		}
	case ActionNotInterested:
		return spec.HandleDecline(st)
	case ActionHandleObjection:
		return spec.HandleObjection(ctx, st, inbound)
	default:
		return spec.HandleMessage(ctx, st, inbound)
	}
}

// RunFollowUp sends the sequenced follow-up touch outside the inbound graph.
// sequence counts follow-ups already sent.
func (r *GraphRunner) RunFollowUp(ctx context.Context, st *State, sequence int) ([]Decision, error) {
	if st == nil {
		return nil, fmt.Errorf("conversation: nil state")
	}
	spec, ok := r.specialists[st.PropertyType]
	if !ok {
		return nil, fmt.Errorf("conversation: no specialist for property type %q", st.PropertyType)
	}
	lock := r.lockFor(st.LeadID)
	lock.Lock()
	defer lock.Unlock()

	msg := spec.FollowUp(st, sequence)
	if msg == nil {
		return nil, nil
	}
	stage := StageFollowUp
	d := Decision{
		Next:    NodeRouter,
		Action:  ActionSendMessage,
		Patch:   Patch{Handler: spec.handlerName(), Stage: &stage},
		Message: msg,
	}
	st.Apply(d.Patch)
	trace := []Decision{d}

	for hops := 0; d.Next != NodeEnd; hops++ {
		if hops >= maxHops {
			return trace, fmt.Errorf("conversation: graph exceeded %d hops for lead %s", maxHops, st.LeadID)
		}
		next, err := r.dispatch(ctx, st, d, "", false)
		if err != nil {
			return trace, err
		}
		d = next
		st.Apply(d.Patch)
		trace = append(trace, d)
	}
	return trace, nil
}

// RunNoShow sends the escalating no-show message through the graph.
func (r *GraphRunner) RunNoShow(ctx context.Context, st *State) ([]Decision, error) {
	if st == nil {
		return nil, fmt.Errorf("conversation: nil state")
	}
	lock := r.lockFor(st.LeadID)
	lock.Lock()
	defer lock.Unlock()

	d := r.booking.NoShow(st)
	st.Apply(d.Patch)
	trace := []Decision{d}

	for hops := 0; d.Next != NodeEnd; hops++ {
		if hops >= maxHops {
			return trace, fmt.Errorf("conversation: graph exceeded %d hops for lead %s", maxHops, st.LeadID)
		}
		next, err := r.dispatch(ctx, st, d, "", false)
		if err != nil {
			return trace, err
		}
		d = next
		st.Apply(d.Patch)
		trace = append(trace, d)
	}

	if reason, ok := ShouldEscalate(st); ok && st.EscalationReason == "" {
		st.Apply(Patch{EscalationReason: stringPtr(reason)})
	}
	return trace, nil
}
