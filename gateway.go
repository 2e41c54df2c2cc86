package tiergate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tiergate/tiergate/admission"
)

// Admission is the gate evaluated before any dispatch work runs.
type Admission interface {
	Check(req admission.Request) admission.Decision
}

// Gateway is the outermost composition: caller → admission → engine.
// A denial short-circuits before classification or selection run; an
// admitted query is dispatched and its outcome fed back into the registry's
// usage statistics.
type Gateway struct {
	admission Admission
	engine    *Engine
}

// NewGateway creates a Gateway. A nil admission admits everything.
func NewGateway(adm Admission, engine *Engine) (*Gateway, error) {
	if engine == nil {
		return nil, fmt.Errorf("tiergate: gateway: engine is required")
	}
	return &Gateway{admission: adm, engine: engine}, nil
}

// Handle runs one query end to end. The Decision carries the remaining
// window counts for caller-visible headers whether or not the query was
// admitted.
func (g *Gateway) Handle(ctx context.Context, q Query, opts ...DispatchOption) (DispatchResult, admission.Decision) {
	if q.Arrival.IsZero() {
		q.Arrival = time.Now()
	}

	dec := admission.Decision{Allowed: true, Limits: admission.LimitsFor(admission.Plan(q.Plan))}
	if g.admission != nil {
		dec = g.admission.Check(admission.Request{
			Identity: q.Identity(),
			UserID:   q.UserID,
			Address:  q.Address,
			Plan:     admission.Plan(q.Plan),
		})
	}

	if !dec.Allowed {
		return DispatchResult{
			ID:      uuid.New().String(),
			Success: false,
			Err:     fmt.Errorf("%w (%s): %s", ErrAdmissionDenied, dec.Kind, dec.Reason),
		}, dec
	}

	res := g.engine.Dispatch(ctx, q, opts...)

	if res.ModelUsed != "" && !res.CacheHit {
		g.engine.registry.RecordUse(res.ModelUsed, res.Success, res.Latency, res.Cost)
	}

	return res, dec
}
