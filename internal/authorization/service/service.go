// Package service is the authorization orchestrator: it evaluates the threshold policy, issues and
// verifies one-time-code challenges, builds approval receipts, anchors them on the ledger, and
// appends fraud events.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	frauddomain "payshield/backend/internal/fraud/domain"
	"payshield/backend/internal/ledger"
	"payshield/backend/internal/mfa"
	"payshield/backend/internal/mfa/delivery"
	"payshield/backend/internal/policy"
	"payshield/backend/internal/proof"
	receiptdomain "payshield/backend/internal/receipt/domain"
)

// ErrInvalidArgument is returned for malformed input; handlers map it to 400.
var ErrInvalidArgument = errors.New("invalid argument")

// DefaultAnchorWait bounds how long Verify waits for the ledger before returning a receipt without
// a ledger reference. The write continues in the background.
const DefaultAnchorWait = 45 * time.Second

// Methods offered when a challenge is required.
var challengeMethods = []string{receiptdomain.MethodOTP}

// Anchorer anchors approval hashes. Implemented by *ledger.Client.
type Anchorer interface {
	Anchor(ctx context.Context, approvalHash string) ledger.AnchorResult
}

// ReceiptSaver persists receipts.
type ReceiptSaver interface {
	Save(ctx context.Context, r *receiptdomain.Receipt) error
}

// EventLog is the append side of the fraud event log.
type EventLog interface {
	Append(ctx context.Context, e frauddomain.Event) error
}

// EventNotifier receives appended events for fire-and-forget fan-out. Notify must not block.
type EventNotifier interface {
	Notify(e frauddomain.Event) bool
}

// Deps holds the orchestrator's collaborators. Policy, Challenges, Receipts and Events are required.
type Deps struct {
	Policy     policy.Evaluator
	Challenges mfa.Store
	// Delivery sends codes out of band. If nil, codes are issued but reported as not delivered.
	Delivery delivery.Deliverer
	// Ledger anchors approval hashes. If nil, receipts are issued without a ledger reference.
	Ledger   Anchorer
	Receipts ReceiptSaver
	Events   EventLog
	// Notifier is optional.
	Notifier EventNotifier
	// AnchorWait bounds the ledger wait in Verify (DefaultAnchorWait if zero).
	AnchorWait time.Duration
	// MeterProvider and TracerProvider default to no-op.
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Service orchestrates preauth, challenge issue, and verification. Safe for concurrent use.
type Service struct {
	policy     policy.Evaluator
	challenges mfa.Store
	delivery   delivery.Deliverer
	ledger     Anchorer
	receipts   ReceiptSaver
	events     EventLog
	notifier   EventNotifier
	anchorWait time.Duration
	states     *stateTable
	nowF       func() time.Time

	tracer         trace.Tracer
	preauthCounter metric.Int64Counter
	outcomeCounter metric.Int64Counter
	anchorCounter  metric.Int64Counter
}

// New returns a Service with the given dependencies.
func New(d Deps) (*Service, error) {
	if d.Policy == nil || d.Challenges == nil || d.Receipts == nil || d.Events == nil {
		return nil, errors.New("authorization: policy, challenges, receipts and events are required")
	}
	mp := d.MeterProvider
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	tp := d.TracerProvider
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	meter := mp.Meter("payshield/authorization")
	preauths, err := meter.Int64Counter("payshield.preauth.decisions",
		metric.WithDescription("Preauth decisions by result"))
	if err != nil {
		return nil, fmt.Errorf("authorization: preauth counter: %w", err)
	}
	outcomes, err := meter.Int64Counter("payshield.challenge.outcomes",
		metric.WithDescription("Challenge verification outcomes"))
	if err != nil {
		return nil, fmt.Errorf("authorization: challenge counter: %w", err)
	}
	anchors, err := meter.Int64Counter("payshield.ledger.anchors",
		metric.WithDescription("Ledger anchor results"))
	if err != nil {
		return nil, fmt.Errorf("authorization: anchor counter: %w", err)
	}
	wait := d.AnchorWait
	if wait <= 0 {
		wait = DefaultAnchorWait
	}
	return &Service{
		policy:         d.Policy,
		challenges:     d.Challenges,
		delivery:       d.Delivery,
		ledger:         d.Ledger,
		receipts:       d.Receipts,
		events:         d.Events,
		notifier:       d.Notifier,
		anchorWait:     wait,
		states:         newStateTable(),
		nowF:           func() time.Time { return time.Now().UTC() },
		tracer:         tp.Tracer("payshield/authorization"),
		preauthCounter: preauths,
		outcomeCounter: outcomes,
		anchorCounter:  anchors,
	}, nil
}

// PreauthRequest is the input to Preauth. Currency is optional.
type PreauthRequest struct {
	MerchantID string
	OrderID    string
	Amount     decimal.Decimal
	Currency   string
}

// Preauth evaluates the threshold policy. It returns Approved when the amount is within the
// merchant threshold, otherwise ChallengeRequired.
func (s *Service) Preauth(ctx context.Context, req PreauthRequest) (Outcome, error) {
	if err := errors.Join(validateMerchantID(req.MerchantID), validateOrderID(req.OrderID),
		validateAmount(req.Amount), validateCurrency(req.Currency)); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "authorization.Preauth", trace.WithAttributes(
		attribute.String("merchant.id", req.MerchantID),
		attribute.String("order.id", req.OrderID),
	))
	defer span.End()

	dec := s.policy.Evaluate(ctx, req.MerchantID, req.Amount)
	now := s.nowF()
	result := "approved"
	var out Outcome = Approved{OrderID: req.OrderID, Threshold: dec.Threshold}
	st := StateApproved
	if dec.RequiresChallenge {
		result = "challenge_required"
		out = ChallengeRequired{OrderID: req.OrderID, Threshold: dec.Threshold, Methods: challengeMethods}
		st = StateChallengeRequired
	}
	s.states.set(req.OrderID, st, req.MerchantID, req.Amount, now)
	s.preauthCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	span.SetAttributes(attribute.String("preauth.result", result))
	log.Printf("authorization: preauth merchant=%s order=%s amount=%s threshold=%s result=%s",
		req.MerchantID, req.OrderID, req.Amount, dec.Threshold, result)
	return out, nil
}

// SendChallenge issues a new code for the order, replacing any live one, and hands it to the delivery
// channel. Calling it again resends.
func (s *Service) SendChallenge(ctx context.Context, orderID string, amount decimal.Decimal) (Outcome, error) {
	if err := errors.Join(validateOrderID(orderID), validateAmount(amount)); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "authorization.SendChallenge", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	code, expiresAt, err := s.challenges.Issue(ctx, orderID, amount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue challenge")
		return nil, fmt.Errorf("issue challenge: %w", err)
	}
	prev, _ := s.states.get(orderID)
	s.states.set(orderID, StateChallengeSent, "", amount, s.nowF())

	delivered := false
	if s.delivery != nil {
		err := s.delivery.Deliver(ctx, delivery.Message{
			MerchantID: prev.merchantID,
			OrderID:    orderID,
			Code:       code,
			ExpiresAt:  expiresAt,
		})
		if err != nil {
			log.Printf("authorization: deliver code for order %s failed: %v", orderID, err)
		} else {
			delivered = true
		}
	}
	span.SetAttributes(attribute.Bool("challenge.delivered", delivered))
	return ChallengeIssued{OrderID: orderID, ExpiresAt: expiresAt, Delivered: delivered}, nil
}

// VerifyRequest is the input to Verify. PaymentRef is optional and stored on the receipt.
type VerifyRequest struct {
	MerchantID string
	OrderID    string
	Code       string
	PaymentRef string
}

// Verify checks the code. A failed check appends a challenge_failed event and returns Failed; the
// payer may request a new code. A successful check returns Verified with a receipt, whether or not
// the ledger write succeeds.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (Outcome, error) {
	if err := errors.Join(validateMerchantID(req.MerchantID), validateOrderID(req.OrderID), validateCode(req.Code)); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "authorization.Verify", trace.WithAttributes(
		attribute.String("merchant.id", req.MerchantID),
		attribute.String("order.id", req.OrderID),
	))
	defer span.End()

	// An order preauthorized by one merchant cannot be verified under another. The challenge is
	// left live for the owning merchant.
	if st, ok := s.states.get(req.OrderID); ok && st.merchantID != "" && st.merchantID != req.MerchantID {
		s.outcomeCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "merchant_mismatch")))
		span.SetAttributes(attribute.String("challenge.outcome", "merchant_mismatch"))
		s.appendEvent(ctx, frauddomain.NewEvent(frauddomain.KindChallengeFailed, req.MerchantID, req.OrderID,
			st.amount, s.nowF(), string(ReasonNotFound)))
		log.Printf("authorization: verify rejected order=%s: owned by merchant=%s, presented by merchant=%s",
			req.OrderID, st.merchantID, req.MerchantID)
		return Failed{OrderID: req.OrderID, Reason: ReasonNotFound}, nil
	}

	res, err := s.challenges.Verify(ctx, req.OrderID, req.Code)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verify challenge")
		return nil, fmt.Errorf("verify challenge: %w", err)
	}
	s.outcomeCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", res.Outcome.String())))
	span.SetAttributes(attribute.String("challenge.outcome", res.Outcome.String()))

	if res.Outcome != mfa.OutcomeVerified {
		return s.fail(ctx, req, res), nil
	}
	return s.succeed(ctx, req, res)
}

func (s *Service) fail(ctx context.Context, req VerifyRequest, res mfa.Result) Outcome {
	reason := ReasonNotFound
	switch res.Outcome {
	case mfa.OutcomeExpired:
		reason = ReasonExpired
	case mfa.OutcomeMismatch:
		reason = ReasonMismatch
	}
	now := s.nowF()
	amount := res.Amount
	if amount.IsZero() {
		if st, ok := s.states.get(req.OrderID); ok {
			amount = st.amount
		}
	}
	s.appendEvent(ctx, frauddomain.NewEvent(frauddomain.KindChallengeFailed, req.MerchantID, req.OrderID, amount, now, string(reason)))
	s.states.set(req.OrderID, StateChallengeRequired, req.MerchantID, amount, now)
	log.Printf("authorization: verify failed merchant=%s order=%s reason=%s", req.MerchantID, req.OrderID, reason)
	return Failed{OrderID: req.OrderID, Reason: reason}
}

func (s *Service) succeed(ctx context.Context, req VerifyRequest, res mfa.Result) (Outcome, error) {
	now := s.nowF()
	p, err := proof.Build(req.MerchantID, req.OrderID, now.UnixMilli(), receiptdomain.MethodOTP)
	if err != nil {
		return nil, fmt.Errorf("build proof: %w", err)
	}
	rec := &receiptdomain.Receipt{
		MerchantID:   req.MerchantID,
		OrderID:      req.OrderID,
		Method:       receiptdomain.MethodOTP,
		Timestamp:    now.UnixMilli(),
		ProofID:      p.ProofID,
		ApprovalHash: p.ApprovalHash,
		Amount:       res.Amount,
		PaymentRef:   req.PaymentRef,
	}

	anchor := s.anchor(ctx, p.ApprovalHash)
	rec.LedgerRef = anchor.Ref

	s.appendEvent(ctx, frauddomain.NewEvent(frauddomain.KindChallengeSucceeded, req.MerchantID, req.OrderID, res.Amount, now, ""))
	s.appendEvent(ctx, frauddomain.NewEvent(frauddomain.KindTransaction, req.MerchantID, req.OrderID, res.Amount, now, ""))

	if err := s.receipts.Save(ctx, rec); err != nil {
		log.Printf("authorization: save receipt %s for order %s failed: %v", rec.ProofID, rec.OrderID, err)
	}
	s.states.set(req.OrderID, StateVerified, req.MerchantID, res.Amount, now)
	log.Printf("authorization: verified merchant=%s order=%s proof=%s hash=%s", req.MerchantID, req.OrderID, rec.ProofID, rec.ApprovalHash)
	return Verified{Receipt: rec, Anchor: anchor}, nil
}

// anchor is best-effort: every failure mode yields a result without a ledger reference.
func (s *Service) anchor(ctx context.Context, approvalHash string) ledger.AnchorResult {
	if s.ledger == nil {
		return ledger.AnchorResult{Skipped: true}
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.anchorWait)
	defer cancel()
	r := s.ledger.Anchor(waitCtx, approvalHash)
	result := "anchored"
	switch {
	case r.Skipped:
		result = "skipped"
	case r.Pending:
		result = "pending"
	case r.Err != nil:
		result = "failed"
	}
	s.anchorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	return r
}

func (s *Service) appendEvent(ctx context.Context, e frauddomain.Event) {
	if err := s.events.Append(ctx, e); err != nil {
		log.Printf("authorization: append %s event for order %s failed: %v", e.Kind, e.OrderID, err)
		return
	}
	if s.notifier != nil {
		s.notifier.Notify(e)
	}
}

// OrderState returns the tracked state of an order (StateIdle if unknown).
func (s *Service) OrderState(orderID string) State {
	st, _ := s.states.get(orderID)
	return st.state
}

// PurgeStates drops order states not updated within maxAge and returns how many were removed.
func (s *Service) PurgeStates(maxAge time.Duration) int {
	return s.states.purge(s.nowF().Add(-maxAge))
}
