package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig selects the Paddle account and environment.
type PaddleConfig struct {
	APIKey      string `env:"PADDLE_API_KEY"`
	Environment string `env:"PADDLE_ENVIRONMENT" envDefault:"sandbox"`
}

// TransactionGetter is the part of the Paddle SDK the redirector uses.
// *paddle.TransactionsClient satisfies it.
type TransactionGetter interface {
	GetTransaction(ctx context.Context, req *paddle.GetTransactionRequest) (*paddle.Transaction, error)
}

// PaddleRedirector treats the session id as a Paddle transaction id and
// returns that transaction's hosted checkout link.
type PaddleRedirector struct {
	transactions TransactionGetter
}

func NewPaddleRedirector(cfg PaddleConfig) (*PaddleRedirector, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("checkout: paddle API key is required")
	}

	var (
		sdk *paddle.SDK
		err error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox", "":
		sdk, err = paddle.NewSandbox(cfg.APIKey)
	case "production":
		sdk, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("checkout: invalid paddle environment %q", cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("checkout: create paddle client: %w", err)
	}
	return NewPaddleRedirectorWithClient(sdk.TransactionsClient), nil
}

func NewPaddleRedirectorWithClient(transactions TransactionGetter) *PaddleRedirector {
	return &PaddleRedirector{transactions: transactions}
}

func (r *PaddleRedirector) CheckoutURL(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrEmptySessionID
	}
	txn, err := r.transactions.GetTransaction(ctx, &paddle.GetTransactionRequest{TransactionID: sessionID})
	if err != nil {
		return "", errors.Join(ErrProvider, err)
	}
	if txn == nil || txn.Checkout == nil || txn.Checkout.URL == nil || *txn.Checkout.URL == "" {
		return "", ErrNoCheckoutURL
	}
	return *txn.Checkout.URL, nil
}
