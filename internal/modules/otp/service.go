// README: OTP trust service: 6-digit codes, bcrypt at rest, 3-strike lockout.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	"spoke/internal/types"
)

const maxAttempts = 3

var (
	ErrExpired         = errors.New("otp expired or not issued")
	ErrMismatch        = errors.New("otp mismatch")
	ErrTooManyAttempts = errors.New("otp attempts exhausted")
)

// Store is the ephemeral backing for issued codes. Save replaces the prior
// code and zeroes the counter; Load returns ErrExpired for absent keys.
type Store interface {
	Save(ctx context.Context, orderID types.ID, leg, hash string) error
	Load(ctx context.Context, orderID types.ID, leg string) (hash string, attempts int, err error)
	BumpAttempts(ctx context.Context, orderID types.ID, leg string) (int, error)
	Delete(ctx context.Context, orderID types.ID, leg string) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Issue generates a fresh 6-digit code for the (order, leg) pair. Re-issuing
// replaces the old code, so issuance is safe to retry.
func (s *Service) Issue(ctx context.Context, orderID types.ID, leg string) (string, error) {
	code, err := newCode()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	if err := s.store.Save(ctx, orderID, leg, string(hash)); err != nil {
		return "", err
	}
	return code, nil
}

// Verify checks the supplied code. Three failures lock the code out for good;
// a correct code after lockout still fails until a new code is issued. A
// successful verification consumes the code.
func (s *Service) Verify(ctx context.Context, orderID types.ID, leg, code string) error {
	hash, attempts, err := s.store.Load(ctx, orderID, leg)
	if err != nil {
		return err
	}
	if attempts >= maxAttempts {
		return ErrTooManyAttempts
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) != nil {
		n, err := s.store.BumpAttempts(ctx, orderID, leg)
		if err != nil {
			return err
		}
		if n >= maxAttempts {
			return ErrTooManyAttempts
		}
		return ErrMismatch
	}
	return s.store.Delete(ctx, orderID, leg)
}

func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
