package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go-retail-pos/pkg/logger"
	"go-retail-pos/pkg/metrics"

	"go.uber.org/zap"
)

var (
	ErrIdempotencyInProgress = errors.New("a checkout with this idempotency key is already in progress")
	ErrIdempotencyKeyReused  = errors.New("idempotency key was already used for a different basket")
)

// reservationMargin is added to the lock timeout to bound how long a crashed
// request can hold its key.
const reservationMargin = 30 * time.Second

type IdempotencyStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// idempotentCheckout replays the stored receipt for a repeated Idempotency-Key.
// Stock correctness never depends on it; when the store is unreachable the
// request simply runs without replay protection.
type idempotentCheckout struct {
	next        CheckoutService
	store       IdempotencyStore
	ttl         time.Duration
	reservation time.Duration
	metrics     *metrics.ServerMetrics
	log         logger.ZapLogger
}

// storedCheckout is what a key resolves to once its checkout has committed.
type storedCheckout struct {
	Fingerprint string   `json:"fingerprint"`
	Receipt     *Receipt `json:"receipt"`
}

// NewIdempotentCheckout wraps next with Idempotency-Key replay. ttl is how long
// receipts are kept; lockTimeout is the store's row lock wait and sizes the
// reservation held while a checkout runs.
func NewIdempotentCheckout(next CheckoutService, store IdempotencyStore, ttl, lockTimeout time.Duration, m *metrics.ServerMetrics, log logger.ZapLogger) CheckoutService {
	return &idempotentCheckout{
		next:        next,
		store:       store,
		ttl:         ttl,
		reservation: lockTimeout + reservationMargin,
		metrics:     m,
		log:         log,
	}
}

func (s *idempotentCheckout) Checkout(ctx context.Context, actor Actor, req *CheckoutRequest) (*Receipt, error) {
	if req == nil || req.IdempotencyKey == "" {
		return s.next.Checkout(ctx, actor, req)
	}
	key := actor.ID.String() + ":" + req.IdempotencyKey
	fingerprint := basketFingerprint(req)

	if receipt, ok, err := s.replay(ctx, key, fingerprint); ok || err != nil {
		return receipt, err
	}

	reserved, err := s.store.Reserve(ctx, key, s.reservation)
	if err != nil {
		s.log.Warn("idempotency store unavailable", zap.Error(err))
		return s.next.Checkout(ctx, actor, req)
	}
	if !reserved {
		// The holder may have finished between our load and reserve.
		if receipt, ok, err := s.replay(ctx, key, fingerprint); ok || err != nil {
			return receipt, err
		}
		s.metrics.ObserveCheckout("duplicate", 0)
		return nil, ErrIdempotencyInProgress
	}

	receipt, err := s.next.Checkout(ctx, actor, req)
	if err != nil {
		if relErr := s.store.Release(context.WithoutCancel(ctx), key); relErr != nil {
			s.log.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
		}
		return nil, err
	}

	data, err := json.Marshal(storedCheckout{Fingerprint: fingerprint, Receipt: receipt})
	if err == nil {
		err = s.store.Save(context.WithoutCancel(ctx), key, data, s.ttl)
	}
	if err != nil {
		s.log.Warn("failed to store checkout receipt", zap.String("key", key), zap.Error(err))
	}
	return receipt, nil
}

// replay returns the stored receipt for key. A stored checkout for a different
// basket is reported as ErrIdempotencyKeyReused rather than replayed.
func (s *idempotentCheckout) replay(ctx context.Context, key, fingerprint string) (*Receipt, bool, error) {
	data, ok, err := s.store.Load(ctx, key)
	if err != nil {
		s.log.Warn("idempotency lookup failed", zap.Error(err))
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}
	var stored storedCheckout
	if err := json.Unmarshal(data, &stored); err != nil || stored.Receipt == nil {
		s.log.Warn("discarding unreadable stored receipt", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}
	if stored.Fingerprint != fingerprint {
		s.metrics.ObserveCheckout("key_reused", 0)
		return nil, false, ErrIdempotencyKeyReused
	}
	s.metrics.ObserveCheckout("replayed", 0)
	return stored.Receipt, true, nil
}

// basketFingerprint identifies what a request sells: its staff member and its
// lines, independent of line order.
func basketFingerprint(req *CheckoutRequest) string {
	lines := make([]string, len(req.Items))
	for i, item := range req.Items {
		lines[i] = fmt.Sprintf("%s:%d", item.ProductID, item.Quantity)
	}
	sort.Strings(lines)

	h := sha256.New()
	fmt.Fprintf(h, "%s\n", req.StaffID)
	for _, line := range lines {
		fmt.Fprintf(h, "%s\n", line)
	}
	return hex.EncodeToString(h.Sum(nil))
}
