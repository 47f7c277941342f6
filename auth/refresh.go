package auth

import (
	"context"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/metrics"
	"github.com/jrsteele09/go-auth-client/telemetry"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const refreshFlightKey = "refresh"

type flightResult struct {
	skipped bool
}

// Refresh exchanges the stored refresh token for a new pair. Concurrent
// callers share a single network call. Any failure to obtain a usable pair
// (rejection, transport error, timeout, undecodable token) ends the session:
// the store is cleared, Anonymous is published and ErrRefreshRejected is
// returned. Without a stored refresh token it fails straight away with no
// network call.
//
// If a login or logout lands while the call is out, its session is kept:
// the refresh result is dropped and ErrSessionReplaced is returned.
//
// A store failure while saving the new pair is returned as is and leaves the
// session state untouched.
func (c *Coordinator) Refresh(ctx context.Context) error {
	for attempt := 0; attempt < 2; attempt++ {
		res, err := c.joinRefresh(ctx, "", false)
		if err != nil || !res.skipped {
			return err
		}
		// Joined a stale check that made no call. Run our own exchange.
	}
	return nil
}

// RefreshIfStale refreshes on behalf of a request that was rejected while
// carrying staleAccessToken. If the stored access token has already moved on
// (another caller refreshed in the meantime) no network call is made.
func (c *Coordinator) RefreshIfStale(ctx context.Context, staleAccessToken string) error {
	for attempt := 0; attempt < 2; attempt++ {
		res, err := c.joinRefresh(ctx, staleAccessToken, true)
		if err != nil || !res.skipped {
			return err
		}
		// The flight we joined was checking a different token. Only go again
		// if ours is still the stored one.
		current, err := c.CurrentAccessToken(ctx)
		if err != nil {
			return errors.Wrap(err, "[Coordinator.RefreshIfStale]")
		}
		if current != staleAccessToken {
			return nil
		}
	}
	return nil
}

// AwaitRefresh blocks while a refresh is in flight.
func (c *Coordinator) AwaitRefresh(ctx context.Context) error {
	c.lock.Lock()
	done := c.inflight
	c.lock.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "[Coordinator.AwaitRefresh]")
	}
}

// RefreshInFlight reports whether a refresh is currently underway.
func (c *Coordinator) RefreshInFlight() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.inflight != nil
}

func (c *Coordinator) joinRefresh(ctx context.Context, stale string, onlyIfStale bool) (flightResult, error) {
	// The flight outlives any single caller; each caller stops waiting when
	// its own context ends.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(refreshFlightKey, func() (any, error) {
		return c.runRefresh(flightCtx, stale, onlyIfStale)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return flightResult{}, res.Err
		}
		return res.Val.(flightResult), nil
	case <-ctx.Done():
		return flightResult{}, errors.Wrap(ctx.Err(), "[Coordinator.Refresh] waiting for refresh")
	}
}

func (c *Coordinator) runRefresh(ctx context.Context, stale string, onlyIfStale bool) (res flightResult, err error) {
	done := c.beginFlight()
	defer done()

	logger := c.logger.With().Str("flight", uuid.NewString()).Logger()
	ctx, span := telemetry.StartSessionSpan(ctx, c.tracer, "refresh")
	start := c.nowTime()
	outcome := metrics.OutcomeSuccess
	defer func() {
		c.metrics.RecordRefresh(outcome, c.nowTime().Sub(start))
		telemetry.EndSpan(span, outcome, err)
	}()

	epoch := c.currentEpoch()
	pair, err := c.store.GetPair(ctx)
	if err != nil {
		outcome = metrics.OutcomeStorageError
		return flightResult{}, errors.Wrap(err, "[Coordinator.Refresh] read tokens")
	}
	if pair.RefreshToken == "" {
		outcome = metrics.OutcomeRejected
		return flightResult{}, apperrors.Classify("Coordinator.Refresh", ErrRefreshRejected, errors.New("no refresh token stored"))
	}
	if onlyIfStale && pair.AccessToken != stale {
		outcome = metrics.OutcomeSkipped
		logger.Debug().Msg("access token already replaced, refresh skipped")
		return flightResult{skipped: true}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	tr, err := c.api.Refresh(callCtx, pair.RefreshToken)
	if err != nil {
		outcome = metrics.OutcomeRejected
		return flightResult{}, c.failRefresh(ctx, logger, epoch, &outcome, err)
	}

	newPair, identity, err := decodePair(tr)
	if err != nil {
		outcome = metrics.OutcomeInvalidToken
		return flightResult{}, c.failRefresh(ctx, logger, epoch, &outcome, apperrors.Wrapf(err, "%w", ErrInvalidToken))
	}

	if err := c.apply(ctx, newPair, identity, &epoch); err != nil {
		if errors.Is(err, ErrSessionReplaced) {
			outcome = metrics.OutcomeReplaced
			logger.Info().Msg("session changed while refreshing, result discarded")
			return flightResult{}, errors.Wrap(err, "[Coordinator.Refresh]")
		}
		outcome = metrics.OutcomeStorageError
		logger.Error().Err(err).Msg("storing refreshed tokens")
		return flightResult{}, errors.Wrap(err, "[Coordinator.Refresh] store tokens")
	}

	logger.Info().Str("subject", identity.Subject).Msg("tokens refreshed")
	return flightResult{}, nil
}

// failRefresh ends the session after a refresh that produced no usable pair,
// unless the session was replaced since the refresh read it at epoch.
func (c *Coordinator) failRefresh(ctx context.Context, logger zerolog.Logger, epoch uint64, outcome *string, cause error) error {
	replaced, err := c.teardownAt(ctx, epoch)
	if replaced {
		*outcome = metrics.OutcomeReplaced
		logger.Info().Err(cause).Msg("refresh failed after the session changed, keeping the new session")
		return apperrors.Classify("Coordinator.Refresh", ErrSessionReplaced, cause)
	}
	logger.Warn().Err(cause).Msg("refresh failed, ending session")
	if err != nil {
		logger.Error().Err(err).Msg("clearing tokens after failed refresh")
	}
	return apperrors.Classify("Coordinator.Refresh", ErrRefreshRejected, cause)
}

func (c *Coordinator) beginFlight() func() {
	done := make(chan struct{})
	c.lock.Lock()
	c.inflight = done
	c.lock.Unlock()

	return func() {
		c.lock.Lock()
		c.inflight = nil
		c.lock.Unlock()
		close(done)
	}
}
