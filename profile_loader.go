package prolink

import (
	"context"
	"time"
)

// Profile fetch retry budget. The backend creates the profiles row via
// an asynchronous trigger after account creation, so a client that
// queries too quickly can race the trigger; 1 initial attempt plus 3
// retries at 500ms, 1000ms, 1500ms bounds that race at roughly three
// seconds without blocking indefinitely.
const (
	profileFetchAttempts  = 4
	profileFetchDelayStep = 500 * time.Millisecond
)

// ProfileLoader fetches the profile row for a user identity,
// tolerating backend replication lag. It never fails outward: callers
// get the profile or nil, and must treat "no profile" as a valid,
// handled state.
type ProfileLoader struct {
	data        DataAPI
	logger      Logger
	maxAttempts int
	delay       DelayFunc
	sleep       Sleeper
}

type ProfileLoaderOption func(*ProfileLoader)

// WithLoaderLogger overrides the loader's logger.
func WithLoaderLogger(l Logger) ProfileLoaderOption {
	return func(pl *ProfileLoader) {
		if l != nil {
			pl.logger = l
		}
	}
}

// WithLoaderSleeper injects the pause primitive (useful for tests).
func WithLoaderSleeper(s Sleeper) ProfileLoaderOption {
	return func(pl *ProfileLoader) {
		if s != nil {
			pl.sleep = s
		}
	}
}

// WithLoaderBudget overrides the attempt count and delay schedule.
func WithLoaderBudget(maxAttempts int, delay DelayFunc) ProfileLoaderOption {
	return func(pl *ProfileLoader) {
		if maxAttempts > 0 {
			pl.maxAttempts = maxAttempts
		}
		if delay != nil {
			pl.delay = delay
		}
	}
}

// NewProfileLoader returns a loader reading from the given data API.
func NewProfileLoader(data DataAPI, opts ...ProfileLoaderOption) *ProfileLoader {
	pl := &ProfileLoader{
		data:        data,
		logger:      defLogger{},
		maxAttempts: profileFetchAttempts,
		delay:       LinearDelay(profileFetchDelayStep),
		sleep:       defaultSleeper,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(pl)
		}
	}
	return pl
}

// Load fetches the profile for userID. Not-found lookups are retried
// on the loader's budget; any other failure kind returns nil
// immediately. Exhausted retries also return nil.
func (pl *ProfileLoader) Load(ctx context.Context, userID string) *Profile {
	if userID == "" {
		return nil
	}

	var profile Profile
	found := false

	err := Retry(ctx, pl.maxAttempts, pl.delay, IsNotFound, func(ctx context.Context) error {
		profile = Profile{}
		if err := pl.data.SelectOne(ctx, TableProfiles, map[string]any{"id": userID}, &profile); err != nil {
			return err
		}
		found = true
		return nil
	}, pl.sleep)

	if err != nil {
		if IsNotFound(err) {
			pl.logger.Warn("profile fetch for user %s exhausted retries", userID)
		} else {
			pl.logger.Error("profile fetch for user %s failed: %v", userID, err)
		}
		return nil
	}

	if !found {
		return nil
	}
	return &profile
}
