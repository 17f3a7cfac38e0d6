package capture

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Constraints is what a capture request asks the environment for.
type Constraints struct {
	Audio bool
	Video bool
}

// Provider is the capture permission boundary: it prompts the user to pick a
// source and grant sharing, then returns the resulting stream.
type Provider interface {
	Request(ctx context.Context, c Constraints) (Stream, error)
}

// EnvironmentCheck returns an error when capture cannot work at all.
type EnvironmentCheck func() error

// Acquirer requests user-consented streams and validates they carry audio.
type Acquirer struct {
	provider Provider
	check    EnvironmentCheck
	video    bool
	log      *zap.Logger
}

// AcquirerOption configures an Acquirer.
type AcquirerOption func(*Acquirer)

// WithEnvironmentCheck runs check before every request.
func WithEnvironmentCheck(check EnvironmentCheck) AcquirerOption {
	return func(a *Acquirer) { a.check = check }
}

// WithVideo also requests a video track. Some sources only share audio when a
// video track is part of the request.
func WithVideo(video bool) AcquirerOption {
	return func(a *Acquirer) { a.video = video }
}

// WithLogger sets the operational logger.
func WithLogger(l *zap.Logger) AcquirerOption {
	return func(a *Acquirer) { a.log = l }
}

// NewAcquirer creates an Acquirer over provider.
func NewAcquirer(provider Provider, opts ...AcquirerOption) *Acquirer {
	a := &Acquirer{provider: provider, log: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire performs one fresh negotiation with the provider. A stream that
// lacks audio is stopped before ErrNoAudioTrack is returned. Cancelling ctx
// while the user has not yet answered yields ErrPermissionDenied.
func (a *Acquirer) Acquire(ctx context.Context) (Stream, error) {
	if a.provider == nil {
		return nil, ErrEnvironmentUnsupported
	}
	if a.check != nil {
		if err := a.check(); err != nil {
			a.log.Warn("capture environment check failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrEnvironmentUnsupported, err)
		}
	}

	stream, err := a.provider.Request(ctx, Constraints{Audio: true, Video: a.video})
	if err != nil {
		return nil, classify(err)
	}
	if stream == nil {
		return nil, ErrEnvironmentUnsupported
	}

	if !HasAudio(stream) {
		a.log.Info("granted stream has no audio, releasing",
			zap.String("stream_id", stream.ID()),
			zap.String("source", stream.Source().Name))
		stream.Stop()
		return nil, ErrNoAudioTrack
	}

	a.log.Debug("capture stream acquired",
		zap.String("stream_id", stream.ID()),
		zap.String("source", stream.Source().Name),
		zap.Int("tracks", len(stream.Tracks())))
	return stream, nil
}

// classify maps a provider failure onto the capture error taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrNoAudioTrack),
		errors.Is(err, ErrEnvironmentUnsupported):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%w: %v", ErrEnvironmentUnsupported, err)
	}
}
