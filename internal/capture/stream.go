// Package capture acquires user-consented capture streams and validates that
// they carry audio. Stream lifetime belongs to the caller: the acquirer hands
// out a stream and never tracks it afterwards.
package capture

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// TrackKind is the media type of a track.
type TrackKind string

const (
	KindAudio TrackKind = "audio"
	KindVideo TrackKind = "video"
)

// Track is one live media track of a stream.
type Track struct {
	ID    string    `json:"id"`
	Kind  TrackKind `json:"kind"`
	Label string    `json:"label"`
}

// Source is a capture source the user can pick, e.g. a PulseAudio monitor.
type Source struct {
	Name   string `mapstructure:"name" json:"name"`
	Format string `mapstructure:"format" json:"format"` // ffmpeg input format: pulse, avfoundation, dshow
	Device string `mapstructure:"device" json:"device"`
	Audio  bool   `mapstructure:"audio" json:"audio"` // source shares audio
	Video  bool   `mapstructure:"video" json:"video"`
}

// Stream is a live handle to zero or more tracks. Stop releases every track;
// Context is cancelled once the stream is stopped.
type Stream interface {
	ID() string
	Source() Source
	Tracks() []Track
	Context() context.Context
	Stop()
}

// HasAudio reports whether s carries at least one audio track.
func HasAudio(s Stream) bool {
	for _, t := range s.Tracks() {
		if t.Kind == KindAudio {
			return true
		}
	}
	return false
}

// LiveStream is the Stream handed out by SourceProvider.
type LiveStream struct {
	id     string
	source Source
	tracks []Track
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewLiveStream opens a stream over source with the requested tracks. A track
// kind is present only when both requested and offered by the source.
func NewLiveStream(source Source, c Constraints) *LiveStream {
	ctx, cancel := context.WithCancel(context.Background())
	s := &LiveStream{
		id:     uuid.NewString(),
		source: source,
		ctx:    ctx,
		cancel: cancel,
	}
	if c.Audio && source.Audio {
		s.tracks = append(s.tracks, Track{ID: uuid.NewString(), Kind: KindAudio, Label: source.Name})
	}
	if c.Video && source.Video {
		s.tracks = append(s.tracks, Track{ID: uuid.NewString(), Kind: KindVideo, Label: source.Name})
	}
	return s
}

func (s *LiveStream) ID() string { return s.id }
func (s *LiveStream) Source() Source { return s.source }
func (s *LiveStream) Context() context.Context { return s.ctx }
func (s *LiveStream) Tracks() []Track { return append([]Track(nil), s.tracks...) }
func (s *LiveStream) Stop() { s.once.Do(s.cancel) }
func (s *LiveStream) Stopped() bool { return s.ctx.Err() != nil }
