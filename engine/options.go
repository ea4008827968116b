package engine

import (
	"time"

	"github.com/spf13/afero"

	"github.com/jonwraymond/toolbatch/batch"
	"github.com/jonwraymond/toolbatch/observe"
)

// Option customizes an Engine.
type Option func(*options)

type options struct {
	logger     observe.Logger
	fs         afero.Fs
	now        func() time.Time
	observer   observe.Observer
	classifier *batch.Classifier
}

// WithLogger overrides the observer's logger.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFs sets the filesystem used for mtime checks and the snapshot file.
// Default: afero.NewOsFs()
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithClock sets the time source for expiry and prefetch history.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithObserver supplies telemetry. The engine does not shut down an observer
// it did not create.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithClassifier replaces the default tool classification.
func WithClassifier(c *batch.Classifier) Option {
	return func(o *options) { o.classifier = c }
}
