package journal

import (
	"context"

	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/logger"
)

type service struct {
	repo Repository
	cfg  Config
}

type noopJournal struct{}

// New returns a Journal backed by SQLite, or a no-op journal when disabled.
func New(cfg Config, log logger.Logger) (Journal, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Event journal disabled, using no-op journal")
		return Nop(), nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to create journal repository")
		return nil, err
	}

	logger.Debug().
		Str("db_path", cfg.DBPath).
		Msg("Event journal initialized")

	return newService(repo, cfg), nil
}

func newService(repo Repository, cfg Config) Journal {
	return &service{repo: repo, cfg: cfg}
}

// Nop returns a Journal that discards every event.
func Nop() Journal {
	return noopJournal{}
}

func (s *service) Record(ctx context.Context, event Event) error {
	errFactory := errors.New()

	if event.Kind == "" || event.Time.IsZero() {
		return errFactory.WithData(ErrInvalidEvent, event)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Record(event); err != nil {
			return errFactory.Wrap(ErrRecordFailed, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}

func (noopJournal) Record(context.Context, Event) error {
	return nil
}

func (noopJournal) Close() error {
	return nil
}
