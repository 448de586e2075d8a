package source

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/Shopify/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"StreamCursor/config"
	"StreamCursor/cursor"
	"StreamCursor/logger"
	"StreamCursor/service/broker"
	"StreamCursor/service/checkpoint"
	"StreamCursor/tools/errs"
	"StreamCursor/tools/exec"
	"StreamCursor/tools/safe"
)

// BatchReader is the data-plane boundary consumed by the source.
type BatchReader interface {
	ReadBetween(ctx context.Context, start, end cursor.OffsetLedger) ([]broker.Record, cursor.OffsetLedger, error)
}

// Options are the injectable collaborators of a source. Zero values take
// defaults in New.
type Options struct {
	// UID is the stable source identity; generated when empty.
	UID string
	// Runner executes planning cycles; defaults to inline execution.
	Runner exec.Runner
	// Checkpoints, when set, persists committed ledgers and seeds the
	// planner on construction.
	Checkpoints *checkpoint.Store
	// Initial seeds the planner directly; ignored when a checkpoint
	// exists for this uid.
	Initial *cursor.OffsetLedger
}

// Source is the host-engine surface of one stream cursor: it plans batch
// boundaries, serves the records between two ledgers, and records commits.
// Plan/Commit are driven strictly sequentially by the host; Stop may come
// from anywhere and is idempotent.
type Source struct {
	uid        string
	cfg        config.SourceConfig
	partitions []cursor.PartitionID

	planner *cursor.Planner
	reader  BatchReader
	store   *checkpoint.Store
	runner  exec.Runner

	closers  []io.Closer
	stopped  atomic.Bool
	stopOnce sync.Once
}

// New assembles a source from explicit collaborators.
func New(ctx context.Context, cfg config.SourceConfig, fetcher cursor.CeilingFetcher, reader BatchReader, opts Options) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, errs.ErrInvalidConfiguration.WrapMsg("nil batch reader")
	}

	uid := opts.UID
	if uid == "" {
		uid = cfg.Namespace + "/" + cfg.Stream + "/" + uuid.NewString()
	}
	runner := opts.Runner
	if runner == nil {
		runner = exec.SyncRunner{}
	}

	initial := opts.Initial
	if opts.Checkpoints != nil {
		saved, err := opts.Checkpoints.Load(ctx, uid)
		if err != nil {
			return nil, err
		}
		if saved != nil {
			initial = saved
			logger.Info("resuming from checkpoint",
				zap.String("uid", uid),
				zap.Int64("batch", saved.BatchID))
		}
	}

	planner, err := cursor.NewPlanner(fetcher, cfg.Partitions(), cursor.PlannerOptions{
		MaxRatePerPartition: cfg.MaxRatePerPartition,
		Initial:             initial,
	})
	if err != nil {
		return nil, err
	}

	return &Source{
		uid:        uid,
		cfg:        cfg,
		partitions: cfg.Partitions(),
		planner:    planner,
		reader:     reader,
		store:      opts.Checkpoints,
		runner:     runner,
	}, nil
}

// Open dials the broker and assembles a fully wired source.
func Open(ctx context.Context, cfg config.SourceConfig, opts Options) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := broker.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errs.ErrTransport.WrapMsg("consumer init failed", "cause", err)
	}
	fetcher, err := broker.NewFetcher(client, cfg.Stream, cfg.RetryMax, cfg.RetryBackoff)
	if err != nil {
		_ = consumer.Close()
		_ = client.Close()
		return nil, err
	}
	reader, err := broker.NewReader(consumer, cfg.Stream, cfg.FailOnDataLoss, cfg.ReceiveTimeout)
	if err != nil {
		_ = consumer.Close()
		_ = client.Close()
		return nil, err
	}

	s, err := New(ctx, cfg, fetcher, reader, opts)
	if err != nil {
		_ = consumer.Close()
		_ = client.Close()
		return nil, err
	}
	s.closers = append(s.closers, consumer, client)
	return s, nil
}

// UID is the stable identity of this source instance.
func (s *Source) UID() string { return s.uid }

// ConnectedPartitions returns the fixed partition set in ascending order.
func (s *Source) ConnectedPartitions() []cursor.PartitionID {
	out := make([]cursor.PartitionID, len(s.partitions))
	copy(out, s.partitions)
	return out
}

// GetNextOffset plans the next batch boundary. It returns nil once the
// source has been stopped.
func (s *Source) GetNextOffset(ctx context.Context) (*cursor.OffsetLedger, error) {
	if s.stopped.Load() {
		return nil, nil
	}
	var ledger cursor.OffsetLedger
	err := exec.Do(s.runner, func() error {
		var planErr error
		ledger, planErr = s.planner.PlanNextBatch(ctx)
		return planErr
	})
	if err != nil {
		logger.Error("batch planning failed", zap.String("uid", s.uid), zap.Error(err))
		return nil, err
	}
	return &ledger, nil
}

// GetBatch reads the records between two ledgers. A nil start means
// "from the beginning of tracked progress". The second return value is
// the end ledger with clamped sequence numbers resolved; the host should
// commit that resolved ledger.
func (s *Source) GetBatch(ctx context.Context, start *cursor.OffsetLedger, end cursor.OffsetLedger) ([]broker.Record, cursor.OffsetLedger, error) {
	if s.stopped.Load() {
		return nil, cursor.OffsetLedger{}, errs.ErrInvalidConfiguration.WrapMsg("source stopped")
	}
	var from cursor.OffsetLedger
	if start != nil {
		from = *start
	} else {
		var err error
		from, err = cursor.InitialLedger(s.partitions)
		if err != nil {
			return nil, cursor.OffsetLedger{}, err
		}
	}
	return s.reader.ReadBetween(ctx, from, end)
}

// Commit records a planned ledger as durably consumed and persists it
// when a checkpoint store is configured.
func (s *Source) Commit(ctx context.Context, ledger cursor.OffsetLedger) error {
	if s.stopped.Load() {
		return errs.ErrInvalidConfiguration.WrapMsg("source stopped")
	}
	if err := s.planner.Commit(ledger); err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.Save(ctx, s.uid, ledger); err != nil {
			return err
		}
	}
	return nil
}

// CommittedOffset returns a copy of the last committed ledger.
func (s *Source) CommittedOffset() cursor.OffsetLedger {
	return s.planner.Current()
}

// Stop permanently stops the source. Broker teardown can block on the
// network, so it runs off the caller's goroutine; the host observes the
// stop immediately.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		closers := s.closers
		runner := s.runner
		uid := s.uid
		safe.Go(func() {
			for _, c := range closers {
				if err := c.Close(); err != nil {
					logger.Warn("close failed during stop", zap.String("uid", uid), zap.Error(err))
				}
			}
			runner.Close()
			logger.Info("source stopped", zap.String("uid", uid))
		})
	})
}
