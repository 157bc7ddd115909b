package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CopyFn is a backend's bulk insert, usually Repository.CopyFrom.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn per non-empty batch. It returns the total reported by copyFn
// and the first error; on error the remaining input is not consumed.
//
// Progress is logged at debug level on every successful flush.
func LoadBatches(
	ctx context.Context,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
	log *zap.Logger,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}

	var (
		total   int64
		batches int
		batch   = make([][]any, 0, batchSize)
		start   = time.Now()
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		batch = make([][]any, 0, batchSize)
		if err != nil {
			log.Warn("loader: batch failed", zap.Int("batch", batches+1), zap.Int64("total", total), zap.Error(err))
			return err
		}
		batches++
		log.Debug("loader: batch flushed",
			zap.Int("batch", batches),
			zap.Int64("inserted", n),
			zap.Int64("total", total),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
