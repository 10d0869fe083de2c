package logparse

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// ChunkProgress reports the state of a chunked parse after each chunk.
type ChunkProgress struct {
	Chunk     int // 1-based index of the chunk just finished
	Chunks    int
	Lines     int // lines consumed so far
	Variables int // variables emitted so far
}

// ChunkResult carries the variables found in one chunk.
type ChunkResult struct {
	Progress  ChunkProgress
	Variables []Variable
	Err       error
}

// chunkCount returns how many chunks cover lines[start:].
func (s *scan) chunkCount(size int) int {
	n := len(s.lines) - s.start
	if n <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

func (s *scan) chunkBounds(idx, size int) (int, int) {
	lo := s.start + idx*size
	return lo, min(lo+size, len(s.lines))
}

// ParseChunked processes text in fixed line-count chunks, strictly in order,
// yielding the processor between chunks. Cancellation is observed only at
// chunk boundaries. The result is identical to Parse on the same input; a
// payload that straddles a boundary is extracted from the full line slice.
func (p *Parser) ParseChunked(ctx context.Context, text string, progress func(ChunkProgress)) ([]Variable, error) {
	s := p.newScan(text)
	total := s.chunkCount(p.chunkLines)

	for idx := 0; idx < total; idx++ {
		if err := ctx.Err(); err != nil {
			return s.out, fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		lo, hi := s.chunkBounds(idx, p.chunkLines)
		if err := s.scanRange(lo, hi); err != nil {
			return s.out, err
		}
		p.obs.ChunkDone()
		if progress != nil {
			progress(ChunkProgress{Chunk: idx + 1, Chunks: total, Lines: hi - s.start, Variables: len(s.out)})
		}
		p.log.Debug("chunk processed", zap.Int("chunk", idx+1), zap.Int("chunks", total))
		runtime.Gosched()
	}
	return s.out, nil
}

// Chunks streams a chunked parse. The channel is closed after the last chunk,
// after an error, or once ctx is canceled; a consumer that stops receiving
// must cancel ctx to release the producer.
func (p *Parser) Chunks(ctx context.Context, text string) <-chan ChunkResult {
	ch := make(chan ChunkResult)
	go func() {
		defer close(ch)
		s := p.newScan(text)
		total := s.chunkCount(p.chunkLines)

		for idx := 0; idx < total; idx++ {
			if ctx.Err() != nil {
				return
			}
			lo, hi := s.chunkBounds(idx, p.chunkLines)
			before := len(s.out)
			err := s.scanRange(lo, hi)
			p.obs.ChunkDone()

			res := ChunkResult{
				Progress:  ChunkProgress{Chunk: idx + 1, Chunks: total, Lines: hi - s.start, Variables: len(s.out)},
				Variables: s.out[before:len(s.out):len(s.out)],
				Err:       err,
			}
			select {
			case ch <- res:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}
