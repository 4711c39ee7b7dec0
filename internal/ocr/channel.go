// Package ocr implements the OCR analysis channel. Text extraction is a
// blocking CPU-bound call, so it runs on a dedicated bounded WorkerPool and
// never on the goroutines that drive network I/O.
package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "go-food-analyzer/internal/errors"
	"go-food-analyzer/internal/imagecodec"
	"go-food-analyzer/internal/logger"
	"go-food-analyzer/pkg/models"
)

// Engine extracts printed text from an encoded image. Implementations may
// block for as long as recognition takes.
type Engine interface {
	Recognize(img *imagecodec.DecodedImage) (string, error)
}

// Channel is the OCR contract used by the orchestrator.
type Channel interface {
	ExtractText(ctx context.Context, img *imagecodec.DecodedImage) models.ChannelResult[string]
}

// PooledChannel runs an Engine on a WorkerPool.
type PooledChannel struct {
	pool   *WorkerPool
	engine Engine
}

// NewPooledChannel wires an engine to a pool.
func NewPooledChannel(pool *WorkerPool, engine Engine) *PooledChannel {
	return &PooledChannel{pool: pool, engine: engine}
}

// ExtractText waits for a pool slot and for recognition to finish. No
// timeout applies; ctx is only used for log correlation. An empty image is a
// valid input and yields an empty string.
func (c *PooledChannel) ExtractText(ctx context.Context, img *imagecodec.DecodedImage) models.ChannelResult[string] {
	if img == nil || len(img.Bytes) == 0 || img.Image == nil {
		return models.Success("")
	}

	start := time.Now()
	done := make(chan models.ChannelResult[string], 1)
	if !c.pool.Submit(func() { done <- c.recognize(img) }) {
		return failure("ocr worker pool is closed")
	}
	result := <-done

	entry := logger.FromContext(ctx).WithFields(logrus.Fields{
		"channel":     "ocr",
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if result.Ok() {
		entry.WithField("text_length", len(result.Value())).Debug("OCR completed")
	} else {
		entry.WithError(result.Err()).Warn("OCR failed")
	}
	return result
}

// Stats exposes the pool counters.
func (c *PooledChannel) Stats() PoolStats {
	return c.pool.GetStats()
}

func (c *PooledChannel) recognize(img *imagecodec.DecodedImage) (result models.ChannelResult[string]) {
	defer func() {
		if r := recover(); r != nil {
			result = failure(fmt.Sprintf("engine panic: %v", r))
		}
	}()

	text, err := c.engine.Recognize(img)
	if err != nil {
		return failure(err.Error())
	}
	return models.Success(text)
}

func failure(detail string) models.ChannelResult[string] {
	return models.Failure[string](apperrors.NewChannelError(apperrors.KindOCREngineError, apperrors.StageOCRChannel, detail))
}
