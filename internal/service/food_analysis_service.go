package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "go-food-analyzer/internal/errors"
	"go-food-analyzer/internal/fusion"
	"go-food-analyzer/internal/gemini"
	"go-food-analyzer/internal/imagecodec"
	"go-food-analyzer/internal/logger"
	"go-food-analyzer/internal/observer"
	"go-food-analyzer/internal/ocr"
	"go-food-analyzer/internal/prompts"
	"go-food-analyzer/pkg/models"
)

// FoodAnalysisService runs one image through both analysis channels and
// returns the fused document.
type FoodAnalysisService interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.FusedResult, error)
}

// Dependencies groups the collaborators of the orchestrator.
type Dependencies struct {
	Decoder  imagecodec.Decoder
	Prompts  prompts.Catalog
	AI       gemini.Channel
	OCR      ocr.Channel
	Events   observer.Subject
	OnChange TransitionFunc
}

// foodAnalysisService implements FoodAnalysisService
type foodAnalysisService struct {
	decoder  imagecodec.Decoder
	prompts  prompts.Catalog
	ai       gemini.Channel
	ocr      ocr.Channel
	events   observer.Subject
	onChange TransitionFunc
}

// NewFoodAnalysisService creates a new orchestrator
func NewFoodAnalysisService(deps Dependencies) FoodAnalysisService {
	return &foodAnalysisService{
		decoder:  deps.Decoder,
		prompts:  deps.Prompts,
		ai:       deps.AI,
		ocr:      deps.OCR,
		events:   deps.Events,
		onChange: deps.OnChange,
	}
}

// Analyze validates the variant, decodes the image, runs the AI and OCR
// channels concurrently and fuses their results. Every call ends in exactly
// one of Done or Failed.
func (s *foodAnalysisService) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.FusedResult, error) {
	start := time.Now()
	requestID := logger.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = logger.ContextWithRequestID(ctx, requestID)
	}
	log := logger.FromContext(ctx)
	r := newRun(requestID, func(id string, from, to State) {
		log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Debug("State transition")
		if s.onChange != nil {
			s.onChange(id, from, to)
		}
	})
	s.publish(ctx, observer.AnalysisEvent{EventType: observer.AnalysisStarted, RequestID: requestID, Variant: string(req.Variant)})

	variant, err := models.ParseVariant(string(req.Variant))
	if err != nil {
		return nil, s.fail(ctx, r, start, "", err)
	}
	prompt, err := s.prompts.PromptFor(variant)
	if err != nil {
		return nil, s.fail(ctx, r, start, variant, apperrors.NewInternalError("no prompt for variant", err))
	}

	r.to(StateDecoding)

	img, err := s.decoder.Decode(req.ImagePayload)
	if err != nil {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:    observer.ImageDecodeFailed,
			RequestID:    requestID,
			Variant:      variant.String(),
			ErrorMessage: err.Error(),
		})
		return nil, s.fail(ctx, r, start, variant, err)
	}
	width, height := img.Size()
	s.publish(ctx, observer.AnalysisEvent{
		EventType: observer.ImageDecoded,
		RequestID: requestID,
		Variant:   variant.String(),
		Success:   true,
		Metadata: map[string]interface{}{
			"format": img.Format,
			"width":  width,
			"height": height,
			"bytes":  len(img.Bytes),
		},
	})

	aiResult, ocrResult := s.dispatch(ctx, r, img, prompt)

	r.to(StateFusing)
	fused, err := fusion.Fuse(aiResult, ocrResult)
	if err != nil {
		return nil, s.fail(ctx, r, start, variant, err)
	}

	r.to(StateDone)
	elapsed := time.Since(start)
	log.WithFields(logrus.Fields{
		"variant":      variant,
		"state":        r.state.String(),
		"duration_ms":  elapsed.Milliseconds(),
		"ocr_degraded": fused.OCRDegraded,
	}).Info("Analysis finished")
	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		RequestID:      requestID,
		Variant:        variant.String(),
		ProcessingTime: elapsed,
		Success:        true,
		OCRDegraded:    fused.OCRDegraded,
		Document:       fused.Document,
	})
	return fused, nil
}

type channelOutcome struct {
	name   string
	result models.ChannelResult[string]
}

// dispatch starts both channels before waiting on either and returns once
// both have reported. The OCR channel is detached from ctx so that it runs to
// completion regardless of what happens to the request.
func (s *foodAnalysisService) dispatch(ctx context.Context, r *run, img *imagecodec.DecodedImage, prompt string) (ai, text models.ChannelResult[string]) {
	aiDone := make(chan models.ChannelResult[string], 1)
	ocrDone := make(chan models.ChannelResult[string], 1)

	r.to(StateDispatched)
	go func() { aiDone <- s.ai.Analyze(ctx, img, prompt) }()
	go func() { ocrDone <- s.ocr.ExtractText(context.WithoutCancel(ctx), img) }()
	r.to(StateAwaitingBoth)

	for pending := 2; pending > 0; pending-- {
		var outcome channelOutcome
		select {
		case ai = <-aiDone:
			aiDone = nil
			outcome = channelOutcome{name: "ai", result: ai}
		case text = <-ocrDone:
			ocrDone = nil
			outcome = channelOutcome{name: "ocr", result: text}
		}
		s.channelCompleted(ctx, r.requestID, outcome)
	}
	return ai, text
}

func (s *foodAnalysisService) channelCompleted(ctx context.Context, requestID string, outcome channelOutcome) {
	event := observer.AnalysisEvent{
		EventType: observer.ChannelCompleted,
		RequestID: requestID,
		Success:   outcome.result.Ok(),
		Metadata:  map[string]interface{}{"channel": outcome.name},
	}
	if err := outcome.result.Err(); err != nil {
		event.ErrorKind = string(err.Kind)
		event.Stage = string(err.Stage)
		event.ErrorMessage = err.Error()
	}
	s.publish(ctx, event)
}

// fail moves the run to Failed and reports the error once.
func (s *foodAnalysisService) fail(ctx context.Context, r *run, start time.Time, variant models.Variant, err error) error {
	r.to(StateFailed)
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.NewInternalError("analysis failed", err)
	}
	elapsed := time.Since(start)

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"variant":     variant,
		"state":       r.state.String(),
		"kind":        appErr.Kind,
		"stage":       appErr.Stage,
		"duration_ms": elapsed.Milliseconds(),
	}).WithError(appErr).Warn("Analysis failed")

	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisFailed,
		RequestID:      r.requestID,
		Variant:        variant.String(),
		ProcessingTime: elapsed,
		ErrorKind:      string(appErr.Kind),
		Stage:          string(appErr.Stage),
		ErrorMessage:   appErr.Error(),
	})
	return appErr
}

func (s *foodAnalysisService) publish(ctx context.Context, event observer.AnalysisEvent) {
	if s.events == nil {
		return
	}
	s.events.NotifyObservers(ctx, event)
}
