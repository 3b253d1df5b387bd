package usecase

import "time"

// StageObserver receives pipeline telemetry. The prometheus implementation
// lives in observability/metrics; tests and minimal wiring use NopObserver.
type StageObserver interface {
	ObserveStage(stage string, duration time.Duration, kept int)
	ObservePipeline(duration time.Duration, status string)
	RerankFallback()
	ModelFailure(modelID string)
	CacheLookup(hit bool)
}

type NopObserver struct{}

func (NopObserver) ObserveStage(string, time.Duration, int) {}
func (NopObserver) ObservePipeline(time.Duration, string)   {}
func (NopObserver) RerankFallback()                         {}
func (NopObserver) ModelFailure(string)                     {}
func (NopObserver) CacheLookup(bool)                        {}
