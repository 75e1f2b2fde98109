package service

import (
	"context"
	"errors"
	"image"
	"testing"

	perr "lumen/internal/platform/errors"
	"lumen/internal/services/describe/domain"
)

type recordingSink struct {
	events []domain.Event
	failAt int // 1-based emit index to fail on, 0 disables
}

func (r *recordingSink) Emit(ev domain.Event) error {
	if r.failAt > 0 && len(r.events)+1 == r.failAt {
		return errors.New("consumer went away")
	}
	r.events = append(r.events, ev)
	return nil
}

func types(evs []domain.Event) []domain.EventType {
	out := make([]domain.EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func TestStreamItem_LifecycleOrder(t *testing.T) {
	src := &fakeSource{images: map[string]image.Image{"/p/a.png": testImage()}}
	svc := newTestService(src, &fakeRuntime{id: "m"}, nil)
	sink := &recordingSink{}

	if err := svc.StreamItem(context.Background(), "/p/a.png", sink); err != nil {
		t.Fatalf("stream: %v", err)
	}

	want := []domain.EventType{
		domain.EventStart, domain.EventProcessing, domain.EventResult, domain.EventComplete,
	}
	got := types(sink.events)
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
	last := sink.events[len(sink.events)-1]
	if *last.Succeeded != 1 || *last.Failed != 0 {
		t.Fatalf("complete tallies wrong: %+v", last)
	}
}

func TestStreamItem_FailureEmitsErrorThenComplete(t *testing.T) {
	svc := newTestService(&fakeSource{}, &fakeRuntime{id: "m"}, nil)
	sink := &recordingSink{}

	if err := svc.StreamItem(context.Background(), "/p/gone.png", sink); err != nil {
		t.Fatalf("stream: %v", err)
	}
	got := types(sink.events)
	want := []domain.EventType{
		domain.EventStart, domain.EventProcessing, domain.EventError, domain.EventComplete,
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
	if sink.events[2].Error == "" {
		t.Fatalf("error event carries no message: %+v", sink.events[2])
	}
}

func TestStreamBatch_ThreeImagesEightEvents(t *testing.T) {
	src := &fakeSource{
		images: map[string]image.Image{"/p/a.png": testImage(), "/p/c.png": testImage()},
		errs:   map[string]error{"/p/b.png": perr.BadImagef("decode /p/b.png")},
	}
	svc := newTestService(src, &fakeRuntime{id: "m"}, nil)
	sink := &recordingSink{}

	paths := []string{"/p/a.png", "/p/b.png", "/p/c.png"}
	if err := svc.StreamBatch(context.Background(), paths, 7, sink); err != nil {
		t.Fatalf("stream: %v", err)
	}

	want := []domain.EventType{
		domain.EventMetadata,
		domain.EventStart, domain.EventResult,
		domain.EventStart, domain.EventResult,
		domain.EventStart, domain.EventResult,
		domain.EventComplete,
	}
	got := types(sink.events)
	if len(got) != 8 {
		t.Fatalf("expected exactly 8 events, got %d: %v", len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, got[i], want[i])
		}
	}

	meta := sink.events[0]
	if *meta.TotalFound != 3 || *meta.Succeeded != 0 || *meta.Failed != 0 {
		t.Fatalf("metadata counts wrong: %+v", meta)
	}
	// the failed middle item rides inside its result event
	if sink.events[4].Status != domain.StatusError || sink.events[4].Error == "" {
		t.Fatalf("per-item failure not embedded: %+v", sink.events[4])
	}
	final := sink.events[7]
	if *final.Succeeded != 2 || *final.Failed != 1 || *final.Attempted != 3 {
		t.Fatalf("complete tallies wrong: %+v", final)
	}
}

func TestStreamBatch_ValidationEmitsErrorEvent(t *testing.T) {
	svc := newTestService(&fakeSource{}, &fakeRuntime{id: "m"}, nil)
	sink := &recordingSink{}

	err := svc.StreamBatch(context.Background(), nil, 7, sink)
	if !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].Type != domain.EventError {
		t.Fatalf("expected single error event, got %v", types(sink.events))
	}
}

func TestStreamBatch_SinkFailureStopsProducer(t *testing.T) {
	src := &fakeSource{images: map[string]image.Image{"/p/a.png": testImage(), "/p/b.png": testImage()}}
	svc := newTestService(src, &fakeRuntime{id: "m"}, nil)
	sink := &recordingSink{failAt: 3} // fail on the first result event

	err := svc.StreamBatch(context.Background(), []string{"/p/a.png", "/p/b.png"}, 7, sink)
	if err == nil {
		t.Fatalf("sink failure should surface")
	}
	// metadata + first start made it out before the sink died
	if len(sink.events) != 2 {
		t.Fatalf("producer kept going after sink failure: %v", types(sink.events))
	}
}

func TestStreamBatch_CapLimitsEvents(t *testing.T) {
	src := &fakeSource{images: map[string]image.Image{"/p/a.png": testImage(), "/p/b.png": testImage()}}
	svc := newTestService(src, &fakeRuntime{id: "m"}, nil)
	sink := &recordingSink{}

	if err := svc.StreamBatch(context.Background(), []string{"/p/a.png", "/p/b.png"}, 1, sink); err != nil {
		t.Fatalf("stream: %v", err)
	}
	// metadata + one start/result pair + complete
	if len(sink.events) != 4 {
		t.Fatalf("expected 4 events with cap 1, got %v", types(sink.events))
	}
	final := sink.events[3]
	if *final.TotalFound != 2 || *final.Attempted != 1 {
		t.Fatalf("cap not reflected in tallies: %+v", final)
	}
}
