package session

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/apex/log"

	"physiqueAi/internal/events"
	"physiqueAi/internal/media"
	"physiqueAi/internal/physique"
	"physiqueAi/internal/vision"
)

// Publisher receives a snapshot after every transition.
type Publisher interface {
	Publish(evt events.Event)
}

// Service runs the model calls of all sessions and applies their outcomes.
type Service struct {
	sessions   *Registry
	analyzer   vision.Analyzer
	visualizer vision.Visualizer
	previews   media.Store
	publisher  Publisher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService wires a service. publisher may be nil.
func NewService(sessions *Registry, analyzer vision.Analyzer, visualizer vision.Visualizer, previews media.Store, publisher Publisher) *Service {
	if previews == nil {
		previews = media.Disabled()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		sessions:   sessions,
		analyzer:   analyzer,
		visualizer: visualizer,
		previews:   previews,
		publisher:  publisher,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// State returns the snapshot of session id, starting the session if needed.
func (s *Service) State(id string) State {
	return s.sessions.Get(id).State()
}

// Peek returns the snapshot of session id without starting or extending it.
// Unknown sessions read as Idle.
func (s *Service) Peek(id string) State {
	machine, ok := s.sessions.Lookup(id)
	if !ok {
		return idle()
	}
	return machine.State()
}

// Upload stores a preview of the photo and starts its analysis in the
// background. It returns ErrBusy while another call of the session runs and
// ErrResultShown until a shown result is reset.
func (s *Service) Upload(ctx context.Context, id string, upload Upload) error {
	machine := s.sessions.Get(id)
	if err := machine.State().uploadRefusal(); err != nil {
		return err
	}

	preview := s.storePreview(ctx, upload)
	ticket, err := machine.BeginAnalysis(ctx, upload, preview)
	if err != nil {
		return err
	}
	s.publish(id, machine)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		result, err := s.analyzer.Analyze(s.ctx, upload.Payload)
		if err != nil {
			log.WithError(err).WithField("session", id).Error("analyze photo")
			err = machine.FailAnalysis(context.WithoutCancel(s.ctx), ticket, physique.UserMessage(err))
		} else {
			err = machine.FinishAnalysis(ticket, result)
		}
		if errors.Is(err, ErrStale) {
			log.Infof("session %s: analysis outcome discarded", id)
			return
		}
		s.publish(id, machine)
	}()
	return nil
}

// RejectUpload records that the selected photo could not be read.
func (s *Service) RejectUpload(id string, cause error) error {
	log.WithError(cause).WithField("session", id).Warn("read photo")
	machine := s.sessions.Get(id)
	if err := machine.RejectUpload(physique.UserMessage(cause)); err != nil {
		return err
	}
	s.publish(id, machine)
	return nil
}

// Visualize starts generating the progress image in the background.
func (s *Service) Visualize(id string) error {
	machine := s.sessions.Get(id)
	ticket, upload, areas, err := machine.BeginGeneration()
	if err != nil {
		return err
	}
	s.publish(id, machine)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		image, err := s.visualizer.GenerateFuture(s.ctx, upload.Payload, areas)
		if err != nil {
			log.WithError(err).WithField("session", id).Error("visualize progress")
			err = machine.FailGeneration(ticket, physique.UserMessage(err))
		} else {
			err = machine.FinishGeneration(ticket, image)
		}
		if errors.Is(err, ErrStale) {
			log.Infof("session %s: visualization outcome discarded", id)
			return
		}
		s.publish(id, machine)
	}()
	return nil
}

// Reset returns session id to the upload view.
func (s *Service) Reset(ctx context.Context, id string) {
	machine := s.sessions.Get(id)
	machine.Reset(ctx)
	s.publish(id, machine)
}

// Dismiss clears the error banner of session id.
func (s *Service) Dismiss(id string) {
	machine := s.sessions.Get(id)
	machine.DismissError()
	s.publish(id, machine)
}

// Wait blocks until every background call has been applied.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close cancels running calls, waits for them and ends all sessions.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
	log.Infof("closing %d sessions", s.sessions.Len())
	s.sessions.Close()
}

func (s *Service) storePreview(ctx context.Context, upload Upload) media.Preview {
	inline := media.Preview{URL: upload.Payload.DataURI()}

	raw, err := upload.Payload.Bytes()
	if err != nil {
		log.WithError(err).Warn("decode preview")
		return inline
	}
	preview, err := s.previews.Put(ctx, media.UploadInput{
		Filename:    upload.Filename,
		ContentType: upload.Payload.MIMEType,
		Body:        bytes.NewReader(raw),
		Size:        int64(len(raw)),
	})
	switch {
	case errors.Is(err, media.ErrStoreDisabled):
		return inline
	case err != nil:
		log.WithError(err).Warn("store preview")
		return inline
	}
	return preview
}

func (s *Service) publish(id string, machine *Machine) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.Event{SessionID: id, Data: machine.State().View()})
}
