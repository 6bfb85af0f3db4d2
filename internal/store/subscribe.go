package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/project"
)

// Subscribe streams the owner's sorted project list: once immediately and
// again after every change. A slow reader only ever sees the latest
// snapshot. The returned func unsubscribes; so does cancelling ctx.
func (s *Store) Subscribe(ctx context.Context, ownerID string) (<-chan []project.Project, func()) {
	ch := make(chan []project.Project, 1)

	s.mu.Lock()
	s.nextID++
	key := s.nextID
	if s.subs[ownerID] == nil {
		s.subs[ownerID] = make(map[int]chan []project.Project)
	}
	s.subs[ownerID][key] = ch
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	remove := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if chans, ok := s.subs[ownerID]; ok {
			if c, ok := chans[key]; ok {
				close(c)
				delete(chans, key)
			}
			if len(chans) == 0 {
				delete(s.subs, ownerID)
			}
		}
	}

	if list, err := s.List(ctx, ownerID); err == nil {
		s.deliver(ownerID, key, list)
	} else {
		s.logger.Warn("Initial snapshot failed", zap.String("owner", ownerID), zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		remove()
		close(done)
	}()
	return ch, func() {
		cancel()
		<-done
	}
}

// publish sends a fresh snapshot to every subscriber of ownerID.
func (s *Store) publish(ctx context.Context, ownerID string) {
	s.mu.Lock()
	n := len(s.subs[ownerID])
	s.mu.Unlock()
	if n == 0 {
		return
	}

	list, err := s.List(context.WithoutCancel(ctx), ownerID)
	if err != nil {
		s.logger.Warn("Snapshot failed", zap.String("owner", ownerID), zap.Error(err))
		return
	}

	s.mu.Lock()
	keys := make([]int, 0, len(s.subs[ownerID]))
	for k := range s.subs[ownerID] {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	for _, k := range keys {
		s.deliver(ownerID, k, list)
	}
}

func (s *Store) deliver(ownerID string, key int, list []project.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.subs[ownerID][key]
	if !ok {
		return
	}
	select {
	case <-ch:
	default:
	}
	ch <- list
}
