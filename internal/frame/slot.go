package frame

import (
	"image"
	"sync"
	"time"
)

// Slot is the shared latest-frame buffer between the active producer and the
// display and preview consumers. Publishing overwrites whatever is held; readers
// always receive their own copy, so no caller ever aliases the stored frame.
type Slot struct {
	mu    sync.Mutex
	frame *image.RGBA
	seq   uint64
	read  bool

	published uint64
	dropped   uint64
	updatedAt time.Time
}

// Stats describes slot activity.
type Stats struct {
	Seq       uint64    `json:"seq"`
	Published uint64    `json:"published"`
	Dropped   uint64    `json:"dropped"`
	HasFrame  bool      `json:"has_frame"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewSlot() *Slot {
	return &Slot{}
}

// Publish stores a deep copy of img, replacing the previous content.
// A nil or empty image is ignored.
func (s *Slot) Publish(img image.Image) {
	if img == nil || img.Bounds().Empty() {
		return
	}
	cp := Clone(img)

	s.mu.Lock()
	if s.frame != nil && !s.read {
		s.dropped++
	}
	s.frame = cp
	s.seq++
	s.read = false
	s.published++
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// Latest returns a copy of the held frame, or false when the slot is empty.
func (s *Slot) Latest() (*image.RGBA, bool) {
	img, _, ok := s.LatestSeq()
	return img, ok
}

// LatestSeq is Latest plus the sequence number of the returned frame.
func (s *Slot) LatestSeq() (*image.RGBA, uint64, bool) {
	s.mu.Lock()
	held := s.frame
	seq := s.seq
	if held != nil {
		s.read = true
	}
	s.mu.Unlock()

	if held == nil {
		return nil, seq, false
	}
	// Stored frames are never mutated after Publish, so the copy can happen unlocked.
	return Clone(held), seq, true
}

// Seq returns the sequence number of the most recent publish.
func (s *Slot) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Clear empties the slot.
func (s *Slot) Clear() {
	s.mu.Lock()
	s.frame = nil
	s.read = false
	s.seq++
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

func (s *Slot) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Seq:       s.seq,
		Published: s.published,
		Dropped:   s.dropped,
		HasFrame:  s.frame != nil,
		UpdatedAt: s.updatedAt,
	}
}
