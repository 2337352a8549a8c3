package engine

import (
	"fmt"
	"strings"
	"time"

	"poolconnect/internal/models"
)

// intent is a relay write requested during a tick. owner is a timer id or OperatorOwner.
type intent struct {
	owner int64
	relay int
	on    bool
}

// holders lists the claimants keeping a relay on, oldest first.
type holders []int64

func (h holders) has(id int64) bool {
	for _, v := range h {
		if v == id {
			return true
		}
	}
	return false
}

func (h holders) add(id int64) holders {
	if h.has(id) {
		return h
	}
	return append(h, id)
}

func (h holders) without(id int64) holders {
	var out holders
	for _, v := range h {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// current is the most recent claimant, 0 when nobody holds the relay.
func (h holders) current() int64 {
	if len(h) == 0 {
		return 0
	}
	return h[len(h)-1]
}

// arbitrate collapses the tick's intents to one write per relay. Intents are
// appended in ascending timer id with operator requests last, and the last
// one for a relay wins. Every ON intent since the relay's last OFF intent
// joins its holders; a winning OFF clears them. Writes go out in relay index
// order so the pump is settled before the electrolyser interlock is checked.
// Failed writes are attributed to the winning timer.
func (s *Scheduler) arbitrate(t *tick) map[int64]error {
	var final [models.NumRelays]*intent
	var claims [models.NumRelays][]int64
	for i := range t.intents {
		in := &t.intents[i]
		if prev := final[in.relay]; prev != nil && prev.owner != in.owner && prev.on != in.on {
			s.metrics.conflict()
			s.log.Debugw("relay_conflict_resolved", "relay", models.RelayName(in.relay),
				"overridden", prev.owner, "winner", in.owner, "on", in.on)
		}
		final[in.relay] = in
		if in.on {
			claims[in.relay] = append(claims[in.relay], in.owner)
		} else {
			claims[in.relay] = nil
		}
	}

	failures := make(map[int64]error)
	for r := 0; r < models.NumRelays; r++ {
		in := final[r]
		if in == nil {
			continue
		}
		var err error
		if s.dev.Relays()[r] != in.on {
			err = s.write(r, in.on)
		}
		if err != nil {
			err = fmt.Errorf("relay %s: %w", models.RelayName(r), err)
			if in.owner > 0 {
				failures[in.owner] = err
			} else {
				s.log.Errorw("manual_relay_failed", "err", err, "relay", models.RelayName(r), "on", in.on)
				s.emit(t.now, 0, models.EventManualRelay, err.Error(), map[string]any{"relay": r, "on": in.on})
			}
			continue
		}
		if in.on {
			for _, id := range claims[r] {
				s.owners[r] = s.owners[r].add(id)
			}
		} else {
			s.owners[r] = nil
		}
		if in.owner == OperatorOwner {
			s.emit(t.now, 0, models.EventManualRelay, fmt.Sprintf("%s %s", models.RelayName(r), onOff(in.on)),
				map[string]any{"relay": r, "on": in.on})
		}
	}
	return failures
}

func (s *Scheduler) write(r int, on bool) error {
	err := s.dev.SetRelay(r, on)
	s.metrics.relayWrite(models.RelayName(r), err)
	return err
}

// releaseOwned drops r.id from the holders of every relay it does not keep.
// A relay is switched off only once nobody else holds it. A failed switch-off
// is recorded as the timer's last error.
func (s *Scheduler) releaseOwned(t *tick, r release) {
	for i := 0; i < models.NumRelays; i++ {
		if r.keep[i] || !s.owners[i].has(r.id) {
			continue
		}
		s.owners[i] = s.owners[i].without(r.id)
		if len(s.owners[i]) > 0 || !s.dev.Relays()[i] {
			continue
		}
		if err := s.write(i, false); err != nil {
			msg := fmt.Sprintf("release relay %s: %v", models.RelayName(i), err)
			s.log.Errorw("relay_release_failed", "err", err, "relay", models.RelayName(i), "timer_id", r.id)
			s.emit(t.now, r.id, models.EventError, msg, nil)
			if e, ok := s.entries[r.id]; ok {
				e.rt.LastError = msg
			}
		}
	}
}

// syncOwners drops ownership of relays the device reports off (for example the
// electrolyser after a pump cascade) and tracks how long the pump has run.
func (s *Scheduler) syncOwners(now time.Time) {
	relays := s.dev.Relays()
	for i, on := range relays {
		if !on {
			s.owners[i] = nil
		}
	}
	switch {
	case !relays[models.RelayPump]:
		s.pumpOnSince = time.Time{}
	case s.pumpOnSince.IsZero():
		s.pumpOnSince = now
	}
}

func (s *Scheduler) ownsAny(id int64) bool {
	for _, h := range s.owners {
		if h.has(id) {
			return true
		}
	}
	return false
}

// RelayStates reports each output with its current owner.
func (s *Scheduler) RelayStates() []models.RelayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	relays := s.dev.Relays()
	out := make([]models.RelayState, models.NumRelays)
	for i := range out {
		out[i] = models.RelayState{
			Index: i,
			Name:  models.RelayName(i),
			On:    relays[i],
			Owner: s.owners[i].current(),
		}
		if len(s.owners[i]) > 0 {
			out[i].Holders = append([]int64(nil), s.owners[i]...)
		}
	}
	return out
}

func keptNames(keep [models.NumRelays]bool) string {
	var names []string
	for i, k := range keep {
		if k {
			names = append(names, models.RelayName(i))
		}
	}
	return strings.Join(names, ",")
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
