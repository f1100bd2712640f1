package alert

import (
	"log"
	"sync"
)

// Sound names the two clips the escalation plays.
const (
	SoundAlert    = "alert"
	SoundRingtone = "ringtone"
)

// ConsoleSounder stands in for the browser audio clips: it records which
// clip is playing and logs transitions. Each Play restarts the clip from
// the beginning.
type ConsoleSounder struct {
	logger *log.Logger

	mu      sync.Mutex
	playing map[string]bool
}

func NewConsoleSounder(logger *log.Logger) *ConsoleSounder {
	return &ConsoleSounder{
		logger:  logger,
		playing: make(map[string]bool),
	}
}

func (c *ConsoleSounder) PlayAlert() error    { return c.play(SoundAlert) }
func (c *ConsoleSounder) StopAlert()          { c.stop(SoundAlert) }
func (c *ConsoleSounder) PlayRingtone() error { return c.play(SoundRingtone) }
func (c *ConsoleSounder) StopRingtone()       { c.stop(SoundRingtone) }

func (c *ConsoleSounder) play(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing[name] = true
	c.logger.Printf("sound: playing %s", name)
	return nil
}

func (c *ConsoleSounder) stop(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing[name] {
		c.playing[name] = false
		c.logger.Printf("sound: stopped %s", name)
	}
}

// Playing reports whether the named clip is currently playing.
func (c *ConsoleSounder) Playing(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing[name]
}
