package config

import (
	"context"
	"os"
	"time"

	n "github.com/rjeczalik/notify"
	log "github.com/sirupsen/logrus"
)

func (c *Config) watch(ctx context.Context, filename string) {
	log.Infof("Setting up watch for config file %s", filename)
	events := n.Remove | n.Write | n.Rename
	channel := make(chan n.EventInfo, 1)
	if err := n.Watch(filename, channel, events); err != nil {
		log.Errorf("Unable to watch config file %s - %s", filename, err.Error())
		return
	}
	defer func() { n.Stop(channel) }()

	for {
		select {
		case <-ctx.Done():
			return

		case ei := <-channel:
			switch ei.Event() {
			// VIM is a special case and renames / removes the old buffer
			// and recreates a new one in place. This means we need to
			// set up a new watch on the file to ensure we track further
			// updates to it.
			case n.Rename, n.Remove:
				var i int = 0
				for {
					if _, err := os.Stat(filename); err == nil {
						break
					}
					if i == MaxRetries {
						// keep running with the last known config values
						log.Warnf("Config file %s was removed", filename)
						return
					}
					i++
					<-time.After(10 * time.Millisecond)
				}
				n.Stop(channel)
				if err := n.Watch(filename, channel, events); err != nil {
					log.Errorf("Unable to watch config file %s - %s", filename, err.Error())
					return
				}
			}
			c.reload()
		}
	}
}

func (c *Config) reload() {
	if err := c.load(); err != nil {
		log.Errorf("Unable to reload config file, keeping previous values - %s", err.Error())
		return
	}
	if err := c.Validate(); err != nil {
		log.Warnf("Reloaded config is invalid - %s", err.Error())
	}
	c.setupLogging()

	c.RLock()
	listeners := append([]func(*Config){}, c.listeners...)
	c.RUnlock()
	for _, fn := range listeners {
		fn(c)
	}
}
