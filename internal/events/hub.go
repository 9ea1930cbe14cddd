package events

import (
	"context"
	"errors"
)

var ErrBroadcastDropped = errors.New("broadcast queue full")

type Broadcaster interface {
	Publish(msg []byte) bool
}

// HubPublisher pushes events to websocket clients.
type HubPublisher struct {
	hub Broadcaster
}

func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, event Event) error {
	msg, err := event.Marshal()
	if err != nil {
		return err
	}
	if !p.hub.Publish(msg) {
		return ErrBroadcastDropped
	}
	return nil
}
