// Package location serves the open-location request from the host.
package location

import (
	"context"
	"strings"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/eventbus"
	"github.com/caffeineduck/browserinterop/interop"
	"go.uber.org/zap"
)

// Target is where the application should navigate.
type Target struct {
	Route string `json:"route"`
	// UIDs is the ';' separated list of component uids, empty for none.
	UIDs string `json:"uids,omitempty"`
}

type Navigator interface {
	Navigate(ctx context.Context, t Target) error
}

type NavigatorFunc func(ctx context.Context, t Target) error

func (f NavigatorFunc) Navigate(ctx context.Context, t Target) error {
	return f(ctx, t)
}

// BusNavigator publishes the target on eventbus.TopicOpenLocation.
type BusNavigator struct {
	Bus *eventbus.Bus
}

func (n BusNavigator) Navigate(ctx context.Context, t Target) error {
	n.Bus.Publish(eventbus.TopicOpenLocation, t)
	return nil
}

// Service handles CS_OPEN_LOCATION_SERVICE events.
type Service struct {
	nav Navigator
	log *zap.Logger
}

func NewService(nav Navigator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{nav: nav, log: log}
}

// Resolve turns an open-location message into a navigation target. ok is
// false when the message names no location.
func Resolve(msg contract.OpenLocation) (Target, bool) {
	if msg.Location == "" {
		return Target{}, false
	}
	var uids []string
	for _, ref := range msg.OpenComponent {
		if ref.ObjId != "" {
			uids = append(uids, ref.ObjId)
		}
	}
	return Target{
		Route: strings.ReplaceAll(msg.Location, ".", "_"),
		UIDs:  strings.Join(uids, ";"),
	}, true
}

func (s *Service) HandleIncomingEvent(ctx context.Context, payload string) error {
	msg, err := contract.Decode[contract.OpenLocation](payload)
	if err != nil {
		s.log.Error("decode open location", zap.Error(err))
		return err
	}
	t, ok := Resolve(msg)
	if !ok {
		return nil
	}
	return s.nav.Navigate(ctx, t)
}

// Install registers the open-location service on peer. A nil navigator
// publishes on the peer's bus.
func Install(peer *interop.Peer, nav Navigator) *Service {
	if nav == nil {
		nav = BusNavigator{Bus: peer.Bus()}
	}
	s := NewService(nav, peer.Logger())
	peer.Registry().RegisterEvent(contract.NewDescriptor(contract.CSOpenLocation, contract.Version2014_02), s)
	return s
}
