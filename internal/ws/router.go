package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/mukuljibh/airbnb-backend-sub001/internal/services"
)

type HandlerFunc func(client *Client, data json.RawMessage) error

// Interceptor tags a cross-cutting check the router evaluates in declaration
// order before (and around) the handler. Kept as an explicit list, not nested
// closures, so each one is testable and reorderable on its own.
type Interceptor int

const (
	// ErrorBoundary converts any failure inside the handler, panics included,
	// into a single error event. It never lets one escape to close the
	// connection.
	ErrorBoundary Interceptor = iota
	// RequireIdentity rejects events arriving before an identity is bound.
	RequireIdentity
)

var errNoRoomBound = errors.New("no room bound")

type route struct {
	handler      HandlerFunc
	interceptors []Interceptor
}

// Router dispatches inbound protocol events to their handlers through each
// route's interceptor chain.
type Router struct {
	routes map[string]route
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]route)}
}

func (r *Router) Handle(event string, handler HandlerFunc, interceptors ...Interceptor) {
	r.routes[event] = route{handler: handler, interceptors: interceptors}
}

// Dispatch runs one inbound event. Whatever goes wrong, the client receives
// at most one error event and the connection stays usable.
func (r *Router) Dispatch(client *Client, event string, data json.RawMessage) {
	rt, ok := r.routes[event]
	if !ok {
		client.sendError("unsupported event: " + event)
		return
	}

	guarded := false
	var err error
	for _, interceptor := range rt.interceptors {
		switch interceptor {
		case ErrorBoundary:
			guarded = true
		case RequireIdentity:
			if client.session.Identity.UserID == 0 {
				err = services.ErrUnauthorized
			}
		}
		if err != nil {
			break
		}
	}

	if err == nil {
		err = invoke(rt.handler, client, data, guarded)
	}
	if err != nil {
		client.sendError(humanMessage(err))
	}
}

func invoke(handler HandlerFunc, client *Client, data json.RawMessage, guarded bool) (err error) {
	if guarded {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("ws: handler panic: %v", rec)
				err = fmt.Errorf("handler panic: %v", rec)
			}
		}()
	}
	return handler(client, data)
}

// humanMessage flattens the error taxonomy into the readable strings the
// uniform failure envelope carries.
func humanMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, services.ErrExpiredSession):
		return "chat session has expired"
	case errors.Is(err, services.ErrNotFound):
		return "no room found"
	case errors.Is(err, errNoRoomBound):
		return "no room joined"
	case errors.Is(err, services.ErrForbidden):
		return "not allowed"
	case errors.Is(err, services.ErrConflict):
		return "conversation already exists"
	case errors.Is(err, services.ErrInvalidInput):
		return "invalid payload"
	default:
		return "something went wrong"
	}
}
