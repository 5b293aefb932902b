package consumer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// ErrUnknownStream is returned for messages whose topic has no route.
var ErrUnknownStream = errors.New("unknown source stream")

// Route describes how messages of one stream are handled.
type Route struct {
	// Topic the messages are read from.
	Stream string

	// Short name of the event type, used in logs and metrics.
	Kind string

	// Topic that receives messages that could not be applied.
	DeadLetterTopic string

	Handler Handler
}

// Registry maps stream names to routes. It is immutable once built.
type Registry struct {
	routes map[string]Route
}

// NewRegistry validates routes and returns a registry for them.
func NewRegistry(routes ...Route) (*Registry, error) {
	var err error
	reg := &Registry{routes: make(map[string]Route, len(routes))}

	for i, route := range routes {
		switch {
		case route.Stream == "":
			err = multierror.Append(err, fmt.Errorf("route %d: missing stream name", i))
		case route.DeadLetterTopic == "":
			err = multierror.Append(err, fmt.Errorf("route %q: missing dead-letter topic", route.Stream))
		case route.DeadLetterTopic == route.Stream:
			err = multierror.Append(err, fmt.Errorf("route %q: dead-letter topic must differ from the stream", route.Stream))
		case route.Handler == nil:
			err = multierror.Append(err, fmt.Errorf("route %q: missing handler", route.Stream))
		default:
			if _, dup := reg.routes[route.Stream]; dup {
				err = multierror.Append(err, fmt.Errorf("route %q: registered twice", route.Stream))

				continue
			}

			reg.routes[route.Stream] = route
		}
	}

	if err != nil {
		return nil, err
	}

	return reg, nil
}

// Lookup returns the route of stream.
func (r *Registry) Lookup(stream string) (Route, bool) {
	route, ok := r.routes[stream]

	return route, ok
}

// Streams returns the registered stream names in sorted order.
func (r *Registry) Streams() []string {
	streams := make([]string, 0, len(r.routes))
	for stream := range r.routes {
		streams = append(streams, stream)
	}

	sort.Strings(streams)

	return streams
}
