package remote

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"

	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store"
)

// StoreType is the store type served by NewFactory.
const StoreType = "remote"

const dialTimeout = 10 * time.Second

// NewFactory returns a factory that connects to the server named by the
// PropRemoteAddr property. The returned clients report the graph id they
// were built for rather than the id of the remote graph.
func NewFactory(opts ...grpc.DialOption) store.Factory {
	return store.FactoryFunc(func(graphID string, _ *schema.Schema, props store.Properties) (store.Executor, error) {
		addr := props.Get(store.PropRemoteAddr, "")
		if addr == "" {
			return nil, fmt.Errorf("remote: graph %q: property %s not set", graphID, store.PropRemoteAddr)
		}

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()

		c, err := Dial(ctx, addr, opts...)
		if err != nil {
			return nil, err
		}

		c.graphID = graphID

		return c, nil
	})
}
