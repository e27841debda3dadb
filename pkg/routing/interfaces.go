package routing

import (
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/broker"
)

// Router resolves inbound messages into forwards.
type Router interface {
	// Route matches msg, which arrived on the source connection,
	// against every route in the table and collects the resolved
	// destinations. It returns ok == false when no route matched.
	//
	// Route is total: there is no error case. It must be safe to call
	// concurrently from every listener goroutine.
	Route(source broker.ConnID, msg broker.Message) (fwd *Forward, ok bool)

	// Table returns the table this router resolves against.
	Table() *Table
}
