// Package bridge implements the stagewire hub: a WebSocket relay that
// accepts connections from pipeline services and external observers,
// stamps every valid envelope with a receipt time and sequence number, and
// broadcasts it to every other connection.
//
// The hub holds no message state. Each connection gets a bounded outbound
// buffer; when a subscriber cannot keep up, its oldest queued envelope is
// dropped so one slow reader never stalls the rest. Malformed frames are
// logged and dropped, and a connection that keeps sending garbage past the
// violation threshold is closed.
//
// # Components
//
//   - [Hub]: the relay; also an http.Handler for the upgrade endpoint
//   - [Stats]: relay counters
//
// # Example
//
//	hub := &bridge.Hub{
//	    OnConnect:    func(source, role string) { log.Printf("joined: %s", source) },
//	    OnDisconnect: func(source, role string) { log.Printf("left: %s", source) },
//	}
//
//	ln, err := net.Listen("tcp", ":5555")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	log.Fatal(hub.Serve(ln))
package bridge
