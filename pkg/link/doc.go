// Package link maintains a service's connection to the stagewire hub.
//
// A [Client] dials the hub in the background and keeps the link alive for
// the lifetime of the process: failures trigger exponential-backoff
// redials, envelope-level pings cover idle stretches, and a peer silent
// for two heartbeat intervals is treated as dead. Sending never blocks the
// caller; when the outbound queue fills, the oldest queued envelope is
// dropped so fresh data wins.
//
// # Example
//
//	client := link.Dial(link.Config{
//	    URL:    "ws://127.0.0.1:5555/ws",
//	    Source: envelope.SourceScribe,
//	    Role:   envelope.RoleDual,
//	})
//	defer client.Close()
//
//	client.Send(envelope.NewTranscript("hello", 1, nil))
//
//	for env := range client.Receive() {
//	    fmt.Println(env.Type, env.Source)
//	}
package link
