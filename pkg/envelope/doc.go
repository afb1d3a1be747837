// Package envelope defines the JSON wire protocol shared by every stagewire
// service: a single Envelope frame tagged with a message type, an originating
// source, and a free-form data payload.
//
// Envelopes are self-describing and forward-tolerant: the payload is kept as
// raw JSON so fields a service does not understand survive relaying, while
// the envelope header itself is validated strictly on decode.
//
// # Components
//
//   - [Envelope]: the wire frame (type, source, data, id, timestamp)
//   - [Type]: message type enum ("transcript", "intent", "command", ...)
//   - [Millis]: Unix-millisecond timestamps
//   - [IDGen]: per-source monotonic envelope IDs
//
// # Example
//
//	env := envelope.NewTranscript("draw a cat", 7, nil)
//	env.ID = gen.Next()
//
//	frame, err := env.Encode()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	back, err := envelope.Decode(frame)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tr, _ := back.Transcript()
//	fmt.Println(tr.Text)
package envelope
