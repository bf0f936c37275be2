// Package feed turns a serial byte stream into a stream of telemetry fields
// and manages the connection lifecycle around it.
//
// A Controller owns one Transport. Each Connect starts a new generation:
// the transport is opened, its read handle acquired, and a read loop
// started. The loop decodes bytes as UTF-8, reassembles lines, parses them
// into fields and hands every field to the Sink before it reads again.
//
// A generation ends on end of stream, on a read error, or on Disconnect.
// Whichever happens, the same cleanup runs exactly once: the read handle is
// released, then the transport is closed, and the controller returns to
// Disconnected, from where a new Connect is always possible. Disconnect
// closes the read handle, so a read blocked waiting for the device returns
// immediately. Cleanup failures never keep the controller from Disconnected;
// Disconnect reports them as *CleanupError.
//
//	ctrl := feed.New(transport.Termios{Config: serial.Config{Device: "/dev/ttyUSB0"}},
//	    feed.SinkFunc(func(key, value string) {
//	        fmt.Println(key, value)
//	    }))
//	if err := ctrl.Connect(ctx); err != nil {
//	    return err
//	}
//	defer ctrl.Disconnect(context.Background())
package feed
