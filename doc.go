// Package serial provides a minimal, Linux-only serial port transport
// designed for line-oriented telemetry from embedded devices.
//
// The port is opened in raw 8N1 mode at a fixed bit rate (115200 by
// default). Reading goes through an exclusive Reader which returns bytes as
// soon as they arrive, without waiting for a delimiter; turning the byte
// stream into lines and fields is the job of the reassembly and lineproto
// packages, and the feed package drives the whole lifecycle.
//
// Features:
//   - Raw syscall-based serial I/O on Linux, no buffering delays
//   - One reader per port at a time
//   - Self-pipe mechanism so Close unblocks a pending Read immediately
//   - PTY-based tests for reliability
//
// Opening a port is Linux-only. Config, DefaultBaudRate and the errors build
// everywhere so portable drivers can share them; see the transport package.
//
// Example usage:
//
//	port, err := serial.Open(serial.Config{Device: "/dev/ttyUSB0"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	reader, err := port.Reader()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	go func() {
//	    buf := make([]byte, 4096)
//	    for {
//	        n, err := reader.Read(buf)
//	        if err != nil {
//	            return
//	        }
//	        fmt.Printf("chunk: %q\n", buf[:n])
//	    }
//	}()
//
//	// ... to stop reading, call reader.Close() from another goroutine
package serial
