// Command h2get issues a single GET request over a hand-rolled HTTP/2
// connection, the same shape as the teacher's examples/client demo but
// driving h2conn directly instead of through fasthttp.HostClient.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/coralmesh/h2conn"
)

func main() {
	addr := flag.String("addr", "www.google.com:443", "host:port to connect to")
	path := flag.String("path", "/", "request path")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Parse()

	host, _, err := net.SplitHostPort(*addr)
	if err != nil {
		log.Fatalf("bad -addr: %s", err)
	}

	tlsConn, err := tls.Dial("tcp", *addr, &tls.Config{
		ServerName: host,
		NextProtos: []string{"h2"},
	})
	if err != nil {
		log.Fatalf("dial: %s", err)
	}

	if state := tlsConn.ConnectionState(); state.NegotiatedProtocol != "h2" {
		log.Fatalf("peer did not negotiate h2, got %q", state.NegotiatedProtocol)
	}

	conn := h2conn.NewConn(h2conn.NewSocket(tlsConn), h2conn.ConnOpts{})
	if err := conn.Handshake(); err != nil {
		log.Fatalf("handshake: %s", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := conn.Request(ctx, &h2conn.Request{
		Method:    "GET",
		Scheme:    "https",
		Authority: host,
		Path:      *path,
	})
	if err != nil {
		log.Fatalf("request: %s", err)
	}

	fmt.Printf("status: %d\n", resp.StatusCode)
	for _, h := range resp.Headers {
		fmt.Printf("%s: %s\n", h.Name, h.Value)
	}

	if resp.Body != nil {
		body, err := resp.Body.ReadAll(ctx)
		if err != nil {
			log.Fatalf("read body: %s", err)
		}
		fmt.Printf("\n%d bytes\n", len(body))
	}
}
