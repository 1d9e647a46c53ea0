// Copyright (c) 2023 BVK Chaitanya

package cmdutil

import (
	"context"
	"encoding/json"
	"flag"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func TestClientFlagsPort(t *testing.T) {
	var cf ClientFlags
	fset := flag.NewFlagSet("test", flag.ContinueOnError)
	cf.SetFlags(fset)
	if err := fset.Parse(nil); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CANDLEBOT_SERVER_PORT", "")
	if p := cf.Port(); p != 10000 {
		t.Fatalf("want default port 10000, got %d", p)
	}
	t.Setenv("CANDLEBOT_SERVER_PORT", "12000")
	if p := cf.Port(); p != 12000 {
		t.Fatalf("want port from the environment, got %d", p)
	}
	if err := fset.Parse([]string{"-connect-port", "13000"}); err != nil {
		t.Fatal(err)
	}
	if p := cf.Port(); p != 13000 {
		t.Fatalf("want port from the flag, got %d", p)
	}
}

func TestServerFlags(t *testing.T) {
	sf := ServerFlags{IP: "127.0.0.1", Port: 10000}
	if _, err := sf.TCPAddr(); err != nil {
		t.Fatal(err)
	}
	for _, bad := range []ServerFlags{{IP: "localhost", Port: 1}, {IP: "127.0.0.1", Port: 0}, {IP: "127.0.0.1", Port: 70000}} {
		if _, err := bad.TCPAddr(); err == nil {
			t.Fatalf("want error for %+v", bad)
		}
	}
}

type echoRequest struct{ Message string }
type echoResponse struct{ Echo string }

func TestPost(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/echo" {
			http.NotFound(w, r)
			return
		}
		req := new(echoRequest)
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(&echoResponse{Echo: req.Message})
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	var cf ClientFlags
	fset := flag.NewFlagSet("test", flag.ContinueOnError)
	cf.SetFlags(fset)
	if err := fset.Parse([]string{"-connect-host", host, "-connect-port", port, "-api-path", "/api"}); err != nil {
		t.Fatal(err)
	}
	if p, _ := strconv.Atoi(port); cf.Port() != p {
		t.Fatalf("want port %s, got %d", port, cf.Port())
	}

	resp, err := Post[echoResponse](context.Background(), &cf, "/echo", &echoRequest{Message: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Echo != "hello" {
		t.Fatalf("want hello, got %q", resp.Echo)
	}

	if _, err := Post[echoResponse](context.Background(), &cf, "/missing", &echoRequest{}); err == nil {
		t.Fatalf("want error for a non-200 response")
	}
}
