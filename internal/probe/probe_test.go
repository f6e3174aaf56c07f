package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/net/dns/dnsmessage"

	"netwatch/internal/models"
)

func TestTCP_Up(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start listener: %v", err)
	}
	defer ln.Close()

	target := models.Target{ID: "local", Kind: models.ProbeTCP, Address: ln.Addr().String()}
	result, err := (&TCP{}).Probe(context.Background(), target)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !result.Succeeded {
		t.Errorf("expected Succeeded=true, got false (error: %s)", result.Error)
	}
	if result.Latency == nil {
		t.Error("expected latency for a successful probe")
	}
	if result.TargetID != "local" || result.Kind != models.ProbeTCP {
		t.Errorf("unexpected identity on result: %+v", result)
	}
}

func TestTCP_Down_Unreachable(t *testing.T) {
	target := models.Target{ID: "closed", Kind: models.ProbeTCP, Address: "127.0.0.1:1"}
	result, err := (&TCP{}).Probe(context.Background(), target)
	if err != nil {
		t.Fatalf("network failure must not be an error: %v", err)
	}
	if result.Succeeded {
		t.Error("expected Succeeded=false for unreachable target")
	}
	if result.Latency != nil {
		t.Error("expected no latency for a failed probe")
	}
	if result.Error == "" {
		t.Error("expected non-empty Error for unreachable target")
	}
}

func TestHTTP_Up(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	result, err := NewHTTP().Probe(context.Background(), models.Target{ID: "web", Kind: models.ProbeHTTP, Address: srv.URL})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !result.Succeeded {
		t.Errorf("expected Succeeded=true, got false (error: %s)", result.Error)
	}
}

func TestHTTP_Down_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	result, err := NewHTTP().Probe(context.Background(), models.Target{ID: "web", Kind: models.ProbeHTTP, Address: srv.URL})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if result.Succeeded {
		t.Error("expected Succeeded=false for 502 response")
	}
}

func TestHTTP_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := NewHTTP().Probe(ctx, models.Target{ID: "slow", Kind: models.ProbeHTTP, Address: srv.URL})
	if err != nil {
		t.Fatalf("timeout must not be an error: %v", err)
	}
	if result.Succeeded {
		t.Error("expected Succeeded=false after timeout")
	}
}

func TestHTTP_MalformedAddress(t *testing.T) {
	_, err := NewHTTP().Probe(context.Background(), models.Target{ID: "bad", Kind: models.ProbeHTTP, Address: "://nope"})
	if err == nil {
		t.Fatal("expected error for malformed URL")
	}
}

func TestRegistry_Dispatch(t *testing.T) {
	r := NewRegistry()
	called := 0
	r.Register(models.ProbeTCP, Func(func(_ context.Context, target models.Target) (models.ProbeResult, error) {
		called++
		return succeeded(target, time.Millisecond), nil
	}))

	if !r.Supports(models.ProbeTCP) || r.Supports(models.ProbeICMP) {
		t.Fatal("unexpected Supports result")
	}

	result, err := r.Probe(context.Background(), models.Target{ID: "a", Kind: models.ProbeTCP})
	if err != nil || !result.Succeeded || called != 1 {
		t.Fatalf("expected dispatch to registered prober, got result=%+v err=%v called=%d", result, err, called)
	}

	result, err = r.Probe(context.Background(), models.Target{ID: "b", Kind: models.ProbeICMP})
	if err == nil {
		t.Fatal("expected error for unsupported kind")
	}
	if result.Succeeded {
		t.Error("unsupported kind must not report success")
	}
}

// startDNSServer answers every A question with 192.0.2.10 and every other
// question with an empty answer.
func startDNSServer(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start dns listener: %v", err)
	}
	t.Cleanup(func() { pc.Close() })

	go func() {
		buf := make([]byte, 1500)
		for {
			n, addr, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			if reply, err := dnsReply(buf[:n]); err == nil {
				_, _ = pc.WriteTo(reply, addr)
			}
		}
	}()
	return pc.LocalAddr().String()
}

func dnsReply(query []byte) ([]byte, error) {
	var p dnsmessage.Parser
	hdr, err := p.Start(query)
	if err != nil {
		return nil, err
	}
	q, err := p.Question()
	if err != nil {
		return nil, err
	}

	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{
		ID:                 hdr.ID,
		Response:           true,
		Authoritative:      true,
		RecursionDesired:   hdr.RecursionDesired,
		RecursionAvailable: true,
	})
	b.EnableCompression()
	if err := b.StartQuestions(); err != nil {
		return nil, err
	}
	if err := b.Question(q); err != nil {
		return nil, err
	}
	if err := b.StartAnswers(); err != nil {
		return nil, err
	}
	if q.Type == dnsmessage.TypeA {
		err := b.AResource(
			dnsmessage.ResourceHeader{Name: q.Name, Type: dnsmessage.TypeA, Class: dnsmessage.ClassINET, TTL: 60},
			dnsmessage.AResource{A: [4]byte{192, 0, 2, 10}},
		)
		if err != nil {
			return nil, err
		}
	}
	return b.Finish()
}

func resolverFor(addr string) *net.Resolver {
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "udp", addr)
		},
	}
}

func TestDNS_Resolves(t *testing.T) {
	prober := &DNS{Resolver: resolverFor(startDNSServer(t))}
	target := models.Target{ID: "resolve", Kind: models.ProbeDNS, Address: "gateway.netwatch.test."}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := prober.Probe(ctx, target)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !result.Succeeded {
		t.Fatalf("expected Succeeded=true, got error %q", result.Error)
	}
	if result.Latency == nil {
		t.Error("expected latency for a successful lookup")
	}
}

func TestDNS_ResolverUnreachable(t *testing.T) {
	prober := &DNS{Resolver: &net.Resolver{
		PreferGo: true,
		Dial: func(context.Context, string, string) (net.Conn, error) {
			return nil, errors.New("resolver unreachable")
		},
	}}
	target := models.Target{ID: "resolve", Kind: models.ProbeDNS, Address: "gateway.netwatch.test."}

	result, err := prober.Probe(context.Background(), target)
	if err != nil {
		t.Fatalf("lookup failure must not be an error: %v", err)
	}
	if result.Succeeded || result.Latency != nil || result.Error == "" {
		t.Errorf("expected a failed result with an error message, got %+v", result)
	}
}

func TestICMP_UnresolvableHostIsFailure(t *testing.T) {
	target := models.Target{ID: "nowhere", Kind: models.ProbeICMP, Address: "host.invalid"}

	result, err := (&ICMP{}).Probe(context.Background(), target)
	if err != nil {
		t.Fatalf("resolution failure must not be an error: %v", err)
	}
	if result.Succeeded {
		t.Error("expected Succeeded=false for an unresolvable host")
	}
	if result.Error == "" || result.TargetID != "nowhere" || result.Kind != models.ProbeICMP {
		t.Errorf("unexpected result: %+v", result)
	}
}
