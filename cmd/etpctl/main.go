// Command etpctl is a minimal ETP customer: it dials a store, negotiates a
// session, issues one Store or Discovery request, prints the reply as JSON,
// and closes the session. It exists to exercise Session.Call end to end,
// the way a smoke-test client would.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/energistics/etp/internal/handler/core"
	"github.com/energistics/etp/internal/handler/dataspace"
	"github.com/energistics/etp/internal/handler/discovery"
	"github.com/energistics/etp/internal/handler/growingobject"
	"github.com/energistics/etp/internal/handler/store"
	"github.com/energistics/etp/internal/proto"
	"github.com/energistics/etp/internal/session"
	"github.com/energistics/etp/transport/wsclient"
	"github.com/energistics/etp/wire"
)

func main() {
	var (
		url         = flag.String("url", "ws://127.0.0.1:8080/etp", "store WebSocket URL")
		op          = flag.String("op", "list", "operation: list|get|put|delete")
		uri         = flag.String("uri", "", "object/resource URI")
		file        = flag.String("file", "", "file to read (put) from")
		contentType = flag.String("content-type", "application/octet-stream", "content type for put")
		timeout     = flag.Duration("timeout", 30*time.Second, "request timeout")
		jsonWire    = flag.Bool("json", false, "use JSON framing instead of binary")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := run(log, *url, *op, *uri, *file, *contentType, *timeout, *jsonWire); err != nil {
		fmt.Fprintln(os.Stderr, "etpctl:", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, url, op, uri, file, contentType string, timeout time.Duration, useJSON bool) error {
	encoding := wire.EncodingBinary
	if useJSON {
		encoding = wire.EncodingJSON
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout+10*time.Second)
	defer cancel()

	conn, err := wsclient.Dial(ctx, url, wsclient.DialOptions{Encoding: encoding})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(context.Background(), "done")

	catalog := wire.BuildV12()
	sess := session.New(log, conn, encoding, catalog, session.WithDefaultRequestTimeout(timeout))

	onPeerClose := func(reason string) { _ = sess.Close(context.Background(), reason) }

	handlers := []proto.Handler{
		core.New(log, wire.RoleCustomer, onPeerClose),
		discovery.NewCustomer(log),
		store.NewCustomer(log),
		growingobject.NewCustomer(log),
		dataspace.NewCustomer(log),
	}
	for _, h := range handlers {
		if err := sess.RegisterHandler(h); err != nil {
			return fmt.Errorf("register %T: %w", h, err)
		}
	}

	openCtx, openCancel := context.WithTimeout(ctx, 10*time.Second)
	defer openCancel()
	if err := sess.Open(openCtx, session.OpenConfig{
		Initiator:          true,
		ApplicationName:    "etpctl",
		ApplicationVersion: "1.0.0",
		NegotiationTimeout: 10 * time.Second,
	}); err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	serveDone := make(chan error, 1)
	go func() { serveDone <- sess.Serve(ctx) }()

	result, dispatchErr := dispatch(ctx, sess, op, uri, file, contentType, timeout)

	_ = sess.Close(context.Background(), "request complete")
	<-serveDone

	if dispatchErr != nil {
		return dispatchErr
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func dispatch(ctx context.Context, sess *session.Session, op, uri, file, contentType string, timeout time.Duration) (any, error) {
	switch op {
	case "list":
		return callDiscovery(ctx, sess, uri, timeout)
	case "get":
		return callStoreGet(ctx, sess, uri, timeout)
	case "put":
		return callStorePut(ctx, sess, uri, file, contentType, timeout)
	case "delete":
		return callStoreDelete(ctx, sess, uri, timeout)
	default:
		return nil, fmt.Errorf("unknown op %q", op)
	}
}

func callDiscovery(ctx context.Context, sess *session.Session, uri string, timeout time.Duration) (any, error) {
	header := wire.MessageHeader{
		Protocol:     wire.ProtocolDiscovery,
		MessageType:  wire.DiscoveryMsgGetResources,
		MessageFlags: wire.FlagFinalPart,
	}
	body := map[string]any{"uri": uri}

	parts, err := sess.Call(ctx, header, body, "discovery.customer", timeout)
	if err != nil {
		return nil, fmt.Errorf("GetResources: %w", err)
	}

	type resource struct {
		URI          string `json:"uri"`
		Name         string `json:"name"`
		ResourceType string `json:"resourceType"`
	}
	out := make([]resource, 0, len(parts))
	for _, p := range parts {
		rm, _ := p.Body["resource"].(map[string]any)
		out = append(out, resource{
			URI:          stringField(rm, "uri"),
			Name:         stringField(rm, "name"),
			ResourceType: stringField(rm, "resourceType"),
		})
	}
	return out, nil
}

func callStoreGet(ctx context.Context, sess *session.Session, uri string, timeout time.Duration) (any, error) {
	header := wire.MessageHeader{
		Protocol:     wire.ProtocolStore,
		MessageType:  wire.StoreMsgGetObject,
		MessageFlags: wire.FlagFinalPart,
	}
	body := map[string]any{"uri": uri}

	parts, err := sess.Call(ctx, header, body, "store.customer", timeout)
	if err != nil {
		return nil, fmt.Errorf("GetObject: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("GetObject: empty reply")
	}

	data, _ := parts[0].Body["data"].([]byte)
	return map[string]any{
		"uri":         uri,
		"contentType": stringField(parts[0].Body, "contentType"),
		"bytes":       len(data),
	}, nil
}

// callStorePut and callStoreDelete use SendMessage rather than Call: a
// successful PutObject/DeleteObject carries no reply on the wire (only a
// ProtocolException on failure), so waiting on a correlated FinalPart would
// just time out. The short grace wait below gives an async exception a
// chance to reach the session log before the process exits.
func callStorePut(ctx context.Context, sess *session.Session, uri, file, contentType string, timeout time.Duration) (any, error) {
	var data []byte
	if file != "" {
		d, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		data = d
	}

	header := wire.MessageHeader{
		Protocol:     wire.ProtocolStore,
		MessageType:  wire.StoreMsgPutObject,
		MessageFlags: wire.FlagFinalPart,
	}
	body := map[string]any{
		"uri":         uri,
		"data":        data,
		"contentType": contentType,
	}

	if _, err := sess.SendMessage(ctx, header, body, nil); err != nil {
		return nil, fmt.Errorf("PutObject: %w", err)
	}
	graceWait()
	return map[string]any{"uri": uri, "bytes": len(data)}, nil
}

func callStoreDelete(ctx context.Context, sess *session.Session, uri string, timeout time.Duration) (any, error) {
	header := wire.MessageHeader{
		Protocol:     wire.ProtocolStore,
		MessageType:  wire.StoreMsgDeleteObject,
		MessageFlags: wire.FlagFinalPart,
	}
	body := map[string]any{"uri": uri}

	if _, err := sess.SendMessage(ctx, header, body, nil); err != nil {
		return nil, fmt.Errorf("DeleteObject: %w", err)
	}
	graceWait()
	return map[string]any{"uri": uri, "deleted": true}, nil
}

func graceWait() { time.Sleep(200 * time.Millisecond) }

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
