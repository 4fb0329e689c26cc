// Command etpd runs the ETP reference store: ambient HTTP (health, ready,
// metrics) plus a /etp WebSocket endpoint that negotiates and serves one
// Session per connection against the in-memory/Postgres-backed stores in
// internal/backing and internal/audit.
package main

import (
	"context"
	"crypto/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/energistics/etp/internal/app"
	"github.com/energistics/etp/internal/audit"
	"github.com/energistics/etp/internal/backing"
	"github.com/energistics/etp/internal/config"
	"github.com/energistics/etp/internal/correlation"
	"github.com/energistics/etp/internal/handler/core"
	"github.com/energistics/etp/internal/handler/dataspace"
	"github.com/energistics/etp/internal/handler/discovery"
	"github.com/energistics/etp/internal/handler/growingobject"
	"github.com/energistics/etp/internal/handler/store"
	"github.com/energistics/etp/internal/metrics"
	"github.com/energistics/etp/internal/proto"
	"github.com/energistics/etp/internal/session"
	"github.com/energistics/etp/transport/wsserver"
	"github.com/energistics/etp/wire"
)

func main() {
	cfg := app.LoadConfig()
	log := app.NewLogger(cfg.LogLevel, cfg.LogFormat)

	caps, err := config.Load(cfg.CapabilitiesFile)
	if err != nil {
		log.Error("capabilities.load_failed", "err", err)
		return
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("app.init_failed", "err", err)
		return
	}

	auditStore, err := newAuditStore(a, log)
	if err != nil {
		log.Error("audit.init_failed", "err", err)
		return
	}
	defer auditStore.Close()

	objects := backing.NewObjectStore()
	growingObjects := backing.NewGrowingObjectStore()
	dataspaces := backing.NewDataspaceStore()
	lister := backing.NewResourceLister(objects, dataspaces)

	srv := &etpServer{
		log:        log,
		cfg:        cfg,
		caps:       caps,
		audit:      auditStore,
		objects:    objects,
		growing:    growingObjects,
		dataspaces: dataspaces,
		lister:     lister,
	}

	a.Mux().HandleFunc(cfg.WSPath, srv.handleUpgrade)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Error("server.run_failed", "err", err)
	}
}

func newAuditStore(a *app.App, log app.Logger) (audit.Store, error) {
	if a.DBEnabled {
		return audit.NewPostgresStore(a.DBPool)
	}
	log.Info("audit.store", "backend", "memory")
	return audit.NewMemoryStore(), nil
}

// etpServer holds the shared, per-process state every accepted Session is
// built against: capability defaults and the backing stores each protocol
// handler dispatches to.
type etpServer struct {
	log  app.Logger
	cfg  app.Config
	caps config.Capabilities

	audit audit.Store

	objects    *backing.ObjectStore
	growing    *backing.GrowingObjectStore
	dataspaces *backing.DataspaceStore
	lister     *backing.ResourceLister
}

func (e *etpServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := wsserver.Accept(w, r, wsserver.AcceptOptions{})
	if err != nil {
		e.log.Warn("ws.accept_failed", "err", err)
		return
	}
	encoding := conn.NegotiateEncoding()

	ctx := r.Context()
	go e.serveConnection(ctx, conn, encoding)
}

func (e *etpServer) serveConnection(ctx context.Context, conn *wsserver.Conn, encoding wire.Encoding) {
	connID, err := newConnID()
	if err != nil {
		e.log.Error("conn.id_failed", "err", err)
		_ = conn.Close(ctx, "internal error")
		return
	}
	connLog := e.log.With("conn_id", connID)

	catalog := wire.BuildV12()

	tracker := correlation.New(
		correlation.WithInflightGauge(metrics.CorrelationInflightDelta),
		correlation.WithTimeoutCounter(metrics.CorrelationTimeout),
		correlation.WithOrphanCounter(metrics.CorrelationOrphan),
	)

	var sess *session.Session
	onPeerClose := func(reason string) {
		if sess != nil {
			_ = sess.Close(context.Background(), reason)
		}
	}

	sess = session.New(connLog, conn, encoding, catalog,
		session.WithCorrelationTracker(tracker),
		session.WithDefaultRequestTimeout(e.cfg.DefaultRequestTimeout),
		session.WithMessageMetrics(metrics.RecordMessageSent, metrics.RecordMessageReceived),
		session.WithSessionLifecycleMetrics(
			func(role, version string) { metrics.RecordSessionOpened(role, version) },
			func(reason string) { metrics.RecordSessionClosed(reason) },
		),
		session.WithHandlerErrorMetrics(metrics.RecordHandlerError),
	)

	protoHandlers := []proto.Handler{
		core.New(connLog, wire.RoleStore, onPeerClose),
		discovery.NewStore(connLog, e.lister),
		store.NewStore(connLog, e.objects),
		growingobject.NewStore(connLog, e.growing),
		dataspace.NewStore(connLog, e.dataspaces),
	}
	for _, h := range protoHandlers {
		if err := sess.RegisterHandler(h); err != nil {
			connLog.Error("session.register_handler_failed", "err", err)
			_ = conn.Close(ctx, "handler registration failed")
			return
		}
	}

	openCtx, cancel := context.WithTimeout(ctx, nonZero(e.cfg.NegotiationTimeout, 10*time.Second))
	defer cancel()

	err = sess.Open(openCtx, session.OpenConfig{
		Initiator:          false,
		ApplicationName:    e.caps.ApplicationName,
		ApplicationVersion: e.caps.ApplicationVersion,
		NegotiationTimeout:  e.cfg.NegotiationTimeout,
	})
	if err != nil {
		connLog.Warn("session.open_failed", "err", err)
		_ = conn.Close(ctx, "negotiation failed")
		return
	}

	rec := audit.SessionRecord{
		SessionID: sess.ID(),
		Role:      "store",
		Version:   string(sess.Version()),
		OpenedAt:  time.Now(),
	}
	if err := e.audit.RecordOpened(ctx, rec); err != nil {
		connLog.Warn("audit.record_opened_failed", "err", err)
	}

	serveErr := sess.Serve(ctx)
	reason := "closed"
	if serveErr != nil {
		reason = serveErr.Error()
	}
	if err := e.audit.RecordClosed(context.Background(), sess.ID(), time.Now(), reason); err != nil {
		connLog.Warn("audit.record_closed_failed", "err", err)
	}
}

// newConnID mints a time-sortable per-connection id (a ULID) for log
// correlation.
func newConnID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func nonZero(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
