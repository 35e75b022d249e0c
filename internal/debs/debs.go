package deps

import (
	"context"

	"github.com/bwise1/campus_voice/config"
	"github.com/bwise1/campus_voice/internal/db"
	"github.com/bwise1/campus_voice/internal/identity"
	"github.com/bwise1/campus_voice/internal/identity/gotrue"
	"github.com/bwise1/campus_voice/internal/identity/local"
	idmemory "github.com/bwise1/campus_voice/internal/identity/memory"
	"github.com/bwise1/campus_voice/internal/mq"
	"github.com/bwise1/campus_voice/internal/portal"
	"github.com/bwise1/campus_voice/internal/store"
	"github.com/bwise1/campus_voice/internal/store/memory"
	"github.com/bwise1/campus_voice/internal/store/postgres"
	"github.com/bwise1/campus_voice/util/storage"
	"github.com/bwise1/campus_voice/util/websockets"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// recordStore is what every record-store adapter provides.
type recordStore interface {
	store.TicketStore
	store.UpvoteLedger
	store.ProfileStore
}

type Dependencies struct {
	DB        *db.DB
	Tickets   store.TicketStore
	Upvotes   store.UpvoteLedger
	Profiles  store.ProfileStore
	Identity  identity.Backend
	Blobs     storage.Blob
	Disk      *storage.Disk
	Events    *mq.RabbitPublisher
	WebSocket *websockets.WebSocketManager

	Upvoter   *portal.Upvoter
	Submitter *portal.Submitter
	Triage    *portal.Triage
	Recounter *portal.Recounter

	listener *postgres.Store
	log      zerolog.Logger
}

// New builds the adapters selected by cfg and the portal services over them.
func New(cfg *config.Config, log zerolog.Logger) (*Dependencies, error) {
	d := &Dependencies{log: log}

	if cfg.NeedsDatabase() {
		database, err := db.New(cfg.Dsn, log)
		if err != nil {
			return nil, errors.Wrap(err, "connect to database")
		}
		d.DB = database
	}

	var records recordStore
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pg := postgres.New(d.DB.Pool(), log)
		d.listener = pg
		records = pg
	default:
		log.Warn().Msg("using the in-memory record store; data is lost on restart")
		records = memory.New()
	}
	d.Tickets, d.Upvotes, d.Profiles = records, records, records

	switch cfg.IdentityBackend {
	case config.BackendLocal:
		d.Identity = local.New(d.DB, cfg.JwtSecret, cfg.JwtExpires, log)
	case config.BackendGoTrue:
		d.Identity = gotrue.New(cfg.GoTrueURL, cfg.GoTrueAPIKey, log)
	default:
		log.Warn().Msg("using the in-memory identity backend")
		d.Identity = idmemory.New()
	}

	switch cfg.BlobBackend {
	case config.BackendCloudinary:
		cld, err := storage.NewCloudinary(cfg)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Blobs = cld
	default:
		disk, err := storage.NewDisk(cfg.DiskDir, cfg.PublicBaseURL+"/uploads")
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Disk = disk
		d.Blobs = disk
	}

	if cfg.AMQPURL != "" {
		pub, err := mq.NewRabbitPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Events = pub
	}

	d.WebSocket = websockets.NewWebSocketManager(log)

	var events portal.EventPublisher
	if d.Events != nil {
		events = d.Events
	}
	d.Upvoter = portal.NewUpvoter(d.Tickets, d.Upvotes, events, log)
	d.Submitter = portal.NewSubmitter(d.Tickets, d.Blobs, events, log)
	d.Triage = portal.NewTriage(d.Tickets, events, log)
	d.Recounter = portal.NewRecounter(d.Tickets, d.Upvotes, log)

	return d, nil
}

// NewSessionManager returns a session manager with its own identity client,
// one per request or live connection.
func (d *Dependencies) NewSessionManager() *portal.SessionManager {
	return portal.NewSessionManager(identity.NewClient(d.Identity), d.Profiles, d.log)
}

// NewTicketList builds a list over the configured record store.
func (d *Dependencies) NewTicketList(scope portal.Scope) *portal.TicketList {
	return portal.NewTicketList(d.Tickets, d.Upvotes, scope, d.log)
}

// Start runs background relays until ctx ends.
func (d *Dependencies) Start(ctx context.Context) {
	if d.listener == nil {
		return
	}
	go func() {
		if err := d.listener.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error().Err(err).Msg("ticket change listener stopped")
		}
	}()
}

func (d *Dependencies) Pool() *pgxpool.Pool {
	if d.DB == nil {
		return nil
	}
	return d.DB.Pool()
}

func (d *Dependencies) Close() {
	if d.Events != nil {
		if err := d.Events.Close(); err != nil {
			d.log.Warn().Err(err).Msg("close event publisher")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
