// Package topicscope provides the core of a websocket and MQTT debugging
// client: one live transport connection whose messages fan out to
// independently tracked topic sessions.
//
// Each session owns a bounded log, unread counter, display color and
// pause/mute flags. Inbound broker messages reach every session whose
// subscription filter matches the message topic, using MQTT wildcard
// semantics ('+' for one level, '#' for the rest).
//
// # Features
//
//   - Multi-topic sessions with FIFO-bounded logs (default 1000 entries)
//   - MQTT wildcard routing with fan-out to every matching session
//   - Unread counters for inactive sessions, six-color round-robin palette
//   - Connection supervisor with toggle connect, idle watchdog and stale
//     event rejection across reconnects
//   - Two transports: MQTT over websockets/TCP (eclipse paho) and plain
//     websocket streams (gorilla/websocket)
//   - Asynchronous, coalescing persistence of topics and connection form
//     via Relica adapters (SQLite, MySQL, PostgreSQL)
//   - Options pattern for every service, pluggable Logger and
//     NotificationService
//
// # Quick Start
//
//	db, _ := sql.Open("sqlite3", "topicscope.db")
//	if err := topicscope.ApplyMigrations(ctx, db); err != nil {
//	    log.Fatal(err)
//	}
//	repos := relica.NewRepositories(db, "sqlite3")
//
//	worker, _ := topicscope.NewPersistWorker(
//	    topicscope.WithPersistRepositories(repos.Sessions, repos.FormState),
//	    topicscope.WithPersistLogger(logger),
//	)
//	go worker.Run(ctx)
//
//	client, _ := topicscope.NewClient(
//	    topicscope.WithTransport(model.ModeMQTT, mqtt.NewTransport(logger)),
//	    topicscope.WithTransport(model.ModeStream, stream.NewTransport(logger)),
//	    topicscope.WithLogger(logger),
//	    topicscope.WithPersistence(worker),
//	)
//	_ = client.Load(ctx)
//
//	client.CreateTopic("home/+/temperature")
//	client.SetURL("ws://broker.local:8884/mqtt")
//	client.Connect()
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│   Views (console, HTTP API)         │  NotificationService
//	├─────────────────────────────────────┤
//	│   Client (facade + supervisor)      │  one mutex, generations
//	├──────────────────┬──────────────────┤
//	│   TopicRouter    │   TopicManager   │  fan-out, sessions, order
//	├──────────────────┴──────────────────┤
//	│   model, topicfilter                │  entities, matcher
//	├─────────────────────────────────────┤
//	│   Transports     │   PersistWorker  │  adapters/mqtt, adapters/stream,
//	│                  │                  │  adapters/relica
//	└─────────────────────────────────────┘
//
// # Connection Lifecycle
//
//	Disconnected ──Connect──▶ Connecting ──open──▶ Connected
//	      ▲                        │                   │
//	      └──Connect/close/idle────┴───────────────────┘
//
// Connect toggles: called while Connecting or Connected it disconnects.
// Every dial is a new generation; events of an older generation are ignored.
//
// # Database Schema
//
// Two tables, created by the embedded migrations:
//
//	topicscope_session   - persisted session configs and display order
//	topicscope_state     - active session id and the connection form (JSON)
//
// Logs and counters are never persisted.
package topicscope
