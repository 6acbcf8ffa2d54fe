// Package app composes the PEED backend: stores, caches and the business
// services, together with the lifecycle of background jobs.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── auth/               # Session tokens
//	├── cache/              # Aggregate cache (memory, Redis)
//	├── domain/             # Domain models (user, training, achievement)
//	├── httpapi/            # HTTP routes and JSON views
//	├── metrics/            # Prometheus collectors
//	├── runtime/            # Process bootstrap: config, database, server
//	├── services/           # Business rules (users, training, achievements, stats, seed)
//	├── storage/            # Store interfaces
//	│   ├── memory/         # In-memory implementation
//	│   └── sqlstore/       # SQLite and PostgreSQL implementation
//	└── system/             # Lifecycle manager
//
// # Dependency Direction
//
//	cmd/peed
//	      │
//	      ▼
//	internal/app/runtime ──► internal/platform (database, migrations)
//	      │
//	      ▼
//	internal/app/httpapi ──► internal/middleware
//	      │
//	      ▼
//	internal/app (composition)
//	      │
//	      ▼
//	internal/app/services ──► internal/app/storage ──► internal/app/domain
//
// Handlers never talk to a store directly; they call services, which
// validate input and run multi-row writes inside storage transactions.
package app
