// Package app composes the item service, its event bus, and their
// lifecycle into one Application.
//
// The layout under internal/app mirrors the layering of the gateway:
//
//	internal/app/
//	├── application.go      # Wiring and lifecycle of the composed services
//	├── domain/item/        # The item model shared by every layer
//	├── storage/            # ItemStore interface and backends
//	│   ├── memory/         #   in-memory (default, and for tests)
//	│   ├── postgres/       #   database/sql + lib/pq
//	│   ├── redisstore/     #   go-redis
//	│   └── s3store/        #   aws-sdk-go-v2 S3
//	├── services/items/     # Validation, store delegation, event emission
//	├── events/             # In-process change bus with ring history
//	├── httpapi/            # REST handlers, watch hub, OpenAPI document
//	├── metrics/            # Prometheus registry and HTTP instrumentation
//	└── system/             # Service lifecycle manager and state machine
//
// The server runtime and binaries sit outside this package:
// internal/app/runtime turns configuration into a running HTTP server,
// cmd/gateway is the entry point, and pkg/client with pkg/collection
// form the consumer side.
package app
