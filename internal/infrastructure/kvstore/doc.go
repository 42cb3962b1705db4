// Package kvstore provides the expiring hash-field store behind the topic
// cache and the delivered-snapshot log.
//
// Three backends share the Store interface:
//
//   - Memory: in-process, for single-instance deployments and tests
//   - SQLite: the kv_fields table of the bridge database, survives restarts
//   - Redis: shared hashes with per-field HEXPIRE (Redis 7.4+)
//
// Configuration:
//
//	store:
//	  backend: "redis"      # memory, sqlite, redis
//	  redis:
//	    address: "localhost:6379"
package kvstore
