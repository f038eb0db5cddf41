// Package redis implements store.Store on redis/go-redis/v9, grounded in
// the teacher's store/redis checkpoint backend's key-prefix and pipeline
// conventions, adapted to hold each execution row as a JSON string and each
// event log as a hash whose fields are the decimal event indexes
// (SPEC_FULL §6.5).
package redis
