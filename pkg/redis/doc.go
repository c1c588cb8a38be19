// Package redis provides Redis connection management: client construction
// with startup retry and a health check closure. The notification engine uses
// it to back the daily send counter.
package redis
