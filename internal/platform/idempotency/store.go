package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL applies when a store is handed a non-positive ttl.
const DefaultTTL = 24 * time.Hour

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ReservationState is what Reserve found for a key.
type ReservationState int

const (
	// ReservationStateNew: the caller now owns the key and must save or release it.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted: Record holds a response to replay.
	ReservationStateCompleted
	// ReservationStatePending: another request owns the key and has not finished.
	ReservationStatePending
)

type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is the stored state of one key. Redis stores the JSON form; Firestore stores the
// document form, whose expires_at field carries the collection's TTL policy.
type Record struct {
	Key             string              `json:"key" firestore:"key"`
	Fingerprint     string              `json:"fingerprint" firestore:"fingerprint"`
	Status          Status              `json:"status" firestore:"status"`
	ResponseStatus  int                 `json:"responseStatus,omitempty" firestore:"response_status"`
	ResponseHeaders map[string][]string `json:"responseHeaders,omitempty" firestore:"response_headers"`
	ResponseBody    []byte              `json:"responseBody,omitempty" firestore:"response_body"`
	CreatedAt       time.Time           `json:"createdAt" firestore:"created_at"`
	UpdatedAt       time.Time           `json:"updatedAt" firestore:"updated_at"`
	ExpiresAt       time.Time           `json:"expiresAt" firestore:"expires_at"`
}

// Response is a captured handler response.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists reservations and the responses that complete them. Records expire ttl after
// their last write.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// ErrFingerprintMismatch means the key was first used for a different request.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request fingerprint")

// unstoredHeaders are hop-by-hop or per-request headers that must not be replayed.
var unstoredHeaders = map[string]bool{
	"Connection":            true,
	"Content-Length":        true,
	"Date":                  true,
	"Keep-Alive":            true,
	"Proxy-Authenticate":    true,
	"Proxy-Authorization":   true,
	"Te":                    true,
	"Trailers":              true,
	"Transfer-Encoding":     true,
	"Upgrade":               true,
	"X-Cloud-Trace-Context": true,
	"X-Request-Id":          true,
}

func pendingRecord(key, fingerprint string, now time.Time, ttl time.Duration) Record {
	return Record{
		Key:         key,
		Fingerprint: fingerprint,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func (r Record) live(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// claim classifies a live record for a request with fingerprint.
func (r Record) claim(fingerprint string) (Reservation, error) {
	switch {
	case r.Fingerprint != fingerprint:
		return Reservation{}, ErrFingerprintMismatch
	case r.Status == StatusCompleted:
		return Reservation{State: ReservationStateCompleted, Record: r}, nil
	default:
		return Reservation{State: ReservationStatePending, Record: r}, nil
	}
}

// completed returns r holding resp. Headers are copied without the unstored ones.
func (r Record) completed(resp Response, now time.Time, ttl time.Duration) Record {
	r.Status = StatusCompleted
	r.ResponseStatus = resp.Status
	r.ResponseHeaders = nil
	for name, values := range resp.Headers {
		name = http.CanonicalHeaderKey(name)
		if unstoredHeaders[name] {
			continue
		}
		if r.ResponseHeaders == nil {
			r.ResponseHeaders = make(map[string][]string, len(resp.Headers))
		}
		r.ResponseHeaders[name] = append([]string(nil), values...)
	}
	r.ResponseBody = nil
	if len(resp.Body) > 0 {
		r.ResponseBody = append([]byte(nil), resp.Body...)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	r.ExpiresAt = now.Add(ttl)
	return r
}

// completion resolves the record SaveResponse should build on: the stored one when present,
// or a fresh one when the reservation expired in the meantime.
func completion(stored Record, found bool, key, fingerprint string) (Record, error) {
	if !found {
		return Record{Key: key, Fingerprint: fingerprint}, nil
	}
	if stored.Fingerprint != fingerprint {
		return Record{}, ErrFingerprintMismatch
	}
	return stored, nil
}

// documentID hashes a client supplied key into a fixed length, path safe identifier.
func documentID(key string) string {
	return digest([]byte(strings.TrimSpace(key)))
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return DefaultTTL
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
